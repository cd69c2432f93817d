package runbook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sweetstyle/opsrun/internal/ssh"
)

func scripted(results map[string]*ssh.ExecResult) *ssh.MockExecutor {
	return &ssh.MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ssh.ExecResult, error) {
			if r, ok := results[command]; ok {
				return r, nil
			}
			return &ssh.ExecResult{}, nil
		},
	}
}

func TestRun_AllStepsInOrder(t *testing.T) {
	mock := scripted(nil)
	runner := NewRunner(mock, nil)

	var started []int
	var finished []Status
	runner.OnStep = func(i, total int, step Step) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		started = append(started, i)
	}
	runner.OnResult = func(res StepResult) { finished = append(finished, res.Status) }

	report, err := runner.Run(context.Background(), Runbook{Name: "demo", Steps: []Step{
		{Title: "one", Command: "echo 1", Check: CheckExitCode, Required: true},
		{Title: "two", Command: "echo 2"},
		{Title: "three", Command: "echo 3", Check: CheckExitCode},
	}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"echo 1", "echo 2", "echo 3"}
	if strings.Join(mock.Commands, "|") != strings.Join(want, "|") {
		t.Errorf("commands = %v, want %v", mock.Commands, want)
	}
	if len(started) != 3 || len(finished) != 3 {
		t.Errorf("callbacks: started %v finished %v", started, finished)
	}
	if report.Count(StatusPassed) != 3 || !report.OK() {
		t.Errorf("report = %s", report.Summary())
	}
	if report.ID == "" {
		t.Error("expected a run id")
	}
}

func TestRun_OptionalFailureContinues(t *testing.T) {
	mock := scripted(map[string]*ssh.ExecResult{
		"systemctl is-active postgresql": {Stdout: "inactive\n", ExitCode: 3},
	})
	report, err := NewRunner(mock, nil).Run(context.Background(), Runbook{Name: "health", Steps: []Step{
		{Title: "postgres", Command: "systemctl is-active postgresql", Check: CheckExitCode},
		{Title: "disk", Command: "df -h /"},
	}})
	if err != nil {
		t.Fatalf("optional failure must not stop the run: %v", err)
	}
	if len(mock.Commands) != 2 {
		t.Errorf("expected both steps to run, got %v", mock.Commands)
	}
	if report.Results[0].Status != StatusFailed || report.Results[0].Reason != "exit status 3" {
		t.Errorf("first result = %+v", report.Results[0])
	}
	if len(report.Warnings()) != 1 {
		t.Errorf("expected one warning, got %d", len(report.Warnings()))
	}
}

func TestRun_RequiredFailureStops(t *testing.T) {
	mock := scripted(map[string]*ssh.ExecResult{
		"npm run build": {Stderr: "error TS2304", ExitCode: 2},
	})
	report, err := NewRunner(mock, nil).Run(context.Background(), Runbook{Name: "frontend", Steps: []Step{
		{Title: "build", Command: "npm run build", Check: CheckExitCode, Required: true},
		{Title: "nginx", Command: "systemctl restart nginx", Required: true},
	}})
	if !IsStepFailure(err) {
		t.Fatalf("expected StepFailedError, got %v", err)
	}
	if len(mock.Commands) != 1 {
		t.Errorf("no step may run after a required failure, got %v", mock.Commands)
	}
	if report.OK() {
		t.Error("report must be aborted")
	}
	if report.Results[1].Status != StatusSkipped {
		t.Errorf("second step status = %v, want skipped", report.Results[1].Status)
	}
}

func TestRun_CheckNoneIgnoresExitCode(t *testing.T) {
	mock := scripted(map[string]*ssh.ExecResult{"false": {ExitCode: 1}})
	report, err := NewRunner(mock, nil).Run(context.Background(), Runbook{Name: "x", Steps: []Step{
		{Title: "anything", Command: "false", Required: true},
	}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Results[0].Status != StatusPassed {
		t.Errorf("status = %v", report.Results[0].Status)
	}
}

func TestRun_Marker(t *testing.T) {
	mock := scripted(map[string]*ssh.ExecResult{
		"curl health": {Stdout: `{"status":"ok"}`},
		"curl https":  {Stderr: "HTTP/2 200"},
		"curl broken": {Stdout: "502 Bad Gateway"},
	})
	report, _ := NewRunner(mock, nil).Run(context.Background(), Runbook{Name: "checks", Steps: []Step{
		{Title: "health", Command: "curl health", Check: CheckMarker, Marker: "ok"},
		{Title: "https", Command: "curl https", Check: CheckMarker, Marker: "200"},
		{Title: "broken", Command: "curl broken", Check: CheckMarker, Marker: "ok"},
	}})

	want := []Status{StatusPassed, StatusPassed, StatusFailed}
	for i, w := range want {
		if report.Results[i].Status != w {
			t.Errorf("step %d status = %v, want %v", i, report.Results[i].Status, w)
		}
	}
}

func TestRun_TransportErrorStops(t *testing.T) {
	mock := &ssh.MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ssh.ExecResult, error) {
			return nil, &ssh.Error{Kind: ssh.FailureConnection, Op: "session", Err: io.EOF}
		},
	}
	report, err := NewRunner(mock, nil).Run(context.Background(), Runbook{Name: "x", Steps: []Step{
		{Title: "optional", Command: "uptime"},
		{Title: "next", Command: "df -h"},
	}})
	if !errors.Is(err, ssh.ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
	if report.Results[0].Kind != ssh.FailureConnection || report.Results[0].Status != StatusError {
		t.Errorf("first result = %+v", report.Results[0])
	}
	if report.Results[1].Status != StatusSkipped || len(mock.Commands) != 1 {
		t.Error("transport failure must stop even after an optional step")
	}
}

func TestRun_StepTimeout(t *testing.T) {
	mock := &ssh.MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ssh.ExecResult, error) {
			<-ctx.Done()
			return &ssh.ExecResult{Stdout: "partial", ExitCode: -1}, &ssh.Error{Kind: ssh.FailureTimeout, Op: "exec", Err: ctx.Err()}
		},
	}

	start := time.Now()
	report, err := NewRunner(mock, nil).Run(context.Background(), Runbook{Name: "x", Steps: []Step{
		{Title: "slow", Command: "sleep 60", Timeout: 50 * time.Millisecond},
	}})
	if !errors.Is(err, ssh.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout was not applied")
	}
	res := report.Results[0]
	if res.Kind != ssh.FailureTimeout || res.Result == nil || res.Result.Stdout != "partial" {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_Stream(t *testing.T) {
	mock := scripted(map[string]*ssh.ExecResult{"pm2 logs": {Stdout: "line one\nline two\n"}})
	var out bytes.Buffer
	_, err := NewRunner(mock, &out).Run(context.Background(), Runbook{Name: "logs", Steps: []Step{
		{Title: "logs", Command: "pm2 logs", Stream: true},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != "line one\nline two\n" {
		t.Errorf("streamed output = %q", out.String())
	}
}

func TestRun_Actions(t *testing.T) {
	localFailure := func(ctx context.Context, exec ssh.Executor, w io.Writer) (*ssh.ExecResult, error) {
		return nil, errors.New("open dist: no such file or directory")
	}
	upload := func(ctx context.Context, exec ssh.Executor, w io.Writer) (*ssh.ExecResult, error) {
		if err := exec.UploadContent(ctx, []byte("PORT=3000\n"), "/var/www/backend/.env", 0600); err != nil {
			return nil, err
		}
		return &ssh.ExecResult{Stdout: "written"}, nil
	}

	mock := &ssh.MockExecutor{}
	report, err := NewRunner(mock, nil).Run(context.Background(), Runbook{Name: "x", Steps: []Step{
		{Title: "optional local failure", Action: localFailure},
		{Title: "env", Action: upload, Required: true},
		{Title: "required local failure", Action: localFailure, Required: true},
	}})
	if !IsStepFailure(err) {
		t.Fatalf("expected a step failure, got %v", err)
	}
	if report.Results[0].Status != StatusFailed || report.Results[1].Status != StatusPassed {
		t.Errorf("results = %+v", report.Results)
	}
	if mock.Uploads["/var/www/backend/.env"] != "PORT=3000\n" {
		t.Errorf("uploads = %v", mock.Uploads)
	}
}

func TestRun_ActionTransportError(t *testing.T) {
	transport := func(ctx context.Context, exec ssh.Executor, w io.Writer) (*ssh.ExecResult, error) {
		return nil, ssh.ErrNotConnected
	}
	report, err := NewRunner(&ssh.MockExecutor{}, nil).Run(context.Background(), Runbook{Name: "x", Steps: []Step{
		{Title: "upload", Action: transport},
		{Title: "after", Command: "true"},
	}})
	if err == nil || report.OK() {
		t.Fatal("expected the run to stop")
	}
	if report.Results[0].Kind != ssh.FailureConnection {
		t.Errorf("kind = %v", report.Results[0].Kind)
	}
}

func TestRun_DelayHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &ssh.MockExecutor{}
	_, err := NewRunner(mock, nil).Run(ctx, Runbook{Name: "x", Steps: []Step{
		{Title: "wait", Command: "curl health", Delay: time.Hour},
	}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(mock.Commands) != 0 {
		t.Error("command must not run after cancel")
	}
}

func TestRun_CanceledIsMarked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := &ssh.MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ssh.ExecResult, error) {
			cancel()
			return nil, ctx.Err()
		},
	}
	report, err := NewRunner(mock, nil).Run(ctx, Runbook{Name: "logs", Steps: []Step{
		{Title: "follow", Command: "tail -F app.log", Stream: true},
	}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if !report.Canceled() || !report.Results[0].Canceled {
		t.Errorf("expected the step to be marked canceled: %+v", report.Results[0])
	}
}

func TestRun_TimeoutIsNotCanceled(t *testing.T) {
	mock := &ssh.MockExecutor{
		ExecFunc: func(ctx context.Context, command string) (*ssh.ExecResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	report, _ := NewRunner(mock, nil).Run(context.Background(), Runbook{Name: "slow", Steps: []Step{
		{Title: "sleep", Command: "sleep 60", Timeout: 10 * time.Millisecond},
	}})
	if report.Canceled() {
		t.Error("a step timeout must not count as a cancellation")
	}
}

func TestRunbookValidate(t *testing.T) {
	action := func(ctx context.Context, exec ssh.Executor, w io.Writer) (*ssh.ExecResult, error) { return nil, nil }
	tests := []struct {
		name string
		rb   Runbook
	}{
		{"empty", Runbook{Name: "x"}},
		{"no title", Runbook{Name: "x", Steps: []Step{{Command: "true"}}}},
		{"nothing to run", Runbook{Name: "x", Steps: []Step{{Title: "t"}}}},
		{"both", Runbook{Name: "x", Steps: []Step{{Title: "t", Command: "true", Action: action}}}},
		{"marker without marker", Runbook{Name: "x", Steps: []Step{{Title: "t", Command: "true", Check: CheckMarker}}}},
		{"negative timeout", Runbook{Name: "x", Steps: []Step{{Title: "t", Command: "true", Timeout: -time.Second}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRunner(&ssh.MockExecutor{}, nil).Run(context.Background(), tt.rb); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestReportSummary(t *testing.T) {
	r := &Report{Name: "health", Results: []StepResult{
		{Status: StatusPassed}, {Status: StatusFailed}, {Status: StatusSkipped},
	}}
	if got := r.Summary(); !strings.HasPrefix(got, "health: 1 passed, 1 failed, 1 skipped") {
		t.Errorf("Summary() = %q", got)
	}
	if StatusError.String() != "error" || CheckMarker.String() != "marker" {
		t.Error("unexpected String() values")
	}
}
