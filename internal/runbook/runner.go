package runbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

// Runner executes runbooks strictly in order over one executor.
type Runner struct {
	exec ssh.Executor
	out  io.Writer

	// OnStep is called before a step runs.
	OnStep func(index, total int, step Step)
	// OnResult is called after a step finished or was skipped.
	OnResult func(StepResult)
}

// NewRunner creates a runner. Streamed output goes to out; a nil out
// discards it.
func NewRunner(exec ssh.Executor, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{exec: exec, out: out}
}

// Executor returns the executor steps run against.
func (r *Runner) Executor() ssh.Executor {
	return r.exec
}

// Run executes rb. Failed optional steps are recorded and the run goes on.
// A failed required step or any transport failure stops the run; the
// remaining steps are recorded as skipped and the stopping error is returned
// together with the report.
func (r *Runner) Run(ctx context.Context, rb Runbook) (*Report, error) {
	if err := rb.Validate(); err != nil {
		return nil, err
	}

	report := &Report{ID: uuid.NewString(), Name: rb.Name}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	total := len(rb.Steps)
	for i, step := range rb.Steps {
		if report.Aborted {
			r.record(report, StepResult{Index: i, Step: step, Status: StatusSkipped, Reason: "not run"})
			continue
		}

		if r.OnStep != nil {
			r.OnStep(i, total, step)
		}

		res := r.runStep(ctx, i, step)
		switch {
		case res.Status == StatusError:
			report.Aborted = true
			report.Err = fmt.Errorf("step %q: %w", step.Title, res.Err)
		case res.Status == StatusFailed && step.Required:
			report.Aborted = true
			report.Err = &StepFailedError{Title: step.Title, Reason: res.Reason}
		}
		r.record(report, res)
	}

	return report, report.Err
}

func (r *Runner) record(report *Report, res StepResult) {
	report.Results = append(report.Results, res)
	if r.OnResult != nil {
		r.OnResult(res)
	}
}

func (r *Runner) runStep(ctx context.Context, index int, step Step) (res StepResult) {
	res = StepResult{Index: index, Step: step}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	if step.Delay > 0 {
		if err := sleep(ctx, step.Delay); err != nil {
			res.Status, res.Err, res.Kind = StatusError, err, ssh.FailureOther
			res.Reason = err.Error()
			res.Canceled = errors.Is(err, context.Canceled)
			return res
		}
	}

	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	var (
		result *ssh.ExecResult
		err    error
	)
	switch {
	case step.Action != nil:
		result, err = step.Action(stepCtx, r.exec, r.out)
	case step.Stream:
		result, err = r.exec.ExecStream(stepCtx, step.Command, r.out)
	default:
		result, err = r.exec.Exec(stepCtx, step.Command)
	}
	res.Result = result

	if err != nil {
		res.Err = err
		res.Reason = err.Error()
		if step.Action != nil && !isTransportError(stepCtx, err) {
			res.Status = StatusFailed
			return res
		}
		res.Status = StatusError
		res.Canceled = errors.Is(ctx.Err(), context.Canceled)
		res.Kind = ssh.KindOf(err)
		if res.Kind == ssh.FailureOther && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			res.Kind = ssh.FailureTimeout
		}
		return res
	}

	if ok, reason := evaluate(step, result); !ok {
		res.Status, res.Reason = StatusFailed, reason
		return res
	}
	res.Status = StatusPassed
	return res
}

// isTransportError separates connection level failures of an action from
// ordinary failures such as an unreadable local file.
func isTransportError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var sshErr *ssh.Error
	if errors.As(err, &sshErr) {
		return true
	}
	return ssh.KindOf(err) != ssh.FailureOther
}

func evaluate(step Step, result *ssh.ExecResult) (bool, string) {
	switch step.Check {
	case CheckExitCode:
		if result == nil {
			return false, "no result"
		}
		if result.ExitCode != 0 {
			return false, fmt.Sprintf("exit status %d", result.ExitCode)
		}
	case CheckMarker:
		if !result.Contains(step.Marker) {
			return false, fmt.Sprintf("output does not contain %q", step.Marker)
		}
	}
	return true, ""
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
