package ssh

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestStreamWithPrefix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		prefix   string
		expected string
	}{
		{
			name:     "single line",
			input:    "hello world\n",
			prefix:   "[app] ",
			expected: "[app] hello world\n",
		},
		{
			name:     "multiple lines",
			input:    "line1\nline2\nline3\n",
			prefix:   "> ",
			expected: "> line1\n> line2\n> line3\n",
		},
		{
			name:     "missing trailing newline",
			input:    "a\nb",
			prefix:   "  ",
			expected: "  a\n  b\n",
		},
		{
			name:     "blank lines skipped",
			input:    "a\n\n\r\nb\n",
			prefix:   "",
			expected: "a\nb\n",
		},
		{
			name:     "empty input",
			input:    "",
			prefix:   "[p] ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := streamWithPrefix(strings.NewReader(tt.input), &buf, tt.prefix); err != nil {
				t.Fatalf("streamWithPrefix() error = %v", err)
			}
			if buf.String() != tt.expected {
				t.Errorf("output = %q, want %q", buf.String(), tt.expected)
			}
		})
	}
}

func TestStreamWithPrefix_LongLine(t *testing.T) {
	longLine := strings.Repeat("x", 70000)
	var buf bytes.Buffer

	if err := streamWithPrefix(strings.NewReader(longLine+"\n"), &buf, "[p] "); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[p] "+longLine+"\n" {
		t.Error("long line was split or altered")
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("closed pipe") }

func TestStreamWithPrefix_DrainsAfterWriteError(t *testing.T) {
	input := strings.Repeat("line\n", 10000)
	r := strings.NewReader(input)
	c := &capture{limit: len(input)}

	err := streamWithPrefix(io.TeeReader(r, c), failingWriter{}, "> ")
	if err == nil {
		t.Fatal("expected the write error to be returned")
	}
	if r.Len() != 0 {
		t.Errorf("%d bytes left unread after the write error", r.Len())
	}
	if out, _ := c.snapshot(); out != input {
		t.Errorf("capture holds %d bytes, want %d", len(out), len(input))
	}
}

func TestCapture_Truncates(t *testing.T) {
	c := &capture{limit: 8}
	n, err := c.Write([]byte("12345"))
	if n != 5 || err != nil {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	n, _ = c.Write([]byte("67890"))
	if n != 5 {
		t.Errorf("Write() must report the full length, got %d", n)
	}
	c.Write([]byte("more"))

	out, truncated := c.snapshot()
	if out != "12345678" {
		t.Errorf("captured %q, want 12345678", out)
	}
	if !truncated {
		t.Error("expected truncated flag")
	}
}

func TestExecResult_Output(t *testing.T) {
	r := &ExecResult{Stdout: "out", Stderr: "err"}
	if r.Output() != "out\nerr" {
		t.Errorf("Output() = %q", r.Output())
	}
	if !r.Contains("err") || r.Contains("nope") {
		t.Error("Contains() mismatch")
	}
	var nilResult *ExecResult
	if nilResult.Output() != "" || nilResult.Contains("x") {
		t.Error("nil result should be empty")
	}
}

func TestExec_OutputFidelity(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	result, err := client.Exec(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if result.Stdout != "line one\nline two\n" {
		t.Errorf("Stdout = %q", result.Stdout)
	}
	if result.Stderr != "warn: something\n" {
		t.Errorf("Stderr = %q", result.Stderr)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Truncated {
		t.Error("unexpected truncation")
	}
}

func TestExec_NonZeroExitIsNotAnError(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	result, err := client.Exec(context.Background(), "fail")
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if result.Stderr != "boom\n" {
		t.Errorf("Stderr = %q", result.Stderr)
	}
}

func TestExec_Timeout(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := client.Exec(ctx, "hang")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if KindOf(err) != FailureTimeout {
		t.Errorf("KindOf() = %v, want timeout", KindOf(err))
	}
	if elapsed > killGrace+time.Second {
		t.Errorf("Exec returned after %v, expected a bounded wait", elapsed)
	}
	if result == nil || !strings.Contains(result.Stdout, "partial") {
		t.Errorf("expected partial output, got %+v", result)
	}
}

func TestExec_ConnectionStaysUsable(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	for _, cmd := range []string{"first", "second", "third"} {
		result, err := client.Exec(context.Background(), cmd)
		if err != nil {
			t.Fatalf("Exec(%q) error = %v", cmd, err)
		}
		if result.Stdout != cmd {
			t.Errorf("Exec(%q) stdout = %q", cmd, result.Stdout)
		}
	}
}

func TestExecStream(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var buf bytes.Buffer
	result, err := client.StreamOutput(context.Background(), "hello", "  | ", &buf)
	if err != nil {
		t.Fatalf("StreamOutput() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"  | line one\n", "  | line two\n", "  | warn: something\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("streamed output %q missing %q", out, want)
		}
	}
	if !strings.HasPrefix(result.Stdout, "line one") {
		t.Errorf("stream must still capture stdout, got %q", result.Stdout)
	}
}

func TestExecWithOutput(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	out, err := client.ExecWithOutput(context.Background(), "  padded  ")
	if err != nil {
		t.Fatalf("ExecWithOutput() error = %v", err)
	}
	if out != "padded" {
		t.Errorf("ExecWithOutput() = %q, want padded", out)
	}

	_, err = client.ExecWithOutput(context.Background(), "fail")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected failure mentioning stderr, got %v", err)
	}
}

func TestExec_NotConnected(t *testing.T) {
	client := NewClient("host", "user", 22, "")
	_, err := client.Exec(context.Background(), "true")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}
