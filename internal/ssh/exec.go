package ssh

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// MaxCaptureBytes caps how much of each stream an ExecResult keeps.
const MaxCaptureBytes = 16 << 20

// killGrace bounds how long we wait for a killed session to wind down.
const killGrace = 5 * time.Second

// ExecResult holds the result of a command execution
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// Output returns stdout followed by stderr.
func (r *ExecResult) Output() string {
	if r == nil {
		return ""
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Contains reports whether the marker appears on either stream.
func (r *ExecResult) Contains(marker string) bool {
	if r == nil {
		return false
	}
	return strings.Contains(r.Stdout, marker) || strings.Contains(r.Stderr, marker)
}

// Exec executes a command on the remote server. A non-zero exit status is
// reported in ExitCode, not as an error. Transport failures and ctx
// expiry are returned as classified errors; on expiry the remote command is
// killed and whatever output was captured is returned with the error.
func (c *Client) Exec(ctx context.Context, command string) (*ExecResult, error) {
	return c.run(ctx, command, nil, "")
}

// ExecStream executes a command and writes its output to w line by line as
// it arrives. The output is captured in the result as well.
func (c *Client) ExecStream(ctx context.Context, command string, w io.Writer) (*ExecResult, error) {
	if w == nil {
		w = os.Stdout
	}
	return c.run(ctx, command, w, "")
}

// StreamOutput streams command output with a prefix
func (c *Client) StreamOutput(ctx context.Context, command string, prefix string, w io.Writer) (*ExecResult, error) {
	return c.run(ctx, command, w, prefix)
}

func (c *Client) run(ctx context.Context, command string, w io.Writer, prefix string) (*ExecResult, error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderrPipe, err := session.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	stdout := &capture{limit: MaxCaptureBytes}
	stderr := &capture{limit: MaxCaptureBytes}
	var out io.Writer
	if w != nil {
		out = &syncWriter{w: w}
	}

	start := time.Now()
	if err := session.Start(command); err != nil {
		return nil, &Error{Kind: FailureConnection, Op: "exec", Addr: c.Addr(), Err: err}
	}

	done := make(chan error, 1)
	go func() {
		var g errgroup.Group
		g.Go(func() error { return pump(stdoutPipe, stdout, out, prefix) })
		g.Go(func() error { return pump(stderrPipe, stderr, out, prefix) })
		pumpErr := g.Wait()
		waitErr := session.Wait()
		if waitErr == nil && pumpErr != nil {
			waitErr = pumpErr
		}
		done <- waitErr
	}()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		select {
		case <-done:
		case <-time.After(killGrace):
		}
		result := buildResult(stdout, stderr, -1, time.Since(start))
		kind := FailureTimeout
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = FailureOther
		}
		return result, &Error{Kind: kind, Op: "exec", Addr: c.Addr(), Err: ctx.Err()}
	}

	result := buildResult(stdout, stderr, 0, time.Since(start))
	if waitErr == nil {
		return result, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(waitErr, &exitErr) {
		result.ExitCode = exitErr.ExitStatus()
		return result, nil
	}

	result.ExitCode = -1
	return result, &Error{Kind: FailureConnection, Op: "exec", Addr: c.Addr(), Err: waitErr}
}

func buildResult(stdout, stderr *capture, code int, d time.Duration) *ExecResult {
	out, outTrunc := stdout.snapshot()
	errOut, errTrunc := stderr.snapshot()
	return &ExecResult{
		Stdout:    out,
		Stderr:    errOut,
		ExitCode:  code,
		Duration:  d,
		Truncated: outTrunc || errTrunc,
	}
}

func pump(r io.Reader, c *capture, w io.Writer, prefix string) error {
	if w == nil {
		_, err := io.Copy(c, r)
		return err
	}
	return streamWithPrefix(io.TeeReader(r, c), w, prefix)
}

// ExecWithOutput executes a command and returns trimmed stdout, failing on a
// non-zero exit status.
func (c *Client) ExecWithOutput(ctx context.Context, command string) (string, error) {
	result, err := c.Exec(ctx, command)
	if err != nil {
		return "", err
	}

	output := strings.TrimSpace(result.Stdout)
	if result.ExitCode != 0 {
		errMsg := strings.TrimSpace(result.Stderr)
		if errMsg == "" {
			errMsg = output
		}
		return output, fmt.Errorf("command failed (exit %d): %s", result.ExitCode, errMsg)
	}

	return output, nil
}

// Shell opens an interactive shell
func (c *Client) Shell() error {
	session, err := c.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	fd := int(os.Stdin.Fd())
	width, height := 80, 40
	if term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil {
			width, height = w, h
		}
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer term.Restore(fd, state)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	if err := session.RequestPty("xterm", height, width, modes); err != nil {
		return fmt.Errorf("failed to request pty: %w", err)
	}

	session.Stdin = os.Stdin
	session.Stdout = os.Stdout
	session.Stderr = os.Stderr

	if err := session.Shell(); err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}

	return session.Wait()
}

// streamWithPrefix copies r to w one line at a time, prefixing every
// non-empty line. After a write error r is still read to EOF so the remote
// side never blocks on a full window.
func streamWithPrefix(r io.Reader, w io.Writer, prefix string) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			if _, werr := fmt.Fprintf(w, "%s%s\n", prefix, line); werr != nil {
				io.Copy(io.Discard, br)
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// capture is a size-capped, concurrency-safe buffer. Writes past the cap are
// discarded so the remote side is never blocked on a full pipe.
type capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.limit - c.buf.Len()
	switch {
	case room <= 0:
		c.truncated = true
	case len(p) > room:
		c.buf.Write(p[:room])
		c.truncated = true
	default:
		c.buf.Write(p)
	}
	return len(p), nil
}

func (c *capture) snapshot() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String(), c.truncated
}

// syncWriter serializes line writes coming from the stdout and stderr pumps.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
