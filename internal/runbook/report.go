package runbook

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweetstyle/opsrun/internal/ssh"
)

// Status is the outcome of one step.
type Status int

const (
	StatusPending Status = iota
	StatusPassed
	StatusFailed
	StatusError
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusError:
		return "error"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StepResult records what one step did.
type StepResult struct {
	Index    int
	Step     Step
	Status   Status
	Result   *ssh.ExecResult
	Err      error
	Kind     ssh.FailureKind
	Reason   string
	Duration time.Duration
	// Canceled is set when the run's context was canceled, as by Ctrl-C,
	// while the step ran.
	Canceled bool
}

// Report summarizes a run.
type Report struct {
	ID       string
	Name     string
	Results  []StepResult
	Duration time.Duration
	Aborted  bool
	Err      error
}

// Count returns the number of steps with the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Warnings returns failed optional steps.
func (r *Report) Warnings() []StepResult {
	var out []StepResult
	for _, res := range r.Results {
		if res.Status == StatusFailed && !res.Step.Required {
			out = append(out, res)
		}
	}
	return out
}

// OK reports whether the runbook ran to the end.
func (r *Report) OK() bool {
	return !r.Aborted
}

// Canceled reports whether the run stopped because its context was canceled.
func (r *Report) Canceled() bool {
	for _, res := range r.Results {
		if res.Canceled {
			return true
		}
	}
	return false
}

// Summary is a one-line description of the run.
func (r *Report) Summary() string {
	return fmt.Sprintf("%s: %d passed, %d failed, %d skipped in %s",
		r.Name, r.Count(StatusPassed), r.Count(StatusFailed)+r.Count(StatusError),
		r.Count(StatusSkipped), r.Duration.Round(time.Millisecond))
}

// StepFailedError is returned when a required step's check fails.
type StepFailedError struct {
	Title  string
	Reason string
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("required step %q failed: %s", e.Title, e.Reason)
}

// IsStepFailure reports whether err stopped the run because of a failed check
// rather than a transport problem.
func IsStepFailure(err error) bool {
	var sf *StepFailedError
	return errors.As(err, &sf)
}
