// Package runbook executes ordered lists of remote steps over one session.
package runbook

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sweetstyle/opsrun/internal/ssh"
)

// Check selects how a step's outcome is judged.
type Check int

const (
	// CheckNone passes whatever came back.
	CheckNone Check = iota
	// CheckExitCode passes on exit status 0.
	CheckExitCode
	// CheckMarker passes when stdout or stderr contains Marker.
	CheckMarker
)

func (c Check) String() string {
	switch c {
	case CheckNone:
		return "none"
	case CheckExitCode:
		return "exit-code"
	case CheckMarker:
		return "marker"
	default:
		return fmt.Sprintf("check(%d)", int(c))
	}
}

// ActionFunc is a step implemented in Go rather than as a shell command,
// typically a file transfer. Output written to w is shown like streamed
// command output.
type ActionFunc func(ctx context.Context, exec ssh.Executor, w io.Writer) (*ssh.ExecResult, error)

// Step is one unit of a runbook. Exactly one of Command and Action is set.
type Step struct {
	Title   string
	Command string
	Action  ActionFunc

	Timeout  time.Duration
	Delay    time.Duration
	Check    Check
	Marker   string
	Required bool
	Stream   bool
}

// Validate reports a malformed step.
func (s Step) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("step has no title")
	}
	if (s.Command == "") == (s.Action == nil) {
		return fmt.Errorf("step %q: exactly one of command and action is required", s.Title)
	}
	if s.Check == CheckMarker && s.Marker == "" {
		return fmt.Errorf("step %q: marker check without a marker", s.Title)
	}
	if s.Timeout < 0 || s.Delay < 0 {
		return fmt.Errorf("step %q: negative duration", s.Title)
	}
	return nil
}

// Runbook is a named, ordered list of steps.
type Runbook struct {
	Name  string
	Steps []Step
}

// Validate checks every step.
func (r Runbook) Validate() error {
	if len(r.Steps) == 0 {
		return fmt.Errorf("runbook %s has no steps", r.Name)
	}
	for _, s := range r.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("runbook %s: %w", r.Name, err)
		}
	}
	return nil
}
