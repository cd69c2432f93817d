package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/skeema/knownhosts"
)

// Sentinel errors for the transport failures a caller needs to tell apart.
// Errors returned by Client wrap one of these; use errors.Is or KindOf.
var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("timed out")
	ErrHostKey          = errors.New("host key verification failed")
	ErrNotConnected     = errors.New("not connected")
)

// FailureKind tags the outcome of a remote operation.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureAuth
	FailureConnection
	FailureTimeout
	FailureHostKey
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "ok"
	case FailureAuth:
		return "authentication-failure"
	case FailureConnection:
		return "connection-failure"
	case FailureTimeout:
		return "timeout"
	case FailureHostKey:
		return "host-key-failure"
	default:
		return "error"
	}
}

// Error is a classified transport error.
type Error struct {
	Kind FailureKind
	Op   string
	Addr string
	Err  error
}

func (e *Error) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the sentinel of its kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Kind == FailureAuth
	case ErrConnectionFailed:
		return e.Kind == FailureConnection
	case ErrTimeout:
		return e.Kind == FailureTimeout
	case ErrHostKey:
		return e.Kind == FailureHostKey
	}
	return false
}

// KindOf reports the failure kind carried by err.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrAuthFailed):
		return FailureAuth
	case errors.Is(err, ErrTimeout):
		return FailureTimeout
	case errors.Is(err, ErrHostKey):
		return FailureHostKey
	case errors.Is(err, ErrConnectionFailed), errors.Is(err, ErrNotConnected):
		return FailureConnection
	}
	return FailureOther
}

// classifyDialError tags an error from dialing or the SSH handshake.
func classifyDialError(op, addr string, err error) error {
	return &Error{Kind: dialFailureKind(err), Op: op, Addr: addr, Err: err}
}

func dialFailureKind(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if knownhosts.IsHostKeyChanged(err) || knownhosts.IsHostUnknown(err) {
		return FailureHostKey
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"):
		return FailureAuth
	case strings.Contains(msg, "knownhosts:"),
		strings.Contains(msg, "host key mismatch"):
		return FailureHostKey
	case strings.Contains(msg, "i/o timeout"):
		return FailureTimeout
	}
	return FailureConnection
}
