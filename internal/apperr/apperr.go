package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can branch without inspecting messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindSecurity
	KindOperational
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindSecurity:
		return "security"
	case KindOperational:
		return "operational"
	default:
		return "unknown"
	}
}

// Error is the error type returned by services, adapters and the sandbox.
type Error struct {
	Kind     Kind
	Msg      string
	Err      error
	Rollback *RollbackReport
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Security(format string, args ...any) *Error {
	return &Error{Kind: KindSecurity, Msg: fmt.Sprintf(format, args...)}
}

// Operational wraps cause. The cause's message is always part of Error().
func Operational(msg string, cause error) *Error {
	return &Error{Kind: KindOperational, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// RollbackOf returns the rollback report attached to err, if any.
func RollbackOf(err error) *RollbackReport {
	var e *Error
	if errors.As(err, &e) {
		return e.Rollback
	}
	return nil
}

// RollbackStep is the outcome of a single undo action.
type RollbackStep struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// RollbackReport collects the outcome of every undo attempted for one request.
type RollbackReport struct {
	Steps []RollbackStep `json:"steps"`
}

func (r *RollbackReport) Add(name string, err error) {
	step := RollbackStep{Name: name, OK: err == nil}
	if err != nil {
		step.Error = err.Error()
	}
	r.Steps = append(r.Steps, step)
}

// Failed returns the names of steps that did not succeed.
func (r *RollbackReport) Failed() []string {
	var names []string
	for _, s := range r.Steps {
		if !s.OK {
			names = append(names, s.Name)
		}
	}
	return names
}

func (r *RollbackReport) String() string {
	parts := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.OK {
			parts = append(parts, s.Name+"=ok")
		} else {
			parts = append(parts, s.Name+"=failed")
		}
	}
	return strings.Join(parts, " ")
}
