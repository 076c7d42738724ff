// Package errs defines the structured error kinds used across the workflow
// kernel, task library, and repository contract (spec §7): NotFound,
// DuplicateViolation, DependencyMissing, Timeout, Cancelled, Downstream,
// Protocol, and Resource. Error carries a Kind so callers can branch with
// errs.Is or errs.KindOf, while Unwrap keeps causal chains visible to
// errors.Is and errors.As.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a terminal failure into one of the documented categories.
type Kind string

const (
	// NotFound indicates a requested entity does not exist in the repository.
	NotFound Kind = "not_found"
	// DuplicateViolation indicates a uniqueness constraint would be violated.
	DuplicateViolation Kind = "duplicate_violation"
	// DependencyMissing indicates a workflow context key was absent or had the
	// wrong shape when a consumer task read it.
	DependencyMissing Kind = "dependency_missing"
	// Timeout indicates a bounded wait elapsed without a result.
	Timeout Kind = "timeout"
	// Cancelled indicates the task observed a Stopped control signal.
	Cancelled Kind = "cancelled"
	// Downstream indicates a repository, HTTP, or decode failure in a collaborator.
	Downstream Kind = "downstream"
	// Protocol indicates an external response did not match its expected schema.
	Protocol Kind = "protocol"
	// Resource indicates a required local resource (audio device, OCR engine
	// pool) was unavailable or uninitialized.
	Resource Kind = "resource"
)

// Error is a structured failure tagged with a Kind. Kind is not itself an
// error, so a kind is tested with errs.Is(err, errs.Timeout) or errs.KindOf;
// Unwrap exposes Cause, so errors.Is and errors.As still inspect the chain.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind that wraps cause. If message is
// empty, cause's message is reused.
func Wrap(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As and errors.Unwrap.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=true.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
