// Package sagaerrors defines the failure taxonomy shared by the resilience
// pipeline, the message bus, and the saga orchestrator.
//
// The taxonomy is a sum type, not a class hierarchy: every failure carries
// exactly one Kind, a human-readable message, and an optional wrapped cause.
// Callers branch on Kind, not on concrete error types.
package sagaerrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind discriminates the failure taxonomy.
type Kind int

const (
	// KindTransient is a network blip, timeout, or 5xx-like transport
	// failure. Eligible for retry; may trip a circuit breaker.
	KindTransient Kind = iota

	// KindPermanent is a 4xx-equivalent validation or contract violation.
	// Not retried; surfaced directly.
	KindPermanent

	// KindCircuitOpen means the call was refused by an open breaker
	// without invoking the wrapped operation.
	KindCircuitOpen

	// KindTimeout means a bounded operation exceeded its budget. Treated
	// as Transient by the retry classifier unless the caller overrides.
	KindTimeout

	// KindCancelled means the operation was cancelled by the caller or
	// its context. Never retried.
	KindCancelled

	// KindStepFailure means a saga step failed, triggering compensation
	// of its executed predecessors.
	KindStepFailure

	// KindCompensationFailure is reported via observability; it never
	// overrides the original failure surfaced to the caller.
	KindCompensationFailure
)

// String renders the Kind for logging and metric tags.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindCircuitOpen:
		return "circuit_open"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindStepFailure:
		return "step_failure"
	case KindCompensationFailure:
		return "compensation_failure"
	default:
		return "unknown"
	}
}

// Error is the single concrete error type for the taxonomy above.
type Error struct {
	Kind          Kind
	Message       string
	Cause         error
	Compensatable bool // only meaningful when Kind == KindStepFailure
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is and errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a Kind and message to an underlying cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// StepFailure builds a KindStepFailure error, recording whether the step's
// compensation may be skipped by the orchestrator if this failure occurs.
func StepFailure(stepName, reason string, cause error, compensatable bool) *Error {
	return &Error{
		Kind:          KindStepFailure,
		Message:       fmt.Sprintf("%s: %s", stepName, reason),
		Cause:         cause,
		Compensatable: compensatable,
	}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or false if err is not one of ours.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsCancelled reports whether err represents caller cancellation, whether
// or not it has been wrapped into our taxonomy yet. A deadline exceeding
// its budget is KindTimeout, not cancellation — callers that need to
// distinguish the two must not fold DeadlineExceeded in here.
func IsCancelled(err error) bool {
	if Is(err, KindCancelled) {
		return true
	}
	return errors.Is(err, context.Canceled)
}
