package harness

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors reported by targets. Drivers wrap these with %w so the
// runner can classify a failure without knowing which driver produced it.
var (
	// ErrElementNotFound means a selector or resource path did not resolve
	// within the allowed time.
	ErrElementNotFound = errors.New("element not found")

	// ErrScriptRejected means the target refused to evaluate console input.
	ErrScriptRejected = errors.New("script rejected")

	// ErrStaleElement means an element vanished while it was being read.
	ErrStaleElement = errors.New("stale element")

	// ErrConnectionLost means the session with the target is gone.
	// It is the only run-fatal condition.
	ErrConnectionLost = errors.New("connection to target lost")
)

// ErrorKind categorizes a step failure.
type ErrorKind string

const (
	// KindElementNotFound: a locator did not resolve within its timeout.
	KindElementNotFound ErrorKind = "ELEMENT_NOT_FOUND"

	// KindAssertionFailed: captured text or visibility did not match.
	KindAssertionFailed ErrorKind = "ASSERTION_FAILED"

	// KindScriptError: the console rejected submitted code.
	KindScriptError ErrorKind = "SCRIPT_ERROR"

	// KindHarnessFault: the driver failed while observing the target
	// (stale element, protocol fault). Not a content mismatch.
	KindHarnessFault ErrorKind = "HARNESS_FAULT"

	// KindConnectionLost: the target session is gone. Run-fatal.
	KindConnectionLost ErrorKind = "CONNECTION_LOST"

	// KindAborted: the run was cancelled while the step was executing.
	KindAborted ErrorKind = "ABORTED"
)

// StepError describes why a single step failed.
type StepError struct {
	// Kind identifies the failure category.
	Kind ErrorKind

	// Index is the 1-based position of the step in its scenario, or 0 for
	// the reset that precedes it.
	Index int

	// Action is the step's action tag (e.g. "wait_visible").
	Action ActionKind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("step %d (%s): %s: %s", e.Index, e.Action, e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Err
}

// IsConnectionLost reports whether err (or anything it wraps) marks the
// target session as lost.
func IsConnectionLost(err error) bool {
	var se *StepError
	if errors.As(err, &se) && se.Kind == KindConnectionLost {
		return true
	}
	return errors.Is(err, ErrConnectionLost)
}

// IsAborted reports whether err was caused by context cancellation.
func IsAborted(err error) bool {
	var se *StepError
	if errors.As(err, &se) && se.Kind == KindAborted {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// classify maps a driver error from an action to an ErrorKind.
// Cancellation is checked against the run context, not the error, because a
// step-level timeout also surfaces as context.DeadlineExceeded. A step
// timeout is ElementNotFound only for actions that locate an element; a
// script or file hook that runs out of time is a harness fault.
func classify(runCtx context.Context, action ActionKind, err error) ErrorKind {
	var ae *AssertionError
	switch {
	case errors.Is(err, ErrConnectionLost):
		return KindConnectionLost
	case runCtx.Err() != nil:
		return KindAborted
	case errors.As(err, &ae):
		return KindAssertionFailed
	case errors.Is(err, ErrElementNotFound):
		return KindElementNotFound
	case errors.Is(err, ErrScriptRejected):
		return KindScriptError
	case errors.Is(err, ErrStaleElement):
		return KindHarnessFault
	case errors.Is(err, context.DeadlineExceeded) && action.locates():
		return KindElementNotFound
	default:
		return KindHarnessFault
	}
}
