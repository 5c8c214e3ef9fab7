package signalz

import (
	"errors"
	"fmt"
	"time"
)

// Configuration Errors
//
// These errors are returned synchronously by New and Send when the
// caller asks for something the Signal was not built to deliver.
// Nothing is registered or scheduled when one of them is returned.

// ErrConfig is the base of every configuration error. Use errors.Is
// to test for the whole category.
var ErrConfig = errors.New("signal configuration error")

// ErrReservedParam is returned by New when a default parameter name
// collides with a routing parameter name (see ReservedParams).
var ErrReservedParam = fmt.Errorf("%w: reserved parameter name", ErrConfig)

// ErrUnknownParam is returned by Send when an override names a parameter
// that was not declared when the Signal was created. Parameters can be
// overridden per send but never added.
var ErrUnknownParam = fmt.Errorf("%w: unknown parameter", ErrConfig)

// Routing Errors

// ErrUnhashable is returned when a key is not comparable, or when a
// sender has neither a location nor a comparable value to identify it by.
var ErrUnhashable = errors.New("value cannot be used for routing")

// ErrNilCallback is returned by Connect, Disconnect and Subscribe when
// the callback, its function, or its bound owner is nil.
var ErrNilCallback = errors.New("nil callback")

// ErrAlreadyDisconnected is returned when Unsubscribe is called more
// than once on the same Subscription.
var ErrAlreadyDisconnected = errors.New("subscription already disconnected")

// Scheduler Lifecycle Errors

// ErrSchedulerClosed is returned when work is submitted to a Loop
// that has been closed.
var ErrSchedulerClosed = errors.New("scheduler is closed")

// ErrAlreadyClosed is returned when calling Close on a Loop
// that has already been closed.
var ErrAlreadyClosed = errors.New("scheduler already closed")

// Callback Execution Errors
//
// Callback failures never reach Send. They are reported through the
// scheduler's error handler only.

// ErrCallbackPanicked is wrapped by a CallbackError when the callback
// panicked instead of returning.
var ErrCallbackPanicked = errors.New("callback panicked during execution")

// CallbackError describes a failed deferred call or task.
type CallbackError struct {
	ID    string    // submission id
	Kind  string    // "call" or "task"
	At    time.Time // when the failure was observed
	Panic any       // recovered value, nil unless the callback panicked
	Stack []byte    // stack at the panic site
	Err   error
}

func (e *CallbackError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Kind, e.ID, e.Err, e.Panic)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
