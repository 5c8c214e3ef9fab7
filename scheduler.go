package signalz

import (
	"context"
	"sync"
)

// Scheduler is the host scheduler a Signal dispatches onto.
//
// Signals only consume its two submission primitives. Neither may block
// the caller waiting for the submitted work to run, and both must be
// safe to call from any goroutine.
//
// Failures of the submitted functions are the scheduler's business:
// Send never observes them.
type Scheduler interface {
	// Go starts task as an independent concurrent task.
	Go(ctx context.Context, task func(context.Context) error) error

	// CallSoon queues fn as a deferred, fire-and-forget call.
	CallSoon(ctx context.Context, fn func(context.Context) error) error
}

var (
	defaultLoop *Loop
	defaultOnce sync.Once
)

// Default returns the process-wide Loop, creating it on first use.
// Signals created without WithScheduler dispatch onto it.
// It is never closed.
func Default() *Loop {
	defaultOnce.Do(func() {
		defaultLoop = NewLoop()
	})
	return defaultLoop
}
