// Package signalz provides an in-process signal dispatcher that decouples
// event producers from consumers.
//
// Producers Send a signal with optional routing attributes; consumers
// Connect callbacks that are scheduled only when their routing attributes
// match. Matched callbacks run on a Scheduler, never on the sender's
// goroutine.
//
// Routing:
//   - Unconditional subscribers (no filter) are scheduled on every Send.
//   - Sender subscribers match by identity: the same object, not an equal one.
//   - Key subscribers match by value: any equal comparable value.
//   - A callback matching several ways in one Send is scheduled once.
//
// Lifetime:
//   - Callbacks are held weakly by default. A weakly connected callback
//     whose target becomes unreachable is pruned on the next Send.
//   - Weak(false) holds the callback strongly until it is disconnected.
//   - Bound callbacks (Bind, BindAsync) never pin their owner when weak.
//
// Basic Usage:
//
//	sig, err := signalz.New(signalz.WithDefault("message", ""))
//	if err != nil {
//		return err
//	}
//
//	// Keep the callback: a weakly held func expires once dropped.
//	onMessage := signalz.Func(func(ctx context.Context, e *signalz.Event) error {
//		msg, _ := signalz.Param[string](e, "message")
//		log.Println(msg)
//		return nil
//	})
//	if err := sig.Connect(ctx, onMessage, signalz.Key("chat")); err != nil {
//		return err
//	}
//
//	n, err := sig.Send(ctx, signalz.Key("chat"), signalz.With("message", "hello"))
//
// Methods:
//
//	type Cache struct{ ... }
//
//	func (c *Cache) OnInvalidate(ctx context.Context, e *signalz.Event) error { ... }
//
//	sig.Connect(ctx, signalz.Bind(cache, (*Cache).OnInvalidate), signalz.Sender(db))
//	...
//	sig.Disconnect(ctx, signalz.Bind(cache, (*Cache).OnInvalidate), signalz.Sender(db))
//
// Scheduling:
//
// Sync callbacks (Func, Bind) are queued as deferred calls; async
// callbacks (AsyncFunc, BindAsync) are started as independent tasks.
// Without WithScheduler a Signal dispatches onto the process-wide Loop
// returned by Default. Callback errors and panics go to the scheduler's
// error handler and never affect Send or other callbacks.
package signalz
