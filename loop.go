package signalz

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
)

// LoopOption configures a Loop during creation.
type LoopOption func(*loopConfig)

// loopConfig holds internal configuration for Loop creation.
type loopConfig struct {
	clock   clockz.Clock // Time abstraction for deterministic testing
	logger  *slog.Logger
	onError func(error)
	workers int
	timeout time.Duration
}

// WithWorkers sets the number of goroutines draining deferred calls.
// Default is 1, which runs deferred calls one at a time in FIFO order.
func WithWorkers(count int) LoopOption {
	return func(c *loopConfig) {
		if count > 0 {
			c.workers = count
		}
	}
}

// WithTaskTimeout bounds the context handed to every call and task.
// Default is no timeout (0).
func WithTaskTimeout(timeout time.Duration) LoopOption {
	return func(c *loopConfig) {
		c.timeout = timeout
	}
}

// WithClock sets the clock implementation for time operations.
// Default is clockz.RealClock for production use.
// Use clockz.FakeClock for deterministic testing.
func WithClock(clock clockz.Clock) LoopOption {
	return func(c *loopConfig) {
		c.clock = clock
	}
}

// WithErrorHandler sets the function receiving unhandled callback
// failures, always as a *CallbackError.
// Default logs them at error level.
func WithErrorHandler(fn func(error)) LoopOption {
	return func(c *loopConfig) {
		c.onError = fn
	}
}

// WithLoopLogger sets the logger used by the default error handler.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(c *loopConfig) {
		c.logger = logger
	}
}

// Loop is the default Scheduler.
//
// Deferred calls enter an unbounded FIFO queue drained by the loop
// goroutines, so CallSoon never blocks. Tasks run on goroutines of their
// own. Callback errors and panics are recovered and handed to the error
// handler; one failing callback never affects another.
type Loop struct {
	clock   clockz.Clock
	logger  *slog.Logger
	onError func(error)
	timeout time.Duration

	mu     sync.Mutex
	queue  []call
	ready  chan struct{}
	closed bool

	// workers tracks loop goroutines, tasks tracks Go submissions.
	workers sync.WaitGroup
	tasks   sync.WaitGroup

	metrics LoopMetrics
}

// call is a single queued call or running task.
type call struct {
	id   string
	kind string
	ctx  context.Context
	fn   func(context.Context) error
}

const (
	kindCall = "call"
	kindTask = "task"
)

// NewLoop creates and starts a Loop.
//
// Example:
//
//	loop := signalz.NewLoop(
//	    signalz.WithWorkers(4),
//	    signalz.WithTaskTimeout(5*time.Second),
//	)
//	defer loop.Close(context.Background())
func NewLoop(opts ...LoopOption) *Loop {
	cfg := loopConfig{
		clock:   clockz.RealClock,
		workers: 1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	l := &Loop{
		clock:   cfg.clock,
		logger:  cfg.logger,
		onError: cfg.onError,
		timeout: cfg.timeout,
		ready:   make(chan struct{}, 1),
	}
	if l.onError == nil {
		l.onError = l.logError
	}

	for i := 0; i < cfg.workers; i++ {
		l.workers.Add(1)
		go l.run()
	}
	return l
}

// Go starts task on its own goroutine.
func (l *Loop) Go(ctx context.Context, task func(context.Context) error) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrSchedulerClosed
	}
	// Add under the mutex so Close never waits on a group still growing.
	l.tasks.Add(1)
	l.mu.Unlock()

	atomic.AddInt64(&l.metrics.TasksSubmitted, 1)
	c := call{id: uuid.NewString(), kind: kindTask, ctx: ctx, fn: task}
	go func() {
		defer l.tasks.Done()
		l.execute(c)
	}()
	return nil
}

// CallSoon appends fn to the deferred call queue.
func (l *Loop) CallSoon(ctx context.Context, fn func(context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrSchedulerClosed
	}
	l.queue = append(l.queue, call{id: uuid.NewString(), kind: kindCall, ctx: ctx, fn: fn})
	atomic.AddInt64(&l.metrics.QueueDepth, 1)
	atomic.AddInt64(&l.metrics.CallsSubmitted, 1)
	l.notify()
	return nil
}

// notify wakes a loop goroutine. Callers hold l.mu.
func (l *Loop) notify() {
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// run is the main loop of a loop goroutine. It exits once the Loop is
// closed and the queue is empty.
func (l *Loop) run() {
	defer l.workers.Done()

	for {
		c, ok := l.next()
		if !ok {
			return
		}
		atomic.AddInt64(&l.metrics.QueueDepth, -1)
		l.execute(c)
	}
}

func (l *Loop) next() (call, bool) {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			c := l.queue[0]
			l.queue[0] = call{}
			l.queue = l.queue[1:]
			if len(l.queue) > 0 && !l.closed {
				l.notify()
			}
			l.mu.Unlock()
			return c, true
		}
		if l.closed {
			l.mu.Unlock()
			return call{}, false
		}
		l.mu.Unlock()
		<-l.ready
	}
}

// execute runs c and reports its failure, if any.
func (l *Loop) execute(c call) {
	if err := l.executeSafely(c); err != nil {
		atomic.AddInt64(&l.metrics.Failed, 1)
		l.report(err)
		return
	}
	atomic.AddInt64(&l.metrics.Processed, 1)
}

// executeSafely runs c with panic recovery and the configured timeout.
func (l *Loop) executeSafely(c call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&l.metrics.Panicked, 1)
			err = &CallbackError{
				ID:    c.id,
				Kind:  c.kind,
				At:    l.clock.Now(),
				Panic: r,
				Stack: debug.Stack(),
				Err:   ErrCallbackPanicked,
			}
		}
	}()

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = l.clock.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := c.fn(ctx); err != nil {
		return &CallbackError{ID: c.id, Kind: c.kind, At: l.clock.Now(), Err: err}
	}
	return nil
}

// report hands err to the error handler. A panicking handler is
// swallowed so it cannot take a loop goroutine down with it.
func (l *Loop) report(err error) {
	defer func() {
		_ = recover()
	}()
	l.onError(err)
}

func (l *Loop) logError(err error) {
	attrs := []any{"error", err}
	if cerr, ok := err.(*CallbackError); ok {
		attrs = append(attrs, "id", cerr.ID, "kind", cerr.Kind)
		if cerr.Panic != nil {
			attrs = append(attrs, "panic", fmt.Sprint(cerr.Panic), "stack", string(cerr.Stack))
		}
	}
	l.logger.Error("unhandled callback failure", attrs...)
}

// Close stops accepting work, runs every queued call and waits for
// running tasks. If ctx is done first, Close returns ctx.Err() and the
// remaining work finishes in the background.
func (l *Loop) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrAlreadyClosed
	}
	l.closed = true
	close(l.ready)
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.workers.Wait()
		l.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Metrics returns a snapshot of the loop counters.
func (l *Loop) Metrics() LoopMetrics {
	return LoopMetrics{
		QueueDepth:     atomic.LoadInt64(&l.metrics.QueueDepth),
		CallsSubmitted: atomic.LoadInt64(&l.metrics.CallsSubmitted),
		TasksSubmitted: atomic.LoadInt64(&l.metrics.TasksSubmitted),
		Processed:      atomic.LoadInt64(&l.metrics.Processed),
		Failed:         atomic.LoadInt64(&l.metrics.Failed),
		Panicked:       atomic.LoadInt64(&l.metrics.Panicked),
	}
}
