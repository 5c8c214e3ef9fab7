package signalz

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// manualScheduler records submissions and runs them only when drained,
// so tests can observe exactly what a Send scheduled.
type manualScheduler struct {
	mu     sync.Mutex
	calls  []func(context.Context) error
	tasks  []func(context.Context) error
	closed bool
}

func (m *manualScheduler) Go(_ context.Context, task func(context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSchedulerClosed
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *manualScheduler) CallSoon(_ context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSchedulerClosed
	}
	m.calls = append(m.calls, fn)
	return nil
}

func (m *manualScheduler) pending() (calls, tasks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls), len(m.tasks)
}

// drain runs everything submitted so far and returns the failures.
func (m *manualScheduler) drain() []error {
	m.mu.Lock()
	run := append(m.calls, m.tasks...)
	m.calls, m.tasks = nil, nil
	m.mu.Unlock()

	var errs []error
	for _, fn := range run {
		if err := fn(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (m *manualScheduler) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func newTestSignal(t *testing.T, opts ...Option) (*Signal, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	sig, err := New(append([]Option{WithScheduler(sched)}, opts...)...)
	require.NoError(t, err)
	return sig, sched
}

// recorder collects the events delivered to it.
type recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recorder) handle(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) last() *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) all() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// listener is an owner for bound callbacks.
type listener struct {
	name string
	rec  *recorder
}

func (l *listener) OnEvent(ctx context.Context, e *Event) error {
	return l.rec.handle(ctx, e)
}

func (l *listener) OnOther(ctx context.Context, e *Event) error {
	return l.rec.handle(ctx, e)
}

// eventually runs the garbage collector until cond holds.
func eventuallyCollected(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		runtime.GC()
		return cond()
	}, 2*time.Second, 10*time.Millisecond)
}
