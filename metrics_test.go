package signalz

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsStructure(t *testing.T) {
	sig, _ := newTestSignal(t)

	m := sig.Metrics()
	assert.Equal(t, Metrics{}, m, "a new Signal reports zero everywhere")
}

func TestMetricsRegistrySizes(t *testing.T) {
	ctx := context.Background()
	sig, _ := newTestSignal(t)
	a := &listener{name: "a"}
	b := &listener{name: "b"}
	cb := Func((&recorder{}).handle)

	require.NoError(t, sig.Connect(ctx, cb))
	require.NoError(t, sig.Connect(ctx, cb, Senders(a, b)))
	require.NoError(t, sig.Connect(ctx, cb, Keys("x", "y", "z")))

	m := sig.Metrics()
	assert.Equal(t, int64(1), m.Unconditional)
	assert.Equal(t, int64(2), m.SenderEntries)
	assert.Equal(t, int64(2), m.SenderLocks)
	assert.Equal(t, int64(3), m.KeyEntries)
	assert.Equal(t, int64(3), m.KeyLocks)

	require.NoError(t, sig.Disconnect(ctx, cb, Keys("x", "y")))
	m = sig.Metrics()
	assert.Equal(t, int64(1), m.KeyEntries)
	assert.Equal(t, int64(1), m.KeyLocks)
	runtime.KeepAlive(cb)
}

func TestMetricsThroughput(t *testing.T) {
	ctx := context.Background()
	sig, sched := newTestSignal(t, WithDefault("n", 0))
	require.NoError(t, sig.Connect(ctx, Func((&recorder{}).handle), Weak(false)))
	require.NoError(t, sig.Connect(ctx, AsyncFunc((&recorder{}).handle), Weak(false)))

	for i := 0; i < 5; i++ {
		_, err := sig.Send(ctx, With("n", i))
		require.NoError(t, err)
	}
	_, err := sig.Send(ctx, With("unknown", 1))
	require.Error(t, err)

	m := sig.Metrics()
	assert.Equal(t, int64(5), m.Sends)
	assert.Equal(t, int64(10), m.Scheduled)
	assert.Zero(t, m.Pruned)
	sched.drain()
}

func TestMetricsPruned(t *testing.T) {
	ctx := context.Background()
	sig, _ := newTestSignal(t)
	rec := &recorder{}
	for i := 0; i < 3; i++ {
		connectDropped(t, sig, rec, Key("k"))
	}

	eventuallyCollected(t, func() bool {
		_, err := sig.Send(ctx, Key("k"))
		return err == nil && sig.Metrics().Pruned == 3
	})
	assert.Zero(t, sig.Metrics().KeyEntries)
}

func TestLoopMetricsConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	loop := NewLoop(WithWorkers(4), WithErrorHandler(func(error) {}))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				fail := (g+i)%5 == 0
				fn := func(context.Context) error {
					if fail {
						return errors.New("failed")
					}
					return nil
				}
				if i%2 == 0 {
					assert.NoError(t, loop.CallSoon(ctx, fn))
				} else {
					assert.NoError(t, loop.Go(ctx, fn))
				}
				_ = loop.Metrics()
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, loop.Close(ctx))

	m := loop.Metrics()
	assert.Equal(t, int64(200), m.CallsSubmitted+m.TasksSubmitted)
	assert.Equal(t, int64(200), m.Processed+m.Failed)
	assert.Equal(t, int64(40), m.Failed)
	assert.Zero(t, m.Panicked)
	assert.Zero(t, m.QueueDepth)
}
