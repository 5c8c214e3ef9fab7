package benchmarks

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/zoobzio/signalz"
)

// BenchmarkSendScaling measures Send latency as the unconditional
// subscriber count grows.
func BenchmarkSendScaling(b *testing.B) {
	for _, count := range []int{1, 10, 100, 1000} {
		b.Run(fmt.Sprintf("subscribers_%d", count), func(b *testing.B) {
			ctx := context.Background()
			sig, sched := newBenchSignal()
			cbs := make([]*signalz.Callback, count)
			for i := range cbs {
				cbs[i] = signalz.Func(noop)
				if err := sig.Connect(ctx, cbs[i]); err != nil {
					b.Fatal(err)
				}
			}
			events := generateRealisticEvents(1000)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := sig.Send(ctx, signalz.With("event", events[i%len(events)])); err != nil {
					b.Fatal(err)
				}
			}
			b.StopTimer()

			b.ReportMetric(float64(sched.calls.Load())/float64(b.N), "scheduled/op")
			runtime.KeepAlive(cbs)
		})
	}
}

// BenchmarkSendRouting compares routing shapes over the same
// subscriber population.
func BenchmarkSendRouting(b *testing.B) {
	ctx := context.Background()
	keys := generateKeys(100)
	senders := make([]*TestEvent, 100)
	for i := range senders {
		senders[i] = &TestEvent{ID: i}
	}

	sig, _ := newBenchSignal()
	cbs := make([]*signalz.Callback, len(keys))
	for i := range cbs {
		cbs[i] = signalz.Func(noop)
		if err := sig.Connect(ctx, cbs[i], signalz.Key(keys[i]), signalz.Sender(senders[i])); err != nil {
			b.Fatal(err)
		}
	}

	b.Run("single_key", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := sig.Send(ctx, signalz.Key(keys[i%len(keys)])); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("single_sender", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := sig.Send(ctx, signalz.Sender(senders[i%len(senders)])); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("ten_keys", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			start := i % (len(keys) - 10)
			if _, err := sig.Send(ctx, signalz.Keys(keys[start:start+10]...)); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("key_and_sender_overlap", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			j := i % len(keys)
			if _, err := sig.Send(ctx, signalz.Key(keys[j]), signalz.Sender(senders[j])); err != nil {
				b.Fatal(err)
			}
		}
	})

	runtime.KeepAlive(cbs)
}

// BenchmarkSendParallel measures contention when many goroutines send
// on disjoint keys.
func BenchmarkSendParallel(b *testing.B) {
	ctx := context.Background()
	keys := generateKeys(64)
	sig, _ := newBenchSignal()
	for _, k := range keys {
		if err := sig.Connect(ctx, signalz.Func(noop), signalz.Key(k), signalz.Weak(false)); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := sig.Send(ctx, signalz.Key(keys[i%len(keys)])); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}

// BenchmarkLoopThroughput measures end-to-end delivery on a real Loop.
func BenchmarkLoopThroughput(b *testing.B) {
	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			ctx := context.Background()
			loop := signalz.NewLoop(signalz.WithWorkers(workers))
			sig := signalz.MustNew(signalz.WithScheduler(loop))
			if err := sig.Connect(ctx, signalz.Func(noop), signalz.Weak(false)); err != nil {
				b.Fatal(err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := sig.Send(ctx); err != nil {
					b.Fatal(err)
				}
			}
			if err := loop.Close(ctx); err != nil {
				b.Fatal(err)
			}
		})
	}
}
