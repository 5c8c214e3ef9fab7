package benchmarks

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/zoobzio/signalz"
)

// BenchmarkConnectDisconnect measures registration churn, including
// entry and lock creation and teardown for keyed subscribers.
func BenchmarkConnectDisconnect(b *testing.B) {
	ctx := context.Background()

	b.Run("unconditional", func(b *testing.B) {
		sig, _ := newBenchSignal()
		cb := signalz.Func(noop)
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if err := sig.Connect(ctx, cb); err != nil {
				b.Fatal(err)
			}
			if err := sig.Disconnect(ctx, cb); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("keyed", func(b *testing.B) {
		sig, _ := newBenchSignal()
		keys := generateKeys(100)
		cb := signalz.Func(noop)
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			k := signalz.Key(keys[i%len(keys)])
			if err := sig.Connect(ctx, cb, k); err != nil {
				b.Fatal(err)
			}
			if err := sig.Disconnect(ctx, cb, k); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("bound", func(b *testing.B) {
		sig, _ := newBenchSignal()
		owner := &TestEvent{}
		method := func(*TestEvent, context.Context, *signalz.Event) error { return nil }
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if err := sig.Connect(ctx, signalz.Bind(owner, method)); err != nil {
				b.Fatal(err)
			}
			if err := sig.Disconnect(ctx, signalz.Bind(owner, method)); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkConcurrentRegistration measures contention on the
// structural lock when goroutines churn distinct and shared keys.
func BenchmarkConcurrentRegistration(b *testing.B) {
	ctx := context.Background()

	for _, shape := range []struct {
		name string
		keys int
	}{
		{"shared_key", 1},
		{"distinct_keys", 1024},
	} {
		b.Run(shape.name, func(b *testing.B) {
			sig, _ := newBenchSignal()
			keys := generateKeys(shape.keys)
			var failures, next atomic.Int64

			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				cb := signalz.Func(noop)
				for pb.Next() {
					k := signalz.Key(keys[int(next.Add(1))%len(keys)])
					if err := sig.Connect(ctx, cb, k, signalz.Weak(false)); err != nil {
						failures.Add(1)
						continue
					}
					if err := sig.Disconnect(ctx, cb, k, signalz.Weak(false)); err != nil {
						failures.Add(1)
					}
				}
			})
			b.ReportMetric(float64(failures.Load()), "failures")
		})
	}
}
