// Package benchmarks measures Send, Connect and Disconnect throughput
// across subscriber counts and routing shapes.
package benchmarks

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/zoobzio/signalz"
)

// TestEvent is the payload carried in the "event" parameter.
type TestEvent struct {
	ID      int
	Type    string
	Payload []byte
}

// generateRealisticEvents creates events with realistic size distribution
func generateRealisticEvents(n int) []TestEvent {
	events := make([]TestEvent, n)
	types := []string{"user.action", "order.created", "payment.processed", "system.alert"}

	for i := range events {
		events[i] = TestEvent{
			ID:      i,
			Type:    types[rand.Intn(len(types))],
			Payload: make([]byte, 256+rand.Intn(768)),
		}
		for j := range events[i].Payload {
			events[i].Payload[j] = byte(i + j)
		}
	}
	return events
}

// generateKeys returns n distinct routing keys.
func generateKeys(n int) []any {
	keys := make([]any, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("key.%d", i)
	}
	return keys
}

// countingScheduler accepts every submission without running it, so
// benchmarks measure routing and scheduling cost only.
type countingScheduler struct {
	calls atomic.Int64
	tasks atomic.Int64
}

func (s *countingScheduler) Go(context.Context, func(context.Context) error) error {
	s.tasks.Add(1)
	return nil
}

func (s *countingScheduler) CallSoon(context.Context, func(context.Context) error) error {
	s.calls.Add(1)
	return nil
}

func newBenchSignal() (*signalz.Signal, *countingScheduler) {
	sched := &countingScheduler{}
	return signalz.MustNew(
		signalz.WithScheduler(sched),
		signalz.WithDefault("event", TestEvent{}),
	), sched
}

func noop(context.Context, *signalz.Event) error { return nil }
