package signalz

import (
	"context"
	"sync/atomic"
)

// Subscription is a handle to a connection made with Subscribe.
// It remembers the callback and filters so the caller does not have to
// repeat them to disconnect.
//
// A Subscription never holds its callback more strongly than the
// connection itself: for a weak connection the target can still expire.
//
// Thread Safety:
// Unsubscribe is safe for concurrent use. Only the first call
// disconnects; later calls return ErrAlreadyDisconnected.
//
// Example:
//
//	sub, err := sig.Subscribe(ctx, signalz.Bind(cache, (*Cache).OnInvalidate), signalz.Key("users"))
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe(ctx)
type Subscription struct {
	signal *Signal
	handle handle
	route  resolvedRoute
	id     Identity
	done   atomic.Bool
}

// Subscribe is Connect returning a Subscription.
func (s *Signal) Subscribe(ctx context.Context, cb *Callback, opts ...ConnectOption) (*Subscription, error) {
	if !cb.valid() {
		return nil, ErrNilCallback
	}
	cfg := newConnectConfig(opts)
	rt, err := cfg.route.resolve()
	if err != nil {
		return nil, err
	}

	h := newHandle(cb, cfg.weak)
	id := cb.identity()
	if err := s.connect(ctx, h, rt, id, cfg.weak); err != nil {
		return nil, err
	}
	return &Subscription{signal: s, handle: h, route: rt, id: id}, nil
}

// Unsubscribe disconnects exactly what Subscribe connected.
//
// Returns:
//   - nil: the subscription was removed (or had already expired)
//   - ErrAlreadyDisconnected: Unsubscribe was already called
//   - ctx.Err(): ctx was done while waiting for a lock
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	if s.done.Swap(true) {
		return ErrAlreadyDisconnected
	}
	return s.signal.disconnect(ctx, s.handle, s.route, s.id, false)
}

// Signal returns the Signal the subscription belongs to.
func (s *Subscription) Signal() *Signal {
	return s.signal
}
