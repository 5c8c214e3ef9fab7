package signalz

import (
	"context"
	"reflect"
	"weak"
)

// HandlerFunc is the shape of every subscriber callback.
// The returned error is reported through the scheduler, never to Send.
type HandlerFunc func(ctx context.Context, e *Event) error

// Mode selects how a matched callback is scheduled.
type Mode int

const (
	// Sync callbacks are queued as deferred calls on the scheduler.
	Sync Mode = iota
	// Async callbacks are started as independent scheduler tasks.
	Async
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case Sync:
		return "sync"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}

// Callback is a subscriber ready to be connected to a Signal.
//
// The classification {Sync, Async} x {Unbound, Bound} is fixed when the
// Callback is built and never re-derived.
//
// An unbound Callback (Func, AsyncFunc) is its own identity: keep the
// pointer to disconnect it later. When connected weakly, it expires as
// soon as nothing else references it.
//
// A bound Callback (Bind, BindAsync) is identified by its owner and
// method. The wrapper itself may be dropped after Connect; a weak
// connection expires when the owner becomes unreachable.
type Callback struct {
	mode   Mode
	fn     HandlerFunc
	method binding
}

// Func wraps fn as a synchronous, unbound Callback.
func Func(fn HandlerFunc) *Callback {
	return &Callback{mode: Sync, fn: fn}
}

// AsyncFunc wraps fn as an asynchronous, unbound Callback.
func AsyncFunc(fn HandlerFunc) *Callback {
	return &Callback{mode: Async, fn: fn}
}

// Bind binds a method expression to its owner as a synchronous Callback.
//
//	signalz.Bind(cache, (*Cache).OnInvalidate)
//
// fn should be a method expression; closures created from the same
// literal share a code address and therefore an identity.
func Bind[T any](owner *T, fn func(*T, context.Context, *Event) error) *Callback {
	return bind(Sync, owner, fn)
}

// BindAsync is Bind for asynchronous callbacks.
func BindAsync[T any](owner *T, fn func(*T, context.Context, *Event) error) *Callback {
	return bind(Async, owner, fn)
}

func bind[T any](mode Mode, owner *T, fn func(*T, context.Context, *Event) error) *Callback {
	if owner == nil || fn == nil {
		return &Callback{mode: mode}
	}
	return &Callback{mode: mode, method: &method[T]{owner: owner, fn: fn}}
}

// Mode reports how the callback will be scheduled.
func (c *Callback) Mode() Mode {
	return c.mode
}

// Bound reports whether the callback is bound to an owner.
func (c *Callback) Bound() bool {
	return c.method != nil
}

func (c *Callback) valid() bool {
	return c != nil && (c.fn != nil || c.method != nil)
}

func (c *Callback) identity() Identity {
	if c.method != nil {
		return c.method.identity()
	}
	return Identity{typ: callbackType, addr: addressOf(c)}
}

func (c *Callback) invoker() HandlerFunc {
	if c.method != nil {
		return c.method.invoker()
	}
	return c.fn
}

var callbackType = reflect.TypeOf((*Callback)(nil))

// binding is the owner-bound half of a Callback.
type binding interface {
	identity() Identity
	invoker() HandlerFunc
	weakHandle(mode Mode) handle
}

type method[T any] struct {
	owner *T
	fn    func(*T, context.Context, *Event) error
}

func (m *method[T]) identity() Identity {
	return Identity{typ: reflect.TypeOf(m.owner), addr: addressOf(m.owner), fn: addressOf(m.fn)}
}

func (m *method[T]) invoker() HandlerFunc {
	owner, fn := m.owner, m.fn
	return func(ctx context.Context, e *Event) error {
		return fn(owner, ctx, e)
	}
}

func (m *method[T]) weakHandle(mode Mode) handle {
	return weakMethodHandle[T]{
		owner: weak.Make(m.owner),
		fn:    m.fn,
		fnPC:  addressOf(m.fn),
		mode:  mode,
	}
}
