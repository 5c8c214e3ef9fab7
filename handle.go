package signalz

import (
	"context"
	"reflect"
	"weak"
)

// handle is the registry's representation of one connected callback.
//
// The key is stable for the lifetime of the handle, including after a
// weak target has been collected, so an expired handle can still be
// located and removed from a set. Once the target is gone no new handle
// can produce the same key: disconnect-by-callback must happen while
// the target is alive.
type handle interface {
	key() any
	resolve() (resolved, bool)
}

// resolved is a live callback ready to be scheduled.
type resolved struct {
	id     Identity
	mode   Mode
	invoke HandlerFunc
}

// newHandle builds the handle for cb. A weak handle never extends the
// lifetime of the callback, or of the owner for bound callbacks.
func newHandle(cb *Callback, weakRef bool) handle {
	switch {
	case !weakRef:
		return strongHandle{cb: cb, id: cb.identity()}
	case cb.method != nil:
		return cb.method.weakHandle(cb.mode)
	default:
		return weakFuncHandle{ref: weak.Make(cb)}
	}
}

type strongKey struct {
	id Identity
}

type strongHandle struct {
	cb *Callback
	id Identity
}

func (h strongHandle) key() any {
	return strongKey{id: h.id}
}

func (h strongHandle) resolve() (resolved, bool) {
	return resolved{id: h.id, mode: h.cb.mode, invoke: h.cb.invoker()}, true
}

type weakFuncHandle struct {
	ref weak.Pointer[Callback]
}

func (h weakFuncHandle) key() any {
	return h.ref
}

func (h weakFuncHandle) resolve() (resolved, bool) {
	cb := h.ref.Value()
	if cb == nil {
		return resolved{}, false
	}
	return resolved{id: cb.identity(), mode: cb.mode, invoke: cb.fn}, true
}

type weakMethodKey[T any] struct {
	owner weak.Pointer[T]
	fn    uintptr
}

// weakMethodHandle keeps the owner and the method apart so that the
// handle never pins the owner.
type weakMethodHandle[T any] struct {
	owner weak.Pointer[T]
	fn    func(*T, context.Context, *Event) error
	fnPC  uintptr
	mode  Mode
}

func (h weakMethodHandle[T]) key() any {
	return weakMethodKey[T]{owner: h.owner, fn: h.fnPC}
}

func (h weakMethodHandle[T]) resolve() (resolved, bool) {
	owner := h.owner.Value()
	if owner == nil {
		return resolved{}, false
	}
	fn := h.fn
	return resolved{
		id:   Identity{typ: reflect.TypeOf(owner), addr: addressOf(owner), fn: h.fnPC},
		mode: h.mode,
		invoke: func(ctx context.Context, e *Event) error {
			return fn(owner, ctx, e)
		},
	}, true
}

// handleSet holds at most one handle per key.
type handleSet map[any]handle

func (s handleSet) add(h handle) {
	s[h.key()] = h
}

func (s handleSet) remove(h handle) bool {
	k := h.key()
	if _, ok := s[k]; !ok {
		return false
	}
	delete(s, k)
	return true
}

// collect resolves every handle, drops the expired ones in place and
// returns the live callbacks with the number pruned.
func (s handleSet) collect() ([]resolved, int) {
	live := make([]resolved, 0, len(s))
	pruned := 0
	for k, h := range s {
		r, ok := h.resolve()
		if !ok {
			delete(s, k)
			pruned++
			continue
		}
		live = append(live, r)
	}
	return live, pruned
}
