package signalz

import (
	"fmt"
	"reflect"
)

// Identity is the comparable identity of a sender.
//
// Senders are matched by location, not by value: two distinct objects
// that compare equal are different senders. Values without a location
// (ints, strings, plain structs) fall back to value identity. Pointers
// to zero-size types are rejected: Go may place distinct zero-size
// objects at the same address. A bound Callback used as a sender is
// identified by its owner and method, so two Bind calls over the same
// pair name the same sender.
type Identity struct {
	typ  reflect.Type
	addr uintptr
	fn   uintptr
	val  any
}

// IdentityOf computes the sender identity of target.
// Returns ErrUnhashable for nil, for pointers to zero-size types, and
// for values without a location that are not comparable or not equal
// to themselves.
func IdentityOf(target any) (Identity, error) {
	if cb, ok := target.(*Callback); ok && cb.valid() {
		return cb.identity(), nil
	}

	v := reflect.ValueOf(target)
	if !v.IsValid() {
		return Identity{}, fmt.Errorf("%w: nil sender", ErrUnhashable)
	}

	switch v.Kind() {
	case reflect.Pointer:
		// Distinct zero-size objects may share an address.
		if v.Type().Elem().Size() == 0 {
			return Identity{}, fmt.Errorf("%w: sender of zero-size type %T has no distinct location", ErrUnhashable, target)
		}
		return Identity{typ: v.Type(), addr: v.Pointer()}, nil
	case reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Slice:
		return Identity{typ: v.Type(), addr: v.Pointer()}, nil
	}

	if !selfEqual(v) {
		return Identity{}, fmt.Errorf("%w: sender of type %T has no identity", ErrUnhashable, target)
	}
	return Identity{typ: v.Type(), val: target}, nil
}

// String renders the identity for logs.
func (id Identity) String() string {
	switch {
	case id.typ == nil:
		return "<none>"
	case id.fn != 0:
		return fmt.Sprintf("%s@%#x.%#x", id.typ, id.addr, id.fn)
	case id.val != nil:
		return fmt.Sprintf("%s(%v)", id.typ, id.val)
	default:
		return fmt.Sprintf("%s@%#x", id.typ, id.addr)
	}
}

// keyOf validates a routing key. Keys are matched by value equality,
// so a key must be comparable and equal to itself (no NaN anywhere in it).
func keyOf(key any) (any, error) {
	v := reflect.ValueOf(key)
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: nil key", ErrUnhashable)
	}
	if !selfEqual(v) {
		return nil, fmt.Errorf("%w: key of type %T is not comparable", ErrUnhashable, key)
	}
	return key, nil
}

// selfEqual reports whether v can be found again as a map key.
func selfEqual(v reflect.Value) bool {
	return v.Comparable() && v.Equal(v)
}

func addressOf(v any) uintptr {
	return reflect.ValueOf(v).Pointer()
}
