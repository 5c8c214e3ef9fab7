package signalz

import "maps"

// Params maps default parameter names to values.
type Params map[string]any

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// Event is what every scheduled callback receives.
//
// Senders and Keys are the full merged routing sets of the triggering
// Send, not just the values the callback was registered against.
// Params holds every default parameter with the send's overrides applied.
// Each callback gets its own Event; mutating it affects no other callback.
type Event struct {
	Signal  *Signal
	Senders []any
	Keys    []any
	Params  Params
}

// Param returns the named parameter.
func (e *Event) Param(name string) (any, bool) {
	v, ok := e.Params[name]
	return v, ok
}

// HasSender reports whether sender was part of the send, by identity.
func (e *Event) HasSender(sender any) bool {
	id, err := IdentityOf(sender)
	if err != nil {
		return false
	}
	for _, s := range e.Senders {
		if other, err := IdentityOf(s); err == nil && other == id {
			return true
		}
	}
	return false
}

// HasKey reports whether key was part of the send, by value.
func (e *Event) HasKey(key any) bool {
	if _, err := keyOf(key); err != nil {
		return false
	}
	for _, k := range e.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Param extracts a typed parameter from an Event. The second result is
// false when the parameter is missing, nil, or of another type.
//
//	msg, ok := signalz.Param[string](e, "message")
func Param[T any](e *Event, name string) (T, bool) {
	v, ok := e.Params[name]
	if !ok || v == nil {
		var zero T
		return zero, false
	}
	val, ok := v.(T)
	return val, ok
}
