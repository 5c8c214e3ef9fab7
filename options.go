package signalz

import "slices"

// ReservedParams lists the names that can never be used as default
// parameters because they are taken by routing.
var ReservedParams = []string{"callback", "sender", "senders", "key", "keys", "weak"}

func isReserved(name string) bool {
	return slices.Contains(ReservedParams, name)
}

// ConnectOption configures Connect, Disconnect and Subscribe.
type ConnectOption interface {
	applyConnect(*connectConfig)
}

// SendOption configures Send.
type SendOption interface {
	applySend(*sendConfig)
}

// Filter restricts a subscription or a send to senders and keys.
// A Filter is both a ConnectOption and a SendOption.
type Filter struct {
	given   bool
	senders []any
	keys    []any
}

// Sender filters on a single sender, matched by identity.
// A nil sender is the same as no filter. Pointers to zero-size types
// cannot be senders.
func Sender(sender any) Filter {
	if sender == nil {
		return Filter{}
	}
	return Filter{given: true, senders: []any{sender}}
}

// Senders filters on several senders. An empty list is still a filter:
// it matches nothing.
func Senders(senders ...any) Filter {
	return Filter{given: true, senders: senders}
}

// Key filters on a single key, matched by value.
// A nil key is the same as no filter. Keys holding NaN are rejected.
func Key(key any) Filter {
	if key == nil {
		return Filter{}
	}
	return Filter{given: true, keys: []any{key}}
}

// Keys filters on several keys. An empty list is still a filter:
// it matches nothing.
func Keys(keys ...any) Filter {
	return Filter{given: true, keys: keys}
}

func (f Filter) applyConnect(c *connectConfig) {
	c.route.merge(f)
}

func (f Filter) applySend(c *sendConfig) {
	c.route.merge(f)
}

type weakOption bool

// Weak selects whether the subscription holds the callback weakly
// (the default) or strongly. Disconnect must use the same value as
// the matching Connect.
func Weak(weak bool) ConnectOption {
	return weakOption(weak)
}

func (w weakOption) applyConnect(c *connectConfig) {
	c.weak = bool(w)
}

type override struct {
	name  string
	value any
}

// With overrides a default parameter for one send.
// The name must have been declared when the Signal was created.
func With(name string, value any) SendOption {
	return override{name: name, value: value}
}

func (o override) applySend(c *sendConfig) {
	if c.overrides == nil {
		c.overrides = Params{}
	}
	c.overrides[o.name] = o.value
}

type connectConfig struct {
	route route
	weak  bool
}

func newConnectConfig(opts []ConnectOption) connectConfig {
	cfg := connectConfig{weak: true}
	for _, opt := range opts {
		opt.applyConnect(&cfg)
	}
	return cfg
}

type sendConfig struct {
	route     route
	overrides Params
}

func newSendConfig(opts []SendOption) sendConfig {
	var cfg sendConfig
	for _, opt := range opts {
		opt.applySend(&cfg)
	}
	return cfg
}

// route accumulates the filters of one call.
type route struct {
	filtered bool
	senders  []any
	keys     []any
}

func (r *route) merge(f Filter) {
	if !f.given {
		return
	}
	r.filtered = true
	r.senders = append(r.senders, f.senders...)
	r.keys = append(r.keys, f.keys...)
}

// resolvedRoute is a route with nil values dropped and duplicates
// merged: senders by identity, keys by value.
type resolvedRoute struct {
	filtered  bool
	senders   []any
	senderIDs []Identity
	keys      []any
}

func (r route) resolve() (resolvedRoute, error) {
	out := resolvedRoute{filtered: r.filtered}

	seenSenders := make(map[Identity]struct{}, len(r.senders))
	for _, s := range r.senders {
		if s == nil {
			continue
		}
		id, err := IdentityOf(s)
		if err != nil {
			return resolvedRoute{}, err
		}
		if _, dup := seenSenders[id]; dup {
			continue
		}
		seenSenders[id] = struct{}{}
		out.senders = append(out.senders, s)
		out.senderIDs = append(out.senderIDs, id)
	}

	seenKeys := make(map[any]struct{}, len(r.keys))
	for _, k := range r.keys {
		if k == nil {
			continue
		}
		key, err := keyOf(k)
		if err != nil {
			return resolvedRoute{}, err
		}
		if _, dup := seenKeys[key]; dup {
			continue
		}
		seenKeys[key] = struct{}{}
		out.keys = append(out.keys, key)
	}
	return out, nil
}
