package signalz

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// Option configures a Signal during creation.
type Option func(*config)

// config holds internal configuration for Signal creation.
type config struct {
	name      string
	scheduler Scheduler
	logger    *slog.Logger
	defaults  Params
}

// WithDefault declares a default parameter delivered to every callback.
func WithDefault(name string, value any) Option {
	return func(c *config) {
		c.defaults[name] = value
	}
}

// WithDefaults declares several default parameters at once.
func WithDefaults(params Params) Option {
	return func(c *config) {
		for name, value := range params {
			c.defaults[name] = value
		}
	}
}

// WithScheduler sets the scheduler callbacks are dispatched onto.
// Default is the process-wide Loop returned by Default.
func WithScheduler(s Scheduler) Option {
	return func(c *config) {
		c.scheduler = s
	}
}

// WithLogger sets the logger for registry activity.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithName names the Signal in log records.
// Default is a random UUID.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// Signal decouples producers from consumers.
//
// Callbacks connect with optional sender and key filters and are
// scheduled whenever a Send matches: unconditional subscribers always,
// sender subscribers when one of the sent senders is theirs (by
// identity), key subscribers when one of the sent keys is theirs (by
// value). A callback matching several ways is scheduled once.
//
// Thread Safety:
// Connect, Disconnect and Send may be called concurrently from any
// goroutine. Mutations of one sender's or key's subscribers never wait
// on another's. A Send sees each index consistently but the three
// indices are not read atomically together.
type Signal struct {
	name      string
	scheduler Scheduler
	logger    *slog.Logger
	defaults  Params
	registry  *registry

	// Metrics fields - zero initialization provides safe defaults
	sends     int64
	scheduled int64
	pruned    int64
}

// New creates a Signal with the given options.
//
// Default parameters are frozen here: Send may override their values
// but can never add new names. Names listed in ReservedParams are
// rejected with ErrReservedParam.
//
// Example:
//
//	sig, err := signalz.New(
//	    signalz.WithDefault("message", ""),
//	    signalz.WithDefault("payload", nil),
//	)
//	if err != nil {
//	    return err
//	}
func New(opts ...Option) (*Signal, error) {
	cfg := config{defaults: Params{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	for name := range cfg.defaults {
		if isReserved(name) {
			return nil, fmt.Errorf("%w: %q", ErrReservedParam, name)
		}
	}

	if cfg.name == "" {
		cfg.name = uuid.NewString()
	}
	if cfg.scheduler == nil {
		cfg.scheduler = Default()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return &Signal{
		name:      cfg.name,
		scheduler: cfg.scheduler,
		logger:    cfg.logger.With("signal", cfg.name),
		defaults:  cfg.defaults,
		registry:  newRegistry(),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(opts ...Option) *Signal {
	s, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the Signal's name.
func (s *Signal) Name() string {
	return s.name
}

// Scheduler returns the scheduler the Signal dispatches onto.
func (s *Signal) Scheduler() Scheduler {
	return s.scheduler
}

// Defaults returns a copy of the default parameters.
func (s *Signal) Defaults() Params {
	return s.defaults.Clone()
}

// Connect registers cb.
//
// Without filters cb is scheduled on every Send. With Sender, Senders,
// Key or Keys it is registered under each of them and scheduled only
// when a Send names one. Callbacks are held weakly unless Weak(false)
// is given.
//
// If ctx is done while waiting for a lock, Connect returns ctx.Err();
// registrations made before that point remain.
func (s *Signal) Connect(ctx context.Context, cb *Callback, opts ...ConnectOption) error {
	if !cb.valid() {
		return ErrNilCallback
	}
	cfg := newConnectConfig(opts)
	rt, err := cfg.route.resolve()
	if err != nil {
		return err
	}
	return s.connect(ctx, newHandle(cb, cfg.weak), rt, cb.identity(), cfg.weak)
}

func (s *Signal) connect(ctx context.Context, h handle, rt resolvedRoute, id Identity, weak bool) error {
	if !rt.filtered {
		if err := s.registry.addUnconditional(ctx, h); err != nil {
			return err
		}
	}
	for _, sid := range rt.senderIDs {
		if err := s.registry.bySender.add(ctx, sid, h); err != nil {
			return err
		}
	}
	for _, k := range rt.keys {
		if err := s.registry.byKey.add(ctx, k, h); err != nil {
			return err
		}
	}

	s.logger.DebugContext(ctx, "callback connected",
		"callback", id.String(),
		"weak", weak,
		"unconditional", !rt.filtered,
		"senders", len(rt.senderIDs),
		"keys", len(rt.keys),
	)
	return nil
}

// Disconnect removes cb.
//
// Without filters cb is removed from every index. With filters it is
// removed only from the named senders and keys and stays registered
// everywhere else. Weak must match the value used by Connect.
func (s *Signal) Disconnect(ctx context.Context, cb *Callback, opts ...ConnectOption) error {
	if !cb.valid() {
		return ErrNilCallback
	}
	cfg := newConnectConfig(opts)
	rt, err := cfg.route.resolve()
	if err != nil {
		return err
	}
	return s.disconnect(ctx, newHandle(cb, cfg.weak), rt, cb.identity(), true)
}

// disconnect removes h along rt. An unfiltered route removes h from every
// index when everywhere is set, from the unconditional index otherwise.
func (s *Signal) disconnect(ctx context.Context, h handle, rt resolvedRoute, id Identity, everywhere bool) error {
	removed := 0
	switch {
	case !rt.filtered && everywhere:
		n, err := s.registry.removeEverywhere(ctx, h)
		removed += n
		if err != nil {
			return err
		}
	case !rt.filtered:
		ok, err := s.registry.removeUnconditional(ctx, h)
		if err != nil {
			return err
		}
		if ok {
			removed++
		}
	}
	for _, sid := range rt.senderIDs {
		ok, err := s.registry.bySender.remove(ctx, sid, h)
		if err != nil {
			return err
		}
		if ok {
			removed++
		}
	}
	for _, k := range rt.keys {
		ok, err := s.registry.byKey.remove(ctx, k, h)
		if err != nil {
			return err
		}
		if ok {
			removed++
		}
	}

	s.logger.DebugContext(ctx, "callback disconnected",
		"callback", id.String(),
		"removed", removed,
	)
	return nil
}

// Send schedules every matching callback and returns how many were
// scheduled.
//
// Sender/Senders and Key/Keys are merged into one set each; an absent
// dimension matches nothing. Overrides given with With replace default
// parameter values for this send only; an undeclared name fails with
// ErrUnknownParam before anything is scheduled.
//
// Send returns once scheduling is done, not once callbacks have run.
// If the scheduler refuses a submission, Send returns the number
// scheduled so far with the scheduler's error.
func (s *Signal) Send(ctx context.Context, opts ...SendOption) (int, error) {
	cfg := newSendConfig(opts)

	params, err := s.params(cfg.overrides)
	if err != nil {
		return 0, err
	}
	rt, err := cfg.route.resolve()
	if err != nil {
		return 0, err
	}

	live, err := s.collect(ctx, rt)
	if err != nil {
		return 0, err
	}

	n, err := s.schedule(ctx, live, rt, params)
	atomic.AddInt64(&s.scheduled, int64(n))
	if err != nil {
		return n, err
	}
	atomic.AddInt64(&s.sends, 1)
	return n, nil
}

// params applies overrides to a copy of the defaults.
func (s *Signal) params(overrides Params) (Params, error) {
	params := s.defaults.Clone()
	for name, value := range overrides {
		if _, ok := s.defaults[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParam, name)
		}
		params[name] = value
	}
	return params, nil
}

// Metrics returns current Signal metrics.
// Registry sizes require the registry locks; counters are read atomically.
func (s *Signal) Metrics() Metrics {
	ctx := context.Background()
	all, _ := s.registry.unconditionalLen(ctx)
	senders, senderLocks, _ := s.registry.bySender.size(ctx)
	keys, keyLocks, _ := s.registry.byKey.size(ctx)

	return Metrics{
		Unconditional: int64(all),
		SenderEntries: int64(senders),
		SenderLocks:   int64(senderLocks),
		KeyEntries:    int64(keys),
		KeyLocks:      int64(keyLocks),
		Sends:         atomic.LoadInt64(&s.sends),
		Scheduled:     atomic.LoadInt64(&s.scheduled),
		Pruned:        atomic.LoadInt64(&s.pruned),
	}
}
