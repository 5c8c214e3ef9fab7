package signalz

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
)

// collect computes the deduplicated union of live callbacks matching rt:
// unconditional subscribers, then each sender, then each key. A callback
// reachable several ways appears once, at its first position.
func (s *Signal) collect(ctx context.Context, rt resolvedRoute) ([]resolved, error) {
	var (
		live   []resolved
		seen   = make(map[Identity]struct{})
		pruned int
	)
	merge := func(found []resolved, n int) {
		pruned += n
		for _, r := range found {
			if _, dup := seen[r.id]; dup {
				continue
			}
			seen[r.id] = struct{}{}
			live = append(live, r)
		}
	}

	found, n, err := s.registry.collectUnconditional(ctx)
	if err != nil {
		return nil, err
	}
	merge(found, n)

	for _, sid := range rt.senderIDs {
		found, n, err := s.registry.bySender.collect(ctx, sid)
		if err != nil {
			return nil, err
		}
		merge(found, n)
	}

	for _, k := range rt.keys {
		found, n, err := s.registry.byKey.collect(ctx, k)
		if err != nil {
			return nil, err
		}
		merge(found, n)
	}

	if pruned > 0 {
		atomic.AddInt64(&s.pruned, int64(pruned))
		s.logger.DebugContext(ctx, "pruned expired callbacks", "count", pruned)
	}
	return live, nil
}

// schedule hands each live callback to the scheduler: async callbacks as
// tasks, sync callbacks as deferred calls. The callback context keeps the
// values of ctx but not its cancellation.
func (s *Signal) schedule(ctx context.Context, live []resolved, rt resolvedRoute, params Params) (int, error) {
	cctx := context.WithoutCancel(ctx)
	for i, r := range live {
		ev := &Event{
			Signal:  s,
			Senders: slices.Clone(rt.senders),
			Keys:    slices.Clone(rt.keys),
			Params:  params.Clone(),
		}
		run := s.bind(r, ev)

		var err error
		if r.mode == Async {
			err = s.scheduler.Go(cctx, run)
		} else {
			err = s.scheduler.CallSoon(cctx, run)
		}
		if err != nil {
			return i, err
		}
	}
	return len(live), nil
}

// bind closes r over its event. Failures are annotated with the signal
// and callback so the scheduler's error channel can attribute them.
func (s *Signal) bind(r resolved, ev *Event) func(context.Context) error {
	invoke, id := r.invoke, r.id
	return func(ctx context.Context) error {
		if err := invoke(ctx, ev); err != nil {
			return fmt.Errorf("signal %s: callback %s: %w", s.name, id, err)
		}
		return nil
	}
}
