package signalz

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// index maps a routing value (sender identity or key) to the set of
// handles registered against it.
//
// Locking has two tiers. The structural lock guards the entries map and
// the lock table, i.e. which keys exist. Each entry has its own lock
// guarding its handle set, so mutating one key never waits on another.
//
// Lock order: an entry lock may be held while taking the structural lock,
// never the other way round.
type index[K comparable] struct {
	structural *semaphore.Weighted
	entries    map[K]handleSet
	locks      lockTable[K]
}

func newIndex[K comparable]() *index[K] {
	return &index[K]{
		structural: semaphore.NewWeighted(1),
		entries:    make(map[K]handleSet),
		locks:      newLockTable[K](),
	}
}

// acquire returns the entry for k with its lock held.
// With create unset a missing entry yields a nil lock.
func (ix *index[K]) acquire(ctx context.Context, k K, create bool) (*entryLock, handleSet, error) {
	for {
		if err := acquireWeighted(ctx, ix.structural); err != nil {
			return nil, nil, err
		}
		set, ok := ix.entries[k]
		if !ok {
			if !create {
				ix.structural.Release(1)
				return nil, nil, nil
			}
			set = handleSet{}
			ix.entries[k] = set
		}
		l := ix.locks.getOrCreate(k)
		ix.structural.Release(1)

		if err := l.lock(ctx); err != nil {
			if !ok {
				ix.discardIfEmpty(k, l, set)
			}
			return nil, nil, err
		}
		if !l.retired {
			return l, set, nil
		}
		// Torn down between lookup and lock; look again.
		l.unlock()
	}
}

// release unlocks the entry, first removing it and its lock when the
// handle set is empty.
func (ix *index[K]) release(k K, l *entryLock, set handleSet) {
	if len(set) == 0 {
		// Teardown must not be abandoned halfway, so it ignores the
		// caller's context. The structural lock is only ever held briefly.
		_ = ix.structural.Acquire(context.Background(), 1)
		delete(ix.entries, k)
		ix.locks.retire(k)
		ix.structural.Release(1)
	}
	l.unlock()
}

// discardIfEmpty tears down an entry created by a caller that gave up
// waiting for its lock.
func (ix *index[K]) discardIfEmpty(k K, l *entryLock, set handleSet) {
	_ = l.lock(context.Background())
	if l.retired {
		l.unlock()
		return
	}
	ix.release(k, l, set)
}

func (ix *index[K]) add(ctx context.Context, k K, h handle) error {
	l, set, err := ix.acquire(ctx, k, true)
	if err != nil {
		return err
	}
	set.add(h)
	ix.release(k, l, set)
	return nil
}

func (ix *index[K]) remove(ctx context.Context, k K, h handle) (bool, error) {
	l, set, err := ix.acquire(ctx, k, false)
	if err != nil || l == nil {
		return false, err
	}
	removed := set.remove(h)
	ix.release(k, l, set)
	return removed, nil
}

// collect resolves the entry for k, pruning expired handles. The entry
// lock is held for the whole resolve-and-prune step.
func (ix *index[K]) collect(ctx context.Context, k K) ([]resolved, int, error) {
	l, set, err := ix.acquire(ctx, k, false)
	if err != nil || l == nil {
		return nil, 0, err
	}
	live, pruned := set.collect()
	ix.release(k, l, set)
	return live, pruned, nil
}

// keys snapshots the keys currently present.
func (ix *index[K]) keys(ctx context.Context) ([]K, error) {
	if err := acquireWeighted(ctx, ix.structural); err != nil {
		return nil, err
	}
	defer ix.structural.Release(1)

	keys := make([]K, 0, len(ix.entries))
	for k := range ix.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

// size returns the number of entries and the number of locks.
func (ix *index[K]) size(ctx context.Context) (int, int, error) {
	if err := acquireWeighted(ctx, ix.structural); err != nil {
		return 0, 0, err
	}
	defer ix.structural.Release(1)
	return len(ix.entries), ix.locks.len(), nil
}

// registry holds the three subscription indices of a Signal.
type registry struct {
	allLock  *entryLock
	all      handleSet
	bySender *index[Identity]
	byKey    *index[any]
}

func newRegistry() *registry {
	return &registry{
		allLock:  newEntryLock(),
		all:      handleSet{},
		bySender: newIndex[Identity](),
		byKey:    newIndex[any](),
	}
}

func (r *registry) addUnconditional(ctx context.Context, h handle) error {
	if err := r.allLock.lock(ctx); err != nil {
		return err
	}
	defer r.allLock.unlock()
	r.all.add(h)
	return nil
}

func (r *registry) removeUnconditional(ctx context.Context, h handle) (bool, error) {
	if err := r.allLock.lock(ctx); err != nil {
		return false, err
	}
	defer r.allLock.unlock()
	return r.all.remove(h), nil
}

func (r *registry) collectUnconditional(ctx context.Context) ([]resolved, int, error) {
	if err := r.allLock.lock(ctx); err != nil {
		return nil, 0, err
	}
	defer r.allLock.unlock()
	live, pruned := r.all.collect()
	return live, pruned, nil
}

// removeEverywhere removes h from every index. Sender and key entries
// are visited from a snapshot taken up front: entries created during the
// scan are not guaranteed to be visited.
func (r *registry) removeEverywhere(ctx context.Context, h handle) (int, error) {
	removed := 0
	ok, err := r.removeUnconditional(ctx, h)
	if err != nil {
		return removed, err
	}
	if ok {
		removed++
	}

	senders, err := r.bySender.keys(ctx)
	if err != nil {
		return removed, err
	}
	for _, id := range senders {
		ok, err := r.bySender.remove(ctx, id, h)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}

	keys, err := r.byKey.keys(ctx)
	if err != nil {
		return removed, err
	}
	for _, k := range keys {
		ok, err := r.byKey.remove(ctx, k, h)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (r *registry) unconditionalLen(ctx context.Context) (int, error) {
	if err := r.allLock.lock(ctx); err != nil {
		return 0, err
	}
	defer r.allLock.unlock()
	return len(r.all), nil
}
