package signalz

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// entryLock is an awaitable, FIFO-fair mutex guarding one entry's
// handle set. It gives real mutual exclusion across goroutines.
type entryLock struct {
	sem *semaphore.Weighted

	// retired is set, while the lock is held, when the entry it guards
	// is torn down. A goroutine that acquires a retired lock lost a race
	// with the teardown and must look the entry up again.
	retired bool
}

func newEntryLock() *entryLock {
	return &entryLock{sem: semaphore.NewWeighted(1)}
}

// lock blocks until the lock is held or ctx is done.
func (l *entryLock) lock(ctx context.Context) error {
	return acquireWeighted(ctx, l.sem)
}

// acquireWeighted takes one unit of sem. ctx only bounds the wait: a free
// semaphore is taken even when ctx is already done.
func acquireWeighted(ctx context.Context, sem *semaphore.Weighted) error {
	if sem.TryAcquire(1) {
		return nil
	}
	return sem.Acquire(ctx, 1)
}

func (l *entryLock) unlock() {
	l.sem.Release(1)
}

// lockTable allocates one entryLock per key on first use and drops it
// when the key's entry is removed.
//
// A lockTable is not synchronized on its own: every method must be called
// with the owning index's structural lock held.
type lockTable[K comparable] struct {
	locks map[K]*entryLock
}

func newLockTable[K comparable]() lockTable[K] {
	return lockTable[K]{locks: make(map[K]*entryLock)}
}

// getOrCreate returns the lock for k, creating it if needed.
// Under the structural lock the first creator always wins.
func (t lockTable[K]) getOrCreate(k K) *entryLock {
	if l, ok := t.locks[k]; ok {
		return l
	}
	l := newEntryLock()
	t.locks[k] = l
	return l
}

func (t lockTable[K]) get(k K) (*entryLock, bool) {
	l, ok := t.locks[k]
	return l, ok
}

// retire removes the lock for k and marks it retired.
// The caller must hold both the structural lock and the lock for k.
func (t lockTable[K]) retire(k K) {
	if l, ok := t.locks[k]; ok {
		l.retired = true
		delete(t.locks, k)
	}
}

func (t lockTable[K]) len() int {
	return len(t.locks)
}
