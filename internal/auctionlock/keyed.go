// Package auctionlock serializes mutations per auction. Each auction id gets
// its own FIFO weighted semaphore; waiting is bounded both in time and in the
// number of queued callers.
package auctionlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"antique-auction/internal/biddingerrors"

	"golang.org/x/sync/semaphore"
)

const (
	DefaultTimeout    = 2 * time.Second
	DefaultMaxWaiters = 64
)

type entry struct {
	sem  *semaphore.Weighted
	refs int // holder plus waiters
}

// Keyed hands out one exclusive lock per key. Entries are dropped once nobody
// holds or waits on them.
type Keyed struct {
	mu         sync.Mutex
	entries    map[string]*entry
	timeout    time.Duration
	maxWaiters int
}

// New creates a Keyed lock. A zero timeout waits until ctx is done; a zero
// maxWaiters leaves the queue unbounded.
func New(timeout time.Duration, maxWaiters int) *Keyed {
	return &Keyed{
		entries:    make(map[string]*entry),
		timeout:    timeout,
		maxWaiters: maxWaiters,
	}
}

// Lock blocks until the lock for key is held and returns its release func.
// It fails with ErrServiceBusy when the queue is full or the wait times out.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	if k.maxWaiters > 0 && e.refs > k.maxWaiters {
		k.mu.Unlock()
		return nil, fmt.Errorf("lock auction %s: %w - %d callers already queued", key, biddingerrors.ErrServiceBusy, e.refs-1)
	}
	e.refs++
	k.mu.Unlock()

	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.release(key, e)
		return nil, fmt.Errorf("lock auction %s: %w - %v", key, biddingerrors.ErrServiceBusy, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.release(key, e)
		})
	}, nil
}

// Len returns the number of keys currently held or waited on.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}
