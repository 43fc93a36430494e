// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package amutex provides the implementation of an abortable, fair,
// reentrant reader/writer mutex. Waits for either mode can be canceled through
// a context or bounded by a timeout.
package amutex

import (
	"context"
	stderrors "errors"
	"time"

	"gvisor.dev/locks/pkg/errors"
	"gvisor.dev/locks/pkg/sync"
)

// ErrTimedOut is returned by Block when its timer fires first.
var ErrTimedOut = stderrors.New("amutex: wait timed out")

// Block blocks until either receiving from ch succeeds (in which case it
// returns nil), receiving from timeout succeeds (ErrTimedOut) or ctx is
// canceled (an errors.Interrupted error wrapping ctx.Err()). A nil timeout
// never fires.
//
// A ready ch always wins over a concurrent timeout or cancellation.
func Block(ctx context.Context, timeout <-chan time.Time, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	default:
	}

	select {
	case <-ch:
		return nil
	case <-timeout:
		return ErrTimedOut
	case <-ctx.Done():
		return errors.Wrap(errors.Interrupted, "lock wait aborted", ctx.Err())
	}
}

// waiter is a queued acquisition request. ready is closed once the request
// has been granted; the grant is recorded in the RWMutex before that.
type waiter struct {
	owner     sync.Owner
	exclusive bool
	ready     chan struct{}
}

// RWMutex is a reader/writer mutual exclusion lock. The lock can be held by an
// arbitrary number of readers or a single writer, both keyed by sync.Owner.
// The zero value for an RWMutex is an unlocked mutex.
//
// Acquisitions are granted in request order: once a writer is queued, new
// readers queue behind it, so a steady stream of readers cannot starve it.
// Two exceptions keep the lock usable:
//   - an owner that already holds the lock for reading (or writing) is
//     granted further read holds immediately, since queuing it behind a writer
//     that waits for it would deadlock;
//   - TryRLock and TryLock barge: they succeed whenever the requested mode is
//     compatible with the current holders, regardless of queued waiters.
//
// Both modes are reentrant. An owner holding the write lock may also take
// read holds; an owner holding only read holds cannot take the write lock
// (the request waits for its own read holds, forever if it blocks).
//
// An RWMutex must not be copied after first use.
type RWMutex struct {
	mu sync.Mutex

	// readers maps each reading owner to its hold count. Guarded by mu.
	readers map[sync.Owner]int

	// writer is the owner of the write lock if writeHolds > 0. Guarded by
	// mu.
	writer     sync.Owner
	writeHolds int

	// waiters is the FIFO of queued requests. Guarded by mu.
	waiters []*waiter
}

// RLock locks rw for reading on behalf of o, waiting as long as necessary.
func (rw *RWMutex) RLock(o sync.Owner) {
	rw.acquire(context.Background(), o, false /* exclusive */, true /* block */, false /* barge */, nil)
}

// RLockContext locks rw for reading on behalf of o. It returns an
// errors.Interrupted error if ctx is canceled before the lock is acquired.
func (rw *RWMutex) RLockContext(ctx context.Context, o sync.Owner) error {
	_, err := rw.acquire(ctx, o, false /* exclusive */, true /* block */, false /* barge */, nil)
	return err
}

// TryRLock locks rw for reading on behalf of o if it can be done without
// waiting for a writer, and reports whether it succeeded.
func (rw *RWMutex) TryRLock(o sync.Owner) bool {
	ok, _ := rw.acquire(context.Background(), o, false /* exclusive */, false /* block */, true /* barge */, nil)
	return ok
}

// TryRLockTimeout locks rw for reading on behalf of o, waiting at most
// timeout. A non-positive timeout never waits.
func (rw *RWMutex) TryRLockTimeout(ctx context.Context, o sync.Owner, timeout time.Duration) (bool, error) {
	return rw.acquireTimeout(ctx, o, false /* exclusive */, timeout)
}

// RUnlock releases one read hold of o.
func (rw *RWMutex) RUnlock(o sync.Owner) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	n := rw.readers[o]
	if n == 0 {
		return errors.Newf(errors.IllegalState, "amutex: RUnlock by %v, which holds no read lock", o)
	}
	if n == 1 {
		delete(rw.readers, o)
	} else {
		rw.readers[o] = n - 1
	}
	rw.dispatchLocked()
	return nil
}

// Lock locks rw for writing on behalf of o, waiting as long as necessary.
func (rw *RWMutex) Lock(o sync.Owner) {
	rw.acquire(context.Background(), o, true /* exclusive */, true /* block */, false /* barge */, nil)
}

// LockContext locks rw for writing on behalf of o. It returns an
// errors.Interrupted error if ctx is canceled before the lock is acquired.
func (rw *RWMutex) LockContext(ctx context.Context, o sync.Owner) error {
	_, err := rw.acquire(ctx, o, true /* exclusive */, true /* block */, false /* barge */, nil)
	return err
}

// TryLock locks rw for writing on behalf of o if no other owner holds it in
// any mode, and reports whether it succeeded.
func (rw *RWMutex) TryLock(o sync.Owner) bool {
	ok, _ := rw.acquire(context.Background(), o, true /* exclusive */, false /* block */, true /* barge */, nil)
	return ok
}

// TryLockTimeout locks rw for writing on behalf of o, waiting at most
// timeout. A non-positive timeout never waits.
func (rw *RWMutex) TryLockTimeout(ctx context.Context, o sync.Owner, timeout time.Duration) (bool, error) {
	return rw.acquireTimeout(ctx, o, true /* exclusive */, timeout)
}

// Unlock releases one write hold of o.
func (rw *RWMutex) Unlock(o sync.Owner) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.writeHolds == 0 || rw.writer != o {
		return errors.Newf(errors.IllegalState, "amutex: Unlock by %v, which does not hold the write lock", o)
	}
	rw.writeHolds--
	if rw.writeHolds == 0 {
		rw.writer = sync.NoOwner
	}
	rw.dispatchLocked()
	return nil
}

// ReadHoldCount returns the number of read holds of o.
func (rw *RWMutex) ReadHoldCount(o sync.Owner) int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.readers[o]
}

// WriteHoldCount returns the number of write holds of o.
func (rw *RWMutex) WriteHoldCount(o sync.Owner) int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.writer != o {
		return 0
	}
	return rw.writeHolds
}

// Readers returns the number of owners holding the read lock.
func (rw *RWMutex) Readers() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return len(rw.readers)
}

// IsWriteLocked reports whether any owner holds the write lock.
func (rw *RWMutex) IsWriteLocked() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.writeHolds > 0
}

// QueueLen returns the number of queued requests.
func (rw *RWMutex) QueueLen() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return len(rw.waiters)
}

func (rw *RWMutex) acquireTimeout(ctx context.Context, o sync.Owner, exclusive bool, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return rw.acquire(ctx, o, exclusive, false /* block */, false /* barge */, nil)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	return rw.acquire(ctx, o, exclusive, true /* block */, false /* barge */, t.C)
}

// acquire grants the request immediately if possible. Otherwise, if block is
// set, it queues the request and waits for the grant, the timeout or the
// cancellation of ctx, whichever comes first.
//
// A timeout is reported as (false, nil); a cancellation as (false, err).
func (rw *RWMutex) acquire(ctx context.Context, o sync.Owner, exclusive, block, barge bool, timeout <-chan time.Time) (bool, error) {
	rw.mu.Lock()
	if rw.grantableLocked(o, exclusive, barge) {
		rw.grantLocked(o, exclusive)
		rw.mu.Unlock()
		return true, nil
	}
	if !block {
		rw.mu.Unlock()
		return false, nil
	}
	w := &waiter{owner: o, exclusive: exclusive, ready: make(chan struct{})}
	rw.waiters = append(rw.waiters, w)
	rw.mu.Unlock()

	err := Block(ctx, timeout, w.ready)
	if err == nil {
		return true, nil
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()
	select {
	case <-w.ready:
		// Granted concurrently with the abort; the grant wins.
		return true, nil
	default:
	}
	rw.removeLocked(w)
	// w may have been blocking compatible requests queued behind it.
	rw.dispatchLocked()
	if err == ErrTimedOut {
		return false, nil
	}
	return false, err
}

// grantableLocked reports whether o may be granted the given mode right now.
//
// Preconditions: rw.mu is held.
func (rw *RWMutex) grantableLocked(o sync.Owner, exclusive, barge bool) bool {
	if rw.writeHolds > 0 {
		// Only the writer itself may take more holds.
		return rw.writer == o
	}
	if exclusive {
		if len(rw.readers) > 0 {
			return false
		}
	} else if rw.readers[o] > 0 {
		return true
	}
	return barge || len(rw.waiters) == 0
}

// Preconditions: rw.mu is held.
func (rw *RWMutex) grantLocked(o sync.Owner, exclusive bool) {
	if exclusive {
		rw.writer = o
		rw.writeHolds++
		return
	}
	if rw.readers == nil {
		rw.readers = make(map[sync.Owner]int)
	}
	rw.readers[o]++
}

// dispatchLocked grants queued requests in order until the head of the queue
// is incompatible with the current holders.
//
// Preconditions: rw.mu is held.
func (rw *RWMutex) dispatchLocked() {
	for len(rw.waiters) > 0 {
		w := rw.waiters[0]
		if rw.writeHolds > 0 && rw.writer != w.owner {
			return
		}
		if w.exclusive && len(rw.readers) > 0 {
			return
		}
		rw.grantLocked(w.owner, w.exclusive)
		rw.waiters[0] = nil
		rw.waiters = rw.waiters[1:]
		close(w.ready)
	}
}

// Preconditions: rw.mu is held.
func (rw *RWMutex) removeLocked(w *waiter) {
	for i, x := range rw.waiters {
		if x == w {
			rw.waiters = append(rw.waiters[:i], rw.waiters[i+1:]...)
			return
		}
	}
}
