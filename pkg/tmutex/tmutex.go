// Copyright 2018 Google LLC
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

// Package tmutex provides the implementation of a reentrant, fair mutex that
// implements TryLock, timed and cancelable acquisition in addition to Lock and
// Unlock.
package tmutex

import (
	"context"
	"time"

	"gvisor.dev/locks/pkg/amutex"
	"gvisor.dev/locks/pkg/errors"
	"gvisor.dev/locks/pkg/sync"
)

// Mutex is a mutual exclusion primitive held on behalf of a sync.Owner. An
// owner may lock a Mutex it already holds; it must then unlock it as many
// times.
//
// When a Mutex is unlocked and goroutines are waiting, it is handed directly
// to the one that has waited longest. TryLock does not wait and does not queue.
//
// The zero value for a Mutex is an unlocked mutex. A Mutex must not be copied
// after first use.
type Mutex struct {
	mu sync.Mutex

	// owner holds the mutex if holds > 0. Guarded by mu.
	owner sync.Owner
	holds int

	// waiters is the FIFO of blocked acquisitions. Guarded by mu.
	waiters []*waiter
}

type waiter struct {
	owner sync.Owner

	// ready is closed once the mutex has been handed to owner.
	ready chan struct{}
}

// Lock locks m on behalf of o, waiting as long as necessary.
func (m *Mutex) Lock(o sync.Owner) {
	m.lock(context.Background(), o, true /* block */, nil)
}

// LockContext locks m on behalf of o. If ctx is canceled before the mutex is
// acquired, it returns an errors.Interrupted error and m is unchanged.
func (m *Mutex) LockContext(ctx context.Context, o sync.Owner) error {
	_, err := m.lock(ctx, o, true /* block */, nil)
	return err
}

// TryLock locks m on behalf of o if it is unlocked or already held by o, and
// reports whether it succeeded.
func (m *Mutex) TryLock(o sync.Owner) bool {
	ok, _ := m.lock(context.Background(), o, false /* block */, nil)
	return ok
}

// TryLockTimeout locks m on behalf of o, waiting at most timeout. A
// non-positive timeout behaves like TryLock. Running out of time is reported
// as (false, nil); cancellation of ctx as (false, err).
func (m *Mutex) TryLockTimeout(ctx context.Context, o sync.Owner, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return m.lock(ctx, o, false /* block */, nil)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	return m.lock(ctx, o, true /* block */, t.C)
}

// Unlock releases one hold of o on m. It returns an errors.IllegalState error
// if o does not hold m.
func (m *Mutex) Unlock(o sync.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holds == 0 || m.owner != o {
		return errors.Newf(errors.IllegalState, "tmutex: Unlock by %v, which does not hold the mutex", o)
	}
	m.holds--
	if m.holds > 0 {
		return nil
	}
	m.owner = sync.NoOwner
	if len(m.waiters) > 0 {
		w := m.waiters[0]
		m.waiters[0] = nil
		m.waiters = m.waiters[1:]
		m.owner, m.holds = w.owner, 1
		close(w.ready)
	}
	return nil
}

// HoldCount returns the number of holds of o on m.
func (m *Mutex) HoldCount(o sync.Owner) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != o {
		return 0
	}
	return m.holds
}

// IsLocked reports whether any owner holds m.
func (m *Mutex) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holds > 0
}

// QueueLen returns the number of goroutines waiting for m.
func (m *Mutex) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

func (m *Mutex) lock(ctx context.Context, o sync.Owner, block bool, timeout <-chan time.Time) (bool, error) {
	m.mu.Lock()
	switch {
	case m.holds == 0:
		// Unlock hands the mutex to the first waiter, so an unlocked mutex
		// has no waiters.
		m.owner, m.holds = o, 1
		m.mu.Unlock()
		return true, nil
	case m.owner == o:
		m.holds++
		m.mu.Unlock()
		return true, nil
	case !block:
		m.mu.Unlock()
		return false, nil
	}
	w := &waiter{owner: o, ready: make(chan struct{})}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	err := amutex.Block(ctx, timeout, w.ready)
	if err == nil {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-w.ready:
		// Handed over concurrently with the abort; the grant wins.
		return true, nil
	default:
	}
	for i, x := range m.waiters {
		if x == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			break
		}
	}
	if err == amutex.ErrTimedOut {
		return false, nil
	}
	return false, err
}
