// Copyright 2026 The gVisor Authors.
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

// Package rwulock provides a reader/writer lock with a third, upgradable
// "update" mode.
//
// An update hold lets a goroutine read alongside any number of readers while
// guaranteeing that no other goroutine can write, or take an update hold,
// until it is released. The update holder can then take the write lock
// without ever releasing its view of the protected data. This supports the
// read-mostly pattern of reading, deciding whether a change is needed and
// only then writing, without lost updates and without holding the write lock
// for the whole operation.
//
// Per goroutine, the legal transitions are:
//
//	None   -> Read, Update or Write
//	Read   -> Read (reentrant)
//	Update -> Update (reentrant) or Write
//	Write  -> Write (reentrant)
//
// and their releases. Requesting Update or Write while holding Read, or Read
// while holding Update or Write, fails with an errors.IllegalState error:
// allowing it would deadlock as soon as two goroutines did it at once.
//
// Go has no goroutine-local storage, so every goroutine that uses an
// RWUMutex obtains its own Holder with NewHolder and acquires the lock
// through the Holder's views.
package rwulock

import (
	"context"
	"fmt"
	"time"

	"gvisor.dev/locks/pkg/amutex"
	"gvisor.dev/locks/pkg/errors"
	"gvisor.dev/locks/pkg/locks"
	"gvisor.dev/locks/pkg/sync"
	"gvisor.dev/locks/pkg/tmutex"
)

// RWUMutex is a reader/update/writer mutual exclusion lock.
//
// It is built from two primitives: the update mutex, held by update and
// write holders, which serializes every goroutine that may write; and a fair
// reader/writer mutex, held shared by readers and exclusively by writers.
// Taking the write lock acquires both in that order, as a group.
//
// The zero value for an RWUMutex is an unlocked mutex. An RWUMutex must not
// be copied after first use.
type RWUMutex struct {
	update tmutex.Mutex
	rw     amutex.RWMutex
}

// New returns a new unlocked RWUMutex.
func New() *RWUMutex {
	return &RWUMutex{}
}

// NewHolder returns a Holder through which one goroutine acquires m. A
// Holder must not be shared between goroutines; it can be dropped once it
// holds nothing.
func (m *RWUMutex) NewHolder() *Holder {
	h := &Holder{
		m:     m,
		owner: sync.NewOwner(),
	}
	h.readView = &view{h: h, mode: Read}
	h.updateView = &view{h: h, mode: Update}
	h.writeView = &view{h: h, mode: Write}
	return h
}

// Mode is the strongest mode in which a Holder holds its lock.
type Mode int

const (
	// None means that nothing is held.
	None Mode = iota
	// Read means shared access alongside other readers and one update
	// holder.
	Read
	// Update means shared access that excludes other update holders and
	// writers, and that can be upgraded to Write.
	Update
	// Write means exclusive access.
	Write
)

// String implements fmt.Stringer.String.
func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case Read:
		return "read"
	case Update:
		return "update"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// HoldCounts are the numbers of outstanding acquisitions of each view by one
// Holder. A write hold also counts as an update hold: Update >= Write.
type HoldCounts struct {
	Read   uint32
	Update uint32
	Write  uint32
}

// Holder is one goroutine's handle on an RWUMutex. It records the
// goroutine's hold counts, which decide the transitions it may make.
//
// A Holder is not safe for concurrent use.
type Holder struct {
	m      *RWUMutex
	owner  sync.Owner
	counts HoldCounts

	readView   *view
	updateView *view
	writeView  *view
}

// ReadLock returns the read view of the lock.
func (h *Holder) ReadLock() locks.Lock {
	return h.readView
}

// UpdateLock returns the update view of the lock.
func (h *Holder) UpdateLock() locks.Lock {
	return h.updateView
}

// WriteLock returns the write view of the lock.
func (h *Holder) WriteLock() locks.Lock {
	return h.writeView
}

// HoldCounts returns the current hold counts of h.
func (h *Holder) HoldCounts() HoldCounts {
	return h.counts
}

// Mode returns the strongest mode h holds.
func (h *Holder) Mode() Mode {
	switch {
	case h.counts.Write > 0:
		return Write
	case h.counts.Update > 0:
		return Update
	case h.counts.Read > 0:
		return Read
	default:
		return None
	}
}

// Owner returns the identity under which h holds the underlying primitives.
func (h *Holder) Owner() sync.Owner {
	return h.owner
}

// String implements fmt.Stringer.String.
func (h *Holder) String() string {
	return fmt.Sprintf("holder %v (%v, counts %+v)", h.owner, h.Mode(), h.counts)
}

// updateMutex is the update mutex held on behalf of h.
func (h *Holder) updateMutex() locks.Lock {
	return locks.Mutex(&h.m.update, h.owner)
}

// shared is the read side of the reader/writer mutex held on behalf of h.
func (h *Holder) shared() locks.Lock {
	return locks.Shared(&h.m.rw, h.owner)
}

// writeLocks is the acquisition order of a write hold.
func (h *Holder) writeLocks() []locks.Lock {
	return []locks.Lock{h.updateMutex(), locks.Exclusive(&h.m.rw, h.owner)}
}

// checkAcquire returns an errors.IllegalState error if h may not acquire
// mode in its current state.
func (h *Holder) checkAcquire(mode Mode) error {
	switch mode {
	case Read:
		if h.counts.Update > 0 {
			return errors.Newf(errors.IllegalState, "cannot acquire read lock while holding %v lock: release it first", h.Mode())
		}
	case Update, Write:
		if h.counts.Read > 0 {
			return errors.Newf(errors.IllegalState, "cannot acquire %v lock while holding read lock: release it first", mode)
		}
	}
	return nil
}

// checkRelease returns an errors.IllegalState error if h does not hold mode.
func (h *Holder) checkRelease(mode Mode) error {
	switch mode {
	case Read:
		if h.counts.Read == 0 {
			return errors.New(errors.IllegalState, "cannot release read lock: not held")
		}
	case Update:
		if h.counts.Update == 0 {
			return errors.New(errors.IllegalState, "cannot release update lock: not held")
		}
		if h.counts.Update <= h.counts.Write {
			return errors.New(errors.IllegalState, "cannot release update lock: only held as part of the write lock")
		}
	case Write:
		if h.counts.Write == 0 {
			return errors.New(errors.IllegalState, "cannot release write lock: not held")
		}
	}
	return nil
}

// acquire performs a checked acquisition of mode using a.
func (h *Holder) acquire(mode Mode, a acquisition) (bool, error) {
	if err := h.checkAcquire(mode); err != nil {
		misuse(h, err)
		acquisitions.Increment(mode.String(), outcomeIllegal)
		return false, err
	}

	var ok bool
	var err error
	switch mode {
	case Read:
		if ok, err = a.one(h.shared()); ok {
			h.counts.Read++
		}
	case Update:
		if ok, err = a.one(h.updateMutex()); ok {
			h.counts.Update++
		}
	case Write:
		ok, err = h.upgrade(a)
	}
	acquisitions.Increment(mode.String(), outcome(ok, err))
	return ok, err
}

// upgrade moves h from None or Update(n) to Write, recording one more update
// hold and one more write hold. It acquires the update mutex, reentrantly if
// h already holds it, and then waits for the readers to drain from the
// reader/writer mutex.
//
// If the reader/writer mutex cannot be acquired, the group acquisition has
// already released the update mutex hold taken by this call, and h is
// exactly as before. Any update hold h had before is kept.
func (h *Holder) upgrade(a acquisition) (bool, error) {
	ok, err := a.all(h.writeLocks()...)
	if !ok {
		return false, err
	}
	h.counts.Update++
	h.counts.Write++
	return true, nil
}

// release performs a checked release of mode.
func (h *Holder) release(mode Mode) error {
	if err := h.checkRelease(mode); err != nil {
		misuse(h, err)
		releases.Increment(mode.String(), outcomeIllegal)
		return err
	}

	switch mode {
	case Read:
		if err := h.shared().Unlock(); err != nil {
			return err
		}
		h.counts.Read--
	case Update:
		if err := h.updateMutex().Unlock(); err != nil {
			return err
		}
		h.counts.Update--
	case Write:
		// The exclusive side goes first, so the next upgrader can be
		// handed the update mutex only once it can make progress.
		if err := locks.UnlockAll(locks.Reverse(h.writeLocks())...); err != nil {
			return err
		}
		h.counts.Write--
		h.counts.Update--
	}
	releases.Increment(mode.String(), outcomeReleased)
	return nil
}

// acquisitionKind is one of the ways of acquiring a lock.
type acquisitionKind int

const (
	blocking acquisitionKind = iota
	interruptible
	nonBlocking
	timed
)

// acquisition is an acquisition strategy applied either to a single lock or,
// through the group operations, to an ordered sequence of locks.
type acquisition struct {
	kind    acquisitionKind
	ctx     context.Context
	timeout time.Duration
}

func (a acquisition) one(l locks.Lock) (bool, error) {
	switch a.kind {
	case blocking:
		err := l.Lock()
		return err == nil, err
	case interruptible:
		err := l.LockContext(a.ctx)
		return err == nil, err
	case nonBlocking:
		return l.TryLock()
	case timed:
		return l.TryLockTimeout(a.ctx, a.timeout)
	default:
		panic(fmt.Sprintf("unknown acquisition kind %d", a.kind))
	}
}

func (a acquisition) all(ls ...locks.Lock) (bool, error) {
	switch a.kind {
	case blocking:
		err := locks.LockAll(ls...)
		return err == nil, err
	case interruptible:
		err := locks.LockAllContext(a.ctx, ls...)
		return err == nil, err
	case nonBlocking:
		return locks.TryLockAll(ls...)
	case timed:
		return locks.TryLockAllTimeout(a.ctx, a.timeout, ls...)
	default:
		panic(fmt.Sprintf("unknown acquisition kind %d", a.kind))
	}
}

// view is the locks.Lock of one mode of a Holder.
type view struct {
	h    *Holder
	mode Mode
}

var _ locks.Lock = (*view)(nil)

// Lock implements locks.Lock.Lock.
func (v *view) Lock() error {
	_, err := v.h.acquire(v.mode, acquisition{kind: blocking})
	return err
}

// LockContext implements locks.Lock.LockContext.
func (v *view) LockContext(ctx context.Context) error {
	_, err := v.h.acquire(v.mode, acquisition{kind: interruptible, ctx: ctx})
	return err
}

// TryLock implements locks.Lock.TryLock.
func (v *view) TryLock() (bool, error) {
	return v.h.acquire(v.mode, acquisition{kind: nonBlocking})
}

// TryLockTimeout implements locks.Lock.TryLockTimeout.
func (v *view) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return v.h.acquire(v.mode, acquisition{kind: timed, ctx: ctx, timeout: timeout})
}

// Unlock implements locks.Lock.Unlock.
func (v *view) Unlock() error {
	return v.h.release(v.mode)
}

// NewCond implements locks.Lock.NewCond. It is not supported.
func (v *view) NewCond() (*sync.Cond, error) {
	return nil, errors.Newf(errors.Unsupported, "%v lock does not support condition variables", v.mode)
}

// String implements fmt.Stringer.String.
func (v *view) String() string {
	return fmt.Sprintf("%v lock of %v", v.mode, v.h.owner)
}
