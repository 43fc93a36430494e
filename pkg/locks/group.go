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

package locks

import (
	"context"
	"time"

	"gvisor.dev/locks/pkg/cleanup"
	"gvisor.dev/locks/pkg/log"
)

// acquireFunc acquires a single lock of a group. A false result without an
// error means the lock was not available in time.
type acquireFunc func(l Lock) (bool, error)

// acquireAll acquires ls front to back with acquire. If any acquisition
// fails, the locks acquired so far are released in reverse order and the
// failure is returned unchanged.
func acquireAll(ls []Lock, acquire acquireFunc) (bool, error) {
	var cu cleanup.Cleanup
	defer cu.Clean()

	for i, l := range ls {
		l := l
		ok, err := acquire(l)
		if err != nil || !ok {
			if cu.Len() > 0 {
				log.Debugf("Rolling back %d of %d locks (acquired: %t, err: %v)", i, len(ls), ok, err)
			}
			return false, err
		}
		cu.Add(func() { rollback(l) })
	}
	cu.Release()
	return true, nil
}

// rollback releases l on a failure path. A release error cannot replace the
// error that caused the rollback, so it is only logged.
func rollback(l Lock) {
	if err := l.Unlock(); err != nil {
		log.Warningf("Failed to release %v during rollback: %v", l, err)
	}
}

// LockAll acquires every lock of ls in order, waiting as long as necessary.
func LockAll(ls ...Lock) error {
	_, err := acquireAll(ls, func(l Lock) (bool, error) {
		return true, l.Lock()
	})
	return err
}

// LockAllContext acquires every lock of ls in order. If ctx is canceled
// while waiting for lock k, locks 0..k-1 are released before the
// errors.Interrupted error is returned.
func LockAllContext(ctx context.Context, ls ...Lock) error {
	_, err := acquireAll(ls, func(l Lock) (bool, error) {
		return true, l.LockContext(ctx)
	})
	return err
}

// TryLockAll acquires every lock of ls in order without waiting. It succeeds
// only if every lock was available.
func TryLockAll(ls ...Lock) (bool, error) {
	return acquireAll(ls, Lock.TryLock)
}

// TryLockAllTimeout acquires every lock of ls in order within a single
// timeout shared by the whole group: each lock is given what remains of it,
// which may be zero or negative. Such a lock is still acquired if it is
// available immediately.
func TryLockAllTimeout(ctx context.Context, timeout time.Duration, ls ...Lock) (bool, error) {
	start := time.Now()
	return acquireAll(ls, func(l Lock) (bool, error) {
		return l.TryLockTimeout(ctx, timeout-time.Since(start))
	})
}

// UnlockAll releases every lock of ls in the given order. It attempts every
// release even if one fails, and returns the first error.
func UnlockAll(ls ...Lock) error {
	var first error
	for _, l := range ls {
		if err := l.Unlock(); err != nil {
			if first == nil {
				first = err
				continue
			}
			log.Warningf("Failed to release %v: %v", l, err)
		}
	}
	return first
}

// Reverse returns a copy of ls in back to front order.
func Reverse(ls []Lock) []Lock {
	r := make([]Lock, len(ls))
	for i, l := range ls {
		r[len(ls)-1-i] = l
	}
	return r
}
