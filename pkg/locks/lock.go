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

// Package locks provides a common interface for owner-bound locks and the
// operations that acquire and release ordered groups of them atomically.
//
// A group acquisition either takes every lock of the group or, on any
// failure, releases the locks it already took (newest first) before
// returning, so that a failed call leaves no partial state behind.
package locks

import (
	"context"
	"time"

	"gvisor.dev/locks/pkg/errors"
	"gvisor.dev/locks/pkg/sync"
)

// Lock is a lock bound to a single holder. Implementations are used by one
// goroutine at a time.
type Lock interface {
	// Lock acquires the lock, waiting as long as necessary. It only fails on
	// misuse, e.g. a transition that the lock forbids.
	Lock() error

	// LockContext acquires the lock. If ctx is canceled first, it returns an
	// errors.Interrupted error and the lock is unchanged.
	LockContext(ctx context.Context) error

	// TryLock acquires the lock only if it is available immediately.
	TryLock() (bool, error)

	// TryLockTimeout acquires the lock, waiting at most timeout. A zero or
	// negative timeout does not wait. Running out of time is reported as
	// (false, nil).
	TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error)

	// Unlock releases one hold of the lock.
	Unlock() error

	// NewCond returns a condition variable bound to the lock. None of the
	// locks in this module support it.
	NewCond() (*sync.Cond, error)
}

// errNoCond is returned by NewCond.
func errNoCond(what string) error {
	return errors.Newf(errors.Unsupported, "%s does not support condition variables", what)
}
