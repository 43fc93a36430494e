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
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"gvisor.dev/locks/pkg/errors"
	"gvisor.dev/locks/pkg/sync"
)

// DefaultRetryDelay is the interval at which a waiting FileLock polls its
// file.
const DefaultRetryDelay = 10 * time.Millisecond

// FileLock is a Lock on an advisory lock file, shared with other processes
// and with other FileLocks on the same path. The lock is exclusive and held
// by the FileLock as a whole; acquisitions nest and are counted.
//
// Waiting acquisitions other than Lock poll the file every RetryDelay.
type FileLock struct {
	// RetryDelay is the polling interval. If zero, DefaultRetryDelay is
	// used.
	RetryDelay time.Duration

	fl *flock.Flock

	mu    sync.Mutex
	holds int
}

var _ Lock = (*FileLock)(nil)

// NewFileLock returns an unlocked FileLock on path. The file is created on
// first acquisition if it does not exist.
func NewFileLock(path string) *FileLock {
	return &FileLock{fl: flock.New(path)}
}

// Path returns the path of the lock file.
func (f *FileLock) Path() string {
	return f.fl.Path()
}

// Holds returns the number of outstanding acquisitions of f.
func (f *FileLock) Holds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holds
}

// nest records another hold if f is already held.
func (f *FileLock) nest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holds == 0 {
		return false
	}
	f.holds++
	return true
}

func (f *FileLock) acquired() {
	f.mu.Lock()
	f.holds++
	f.mu.Unlock()
}

func (f *FileLock) retryDelay() time.Duration {
	if f.RetryDelay > 0 {
		return f.RetryDelay
	}
	return DefaultRetryDelay
}

// Lock implements Lock.Lock.
func (f *FileLock) Lock() error {
	if f.nest() {
		return nil
	}
	if err := f.fl.Lock(); err != nil {
		return fmt.Errorf("acquiring lock file %q: %w", f.Path(), err)
	}
	f.acquired()
	return nil
}

// LockContext implements Lock.LockContext.
func (f *FileLock) LockContext(ctx context.Context) error {
	ok, err := f.TryLock()
	if err != nil || ok {
		return err
	}
	ok, err = f.fl.TryLockContext(ctx, f.retryDelay())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(errors.Interrupted, fmt.Sprintf("waiting for lock file %q", f.Path()), ctxErr)
		}
		return fmt.Errorf("acquiring lock file %q: %w", f.Path(), err)
	}
	if ok {
		f.acquired()
	}
	return nil
}

// TryLock implements Lock.TryLock.
func (f *FileLock) TryLock() (bool, error) {
	if f.nest() {
		return true, nil
	}
	ok, err := f.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring lock file %q: %w", f.Path(), err)
	}
	if ok {
		f.acquired()
	}
	return ok, nil
}

// TryLockTimeout implements Lock.TryLockTimeout.
func (f *FileLock) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	ok, err := f.TryLock()
	if err != nil || ok || timeout <= 0 {
		return ok, err
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ok, err = f.fl.TryLockContext(tctx, f.retryDelay())
	switch {
	case err == nil:
		if ok {
			f.acquired()
		}
		return ok, nil
	case ctx.Err() != nil:
		return false, errors.Wrap(errors.Interrupted, fmt.Sprintf("waiting for lock file %q", f.Path()), ctx.Err())
	case tctx.Err() != nil:
		// Out of time.
		return false, nil
	default:
		return false, fmt.Errorf("acquiring lock file %q: %w", f.Path(), err)
	}
}

// Unlock implements Lock.Unlock. The file is unlocked once every hold has
// been released.
func (f *FileLock) Unlock() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holds == 0 {
		return errors.Newf(errors.IllegalState, "unlock of lock file %q, which is not held", f.Path())
	}
	if f.holds > 1 {
		f.holds--
		return nil
	}
	if err := f.fl.Unlock(); err != nil {
		return fmt.Errorf("releasing lock file %q: %w", f.Path(), err)
	}
	f.holds = 0
	return nil
}

// NewCond implements Lock.NewCond.
func (f *FileLock) NewCond() (*sync.Cond, error) {
	return nil, errNoCond("file lock")
}

// String implements fmt.Stringer.String.
func (f *FileLock) String() string {
	return fmt.Sprintf("file(%s)", f.Path())
}
