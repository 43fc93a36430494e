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

	"gvisor.dev/locks/pkg/sync"
)

// Composite is a Lock over an ordered sequence of locks. Acquisition takes
// them front to back through the group operations and release gives them
// back to front.
//
// A Composite has no state of its own: whether it can be acquired is
// entirely decided by the locks it is made of.
type Composite struct {
	ls []Lock
}

var _ Lock = (*Composite)(nil)

// NewComposite returns a Composite over ls. The order of ls is the
// acquisition order; later changes to the caller's slice have no effect.
func NewComposite(ls ...Lock) *Composite {
	return &Composite{ls: append([]Lock(nil), ls...)}
}

// Len returns the number of locks in c.
func (c *Composite) Len() int {
	return len(c.ls)
}

// Lock implements Lock.Lock.
func (c *Composite) Lock() error {
	return LockAll(c.ls...)
}

// LockContext implements Lock.LockContext.
func (c *Composite) LockContext(ctx context.Context) error {
	return LockAllContext(ctx, c.ls...)
}

// TryLock implements Lock.TryLock.
func (c *Composite) TryLock() (bool, error) {
	return TryLockAll(c.ls...)
}

// TryLockTimeout implements Lock.TryLockTimeout. timeout bounds the
// acquisition of the whole sequence.
func (c *Composite) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return TryLockAllTimeout(ctx, timeout, c.ls...)
}

// Unlock implements Lock.Unlock.
func (c *Composite) Unlock() error {
	return UnlockAll(Reverse(c.ls)...)
}

// NewCond implements Lock.NewCond. Locks of different kinds have no common
// condition semantics, so it always fails.
func (c *Composite) NewCond() (*sync.Cond, error) {
	return nil, errNoCond("composite lock")
}

// String implements fmt.Stringer.String.
func (c *Composite) String() string {
	return fmt.Sprintf("composite%v", c.ls)
}
