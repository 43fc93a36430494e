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

	"gvisor.dev/locks/pkg/amutex"
	"gvisor.dev/locks/pkg/sync"
	"gvisor.dev/locks/pkg/tmutex"
)

// Mutex returns m, held on behalf of o, as a Lock.
func Mutex(m *tmutex.Mutex, o sync.Owner) Lock {
	return mutexLock{m: m, o: o}
}

type mutexLock struct {
	m *tmutex.Mutex
	o sync.Owner
}

func (l mutexLock) Lock() error {
	l.m.Lock(l.o)
	return nil
}

func (l mutexLock) LockContext(ctx context.Context) error {
	return l.m.LockContext(ctx, l.o)
}

func (l mutexLock) TryLock() (bool, error) {
	return l.m.TryLock(l.o), nil
}

func (l mutexLock) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return l.m.TryLockTimeout(ctx, l.o, timeout)
}

func (l mutexLock) Unlock() error {
	return l.m.Unlock(l.o)
}

func (l mutexLock) NewCond() (*sync.Cond, error) {
	return nil, errNoCond("mutex")
}

func (l mutexLock) String() string {
	return fmt.Sprintf("mutex(%v)", l.o)
}

// Shared returns the read side of rw, held on behalf of o, as a Lock.
func Shared(rw *amutex.RWMutex, o sync.Owner) Lock {
	return sharedLock{rw: rw, o: o}
}

type sharedLock struct {
	rw *amutex.RWMutex
	o  sync.Owner
}

func (l sharedLock) Lock() error {
	l.rw.RLock(l.o)
	return nil
}

func (l sharedLock) LockContext(ctx context.Context) error {
	return l.rw.RLockContext(ctx, l.o)
}

func (l sharedLock) TryLock() (bool, error) {
	return l.rw.TryRLock(l.o), nil
}

func (l sharedLock) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return l.rw.TryRLockTimeout(ctx, l.o, timeout)
}

func (l sharedLock) Unlock() error {
	return l.rw.RUnlock(l.o)
}

func (l sharedLock) NewCond() (*sync.Cond, error) {
	return nil, errNoCond("shared lock")
}

func (l sharedLock) String() string {
	return fmt.Sprintf("shared(%v)", l.o)
}

// Exclusive returns the write side of rw, held on behalf of o, as a Lock.
func Exclusive(rw *amutex.RWMutex, o sync.Owner) Lock {
	return exclusiveLock{rw: rw, o: o}
}

type exclusiveLock struct {
	rw *amutex.RWMutex
	o  sync.Owner
}

func (l exclusiveLock) Lock() error {
	l.rw.Lock(l.o)
	return nil
}

func (l exclusiveLock) LockContext(ctx context.Context) error {
	return l.rw.LockContext(ctx, l.o)
}

func (l exclusiveLock) TryLock() (bool, error) {
	return l.rw.TryLock(l.o), nil
}

func (l exclusiveLock) TryLockTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	return l.rw.TryLockTimeout(ctx, l.o, timeout)
}

func (l exclusiveLock) Unlock() error {
	return l.rw.Unlock(l.o)
}

func (l exclusiveLock) NewCond() (*sync.Cond, error) {
	return nil, errNoCond("exclusive lock")
}

func (l exclusiveLock) String() string {
	return fmt.Sprintf("exclusive(%v)", l.o)
}
