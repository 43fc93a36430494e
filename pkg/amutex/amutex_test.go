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

package amutex

import (
	"context"
	"testing"
	"time"

	"gvisor.dev/locks/pkg/errors"
	"gvisor.dev/locks/pkg/sync"
)

func waitQueued(t *testing.T, rw *RWMutex, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for rw.QueueLen() != n {
		if time.Now().After(deadline) {
			t.Fatalf("QueueLen() = %d, want %d", rw.QueueLen(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

// acquired returns a channel closed once f returns.
func acquired(f func()) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		f()
		close(ch)
	}()
	return ch
}

func expectBlocked(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("%s succeeded, want it blocked", what)
	case <-time.After(50 * time.Millisecond):
	}
}

func expectDone(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("%s still blocked", what)
	}
}

func TestBlock(t *testing.T) {
	ready := make(chan struct{})
	close(ready)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Block(context.Background(), nil, ready); err != nil {
		t.Errorf("Block on ready channel = %v, want nil", err)
	}
	if err := Block(canceled, nil, ready); err != nil {
		t.Errorf("Block on ready channel with canceled context = %v, want nil", err)
	}
	if err := Block(context.Background(), time.After(time.Millisecond), make(chan struct{})); err != ErrTimedOut {
		t.Errorf("Block with expired timer = %v, want %v", err, ErrTimedOut)
	}
	err := Block(canceled, nil, make(chan struct{}))
	if !errors.Is(err, errors.ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Errorf("Block with canceled context = %v, want interrupted error wrapping %v", err, context.Canceled)
	}
}

func TestReadersShare(t *testing.T) {
	var rw RWMutex
	a, b, c := sync.NewOwner(), sync.NewOwner(), sync.NewOwner()

	rw.RLock(a)
	if !rw.TryRLock(b) {
		t.Fatalf("TryRLock failed while only readers hold the lock")
	}
	if got := rw.Readers(); got != 2 {
		t.Errorf("Readers() = %d, want 2", got)
	}
	if rw.TryLock(c) {
		t.Fatalf("TryLock succeeded while readers hold the lock")
	}
	// A reader cannot upgrade in place.
	if rw.TryLock(a) {
		t.Fatalf("TryLock by a reader succeeded")
	}
	rw.RUnlock(a)
	rw.RUnlock(b)
	if !rw.TryLock(c) {
		t.Fatalf("TryLock failed on unlocked mutex")
	}
}

func TestWriterExcludes(t *testing.T) {
	var rw RWMutex
	a, b := sync.NewOwner(), sync.NewOwner()

	rw.Lock(a)
	if rw.TryRLock(b) {
		t.Errorf("TryRLock succeeded while write locked")
	}
	if rw.TryLock(b) {
		t.Errorf("TryLock succeeded while write locked")
	}

	// The writer may also read and lock again.
	if !rw.TryRLock(a) {
		t.Errorf("TryRLock by writer failed")
	}
	if !rw.TryLock(a) {
		t.Errorf("TryLock by writer failed")
	}
	if got, want := rw.WriteHoldCount(a), 2; got != want {
		t.Errorf("WriteHoldCount(a) = %d, want %d", got, want)
	}
	if got, want := rw.ReadHoldCount(a), 1; got != want {
		t.Errorf("ReadHoldCount(a) = %d, want %d", got, want)
	}
	if got := rw.WriteHoldCount(b); got != 0 {
		t.Errorf("WriteHoldCount(b) = %d, want 0", got)
	}

	rw.Unlock(a)
	rw.Unlock(a)
	if rw.IsWriteLocked() {
		t.Fatalf("IsWriteLocked() = true after every write hold was released")
	}
	// a still reads, so b cannot write.
	if rw.TryLock(b) {
		t.Errorf("TryLock succeeded while a still reads")
	}
	rw.RUnlock(a)
}

func TestUnlockNotHeld(t *testing.T) {
	var rw RWMutex
	a, b := sync.NewOwner(), sync.NewOwner()

	if err := rw.RUnlock(a); !errors.Is(err, errors.ErrIllegalState) {
		t.Errorf("RUnlock without read hold = %v, want %v", err, errors.ErrIllegalState)
	}
	if err := rw.Unlock(a); !errors.Is(err, errors.ErrIllegalState) {
		t.Errorf("Unlock without write hold = %v, want %v", err, errors.ErrIllegalState)
	}
	rw.Lock(a)
	if err := rw.Unlock(b); !errors.Is(err, errors.ErrIllegalState) {
		t.Errorf("Unlock by non-writer = %v, want %v", err, errors.ErrIllegalState)
	}
	if err := rw.Unlock(a); err != nil {
		t.Errorf("Unlock by writer = %v, want nil", err)
	}
}

func TestWriterNotStarved(t *testing.T) {
	var rw RWMutex
	r1, r2, w := sync.NewOwner(), sync.NewOwner(), sync.NewOwner()

	rw.RLock(r1)
	writer := acquired(func() { rw.Lock(w) })
	waitQueued(t, &rw, 1)

	// New readers queue behind the writer.
	reader := acquired(func() { rw.RLock(r2) })
	waitQueued(t, &rw, 2)
	if ok, err := rw.TryRLockTimeout(context.Background(), sync.NewOwner(), 20*time.Millisecond); ok || err != nil {
		t.Errorf("TryRLockTimeout behind a queued writer = (%t, %v), want (false, nil)", ok, err)
	}

	// Existing readers are not blocked by the queued writer.
	if ok, err := rw.TryRLockTimeout(context.Background(), r1, time.Second); !ok || err != nil {
		t.Fatalf("reentrant TryRLockTimeout = (%t, %v), want (true, nil)", ok, err)
	}
	rw.RUnlock(r1)
	expectBlocked(t, writer, "Lock")
	rw.RUnlock(r1)

	expectDone(t, writer, "Lock")
	expectBlocked(t, reader, "RLock")
	rw.Unlock(w)
	expectDone(t, reader, "RLock")
	rw.RUnlock(r2)
}

func TestQueuedReadersGrantedTogether(t *testing.T) {
	var rw RWMutex
	w := sync.NewOwner()
	rw.Lock(w)

	const n = 3
	var done []<-chan struct{}
	for i := 0; i < n; i++ {
		o := sync.NewOwner()
		done = append(done, acquired(func() { rw.RLock(o) }))
		waitQueued(t, &rw, i+1)
	}
	rw.Unlock(w)
	for _, ch := range done {
		expectDone(t, ch, "RLock")
	}
	if got := rw.Readers(); got != n {
		t.Errorf("Readers() = %d, want %d", got, n)
	}
}

func TestTryLockBarges(t *testing.T) {
	var rw RWMutex
	r1, r2, w := sync.NewOwner(), sync.NewOwner(), sync.NewOwner()

	rw.RLock(r1)
	writer := acquired(func() { rw.Lock(w) })
	waitQueued(t, &rw, 1)

	if !rw.TryRLock(r2) {
		t.Errorf("TryRLock did not barge past the queued writer")
	}
	rw.RUnlock(r2)
	rw.RUnlock(r1)
	expectDone(t, writer, "Lock")
	rw.Unlock(w)
}

func TestCanceledWriterReleasesQueue(t *testing.T) {
	var rw RWMutex
	r1, r2, w := sync.NewOwner(), sync.NewOwner(), sync.NewOwner()

	rw.RLock(r1)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- rw.LockContext(ctx, w)
	}()
	waitQueued(t, &rw, 1)
	reader := acquired(func() { rw.RLock(r2) })
	waitQueued(t, &rw, 2)

	cancel()
	if err := <-errCh; !errors.Is(err, errors.ErrInterrupted) {
		t.Fatalf("LockContext = %v, want %v", err, errors.ErrInterrupted)
	}
	// With the writer gone, the reader behind it shares with r1.
	expectDone(t, reader, "RLock")
	if got := rw.QueueLen(); got != 0 {
		t.Errorf("QueueLen() = %d, want 0", got)
	}
	if got := rw.WriteHoldCount(w); got != 0 {
		t.Errorf("WriteHoldCount(w) = %d after cancellation, want 0", got)
	}
}

func TestTryLockTimeout(t *testing.T) {
	var rw RWMutex
	a, b := sync.NewOwner(), sync.NewOwner()
	rw.RLock(a)

	if ok, err := rw.TryLockTimeout(context.Background(), b, 20*time.Millisecond); ok || err != nil {
		t.Errorf("TryLockTimeout while read locked = (%t, %v), want (false, nil)", ok, err)
	}
	if ok, err := rw.TryLockTimeout(context.Background(), b, 0); ok || err != nil {
		t.Errorf("TryLockTimeout(0) while read locked = (%t, %v), want (false, nil)", ok, err)
	}
	if got := rw.QueueLen(); got != 0 {
		t.Errorf("QueueLen() = %d after timeouts, want 0", got)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		rw.RUnlock(a)
	}()
	if ok, err := rw.TryLockTimeout(context.Background(), b, 5*time.Second); !ok || err != nil {
		t.Fatalf("TryLockTimeout = (%t, %v), want (true, nil)", ok, err)
	}
	rw.Unlock(b)
}

func TestReaderWriterExclusion(t *testing.T) {
	var rw RWMutex
	const (
		writers = 10
		readers = 10
		iters   = 200
	)
	var (
		active sync.Mutex
		nr, nw int
	)
	check := func() {
		active.Lock()
		defer active.Unlock()
		if nw > 1 || (nw == 1 && nr > 0) {
			t.Errorf("%d writers and %d readers inside the lock", nw, nr)
		}
	}
	var wg sync.WaitGroup
	for i := 0; i < writers+readers; i++ {
		wg.Add(1)
		write := i < writers
		go func() {
			defer wg.Done()
			o := sync.NewOwner()
			for j := 0; j < iters; j++ {
				if write {
					rw.Lock(o)
					active.Lock()
					nw++
					active.Unlock()
				} else {
					rw.RLock(o)
					active.Lock()
					nr++
					active.Unlock()
				}
				check()
				active.Lock()
				if write {
					nw--
				} else {
					nr--
				}
				active.Unlock()
				if write {
					rw.Unlock(o)
				} else {
					rw.RUnlock(o)
				}
			}
		}()
	}
	wg.Wait()
}
