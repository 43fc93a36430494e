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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/locks/lockctl/config"
	"gvisor.dev/locks/pkg/locks"
	"gvisor.dev/locks/pkg/log"
	"gvisor.dev/locks/pkg/metric"
	"gvisor.dev/locks/pkg/rwulock"
)

// Stress implements subcommands.Command for the "stress" command.
type Stress struct {
	workload string
	duration time.Duration
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string {
	return "stress"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string {
	return "run readers and updaters against one update lock and check its invariants"
}

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string {
	return `stress [-workload=<file.toml>] [-duration=<d>] - runs a lock workload and prints the lock metrics in Prometheus format
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.workload, "workload", "", "TOML workload file. If empty, the default workload is used.")
	f.DurationVar(&s.duration, "duration", 0, "overrides the workload duration.")
}

// Execute implements subcommands.Command.Execute.
func (s *Stress) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	w := config.Default()
	if s.workload != "" {
		loaded, err := config.Load(s.workload)
		if err != nil {
			return Errorf("%v", err)
		}
		w = *loaded
	}
	if s.duration != 0 {
		w.Duration = s.duration
		if err := w.Validate(); err != nil {
			return Errorf("%v", err)
		}
	}
	w.Log()

	res, err := RunWorkload(ctx, &w)
	if err != nil {
		return Errorf("workload failed: %v", err)
	}
	Infof("Reads: %d, updates: %d, writes: %d, unavailable: %d", res.Reads, res.Updates, res.Writes, res.Unavailable)

	out := io.Writer(os.Stdout)
	if w.MetricsFile != "" {
		file, err := os.Create(w.MetricsFile)
		if err != nil {
			return Errorf("creating metrics file: %v", err)
		}
		defer file.Close()
		out = file
	}
	if err := metric.WriteText(out); err != nil {
		return Errorf("writing metrics: %v", err)
	}
	return subcommands.ExitSuccess
}

// Result counts the holds taken by a workload.
type Result struct {
	Reads       uint64
	Updates     uint64
	Writes      uint64
	Unavailable uint64
}

// document is the data protected by the lock. Writers keep both fields
// equal; a reader that sees them differ has observed a partial write.
type document struct {
	version uint64
	copy    uint64
}

// stressRun is the shared state of one workload run.
type stressRun struct {
	w   *config.Workload
	mu  rwulock.RWUMutex
	doc document

	reads, updates, writes, unavailable atomic.Uint64
}

// RunWorkload runs w until its duration elapses or ctx is canceled. It fails
// if a reader observes a partial write or if a write is lost.
func RunWorkload(ctx context.Context, w *config.Workload) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, w.Duration)
	defer cancel()

	r := &stressRun{w: w}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.Readers; i++ {
		h := r.mu.NewHolder()
		g.Go(func() error { return r.reader(gctx, h) })
	}
	for i := 0; i < w.Updaters; i++ {
		h := r.mu.NewHolder()
		rng := rand.New(rand.NewSource(w.Seed + int64(i)))
		g.Go(func() error { return r.updater(gctx, h, rng) })
	}
	err := g.Wait()

	res := Result{
		Reads:       r.reads.Load(),
		Updates:     r.updates.Load(),
		Writes:      r.writes.Load(),
		Unavailable: r.unavailable.Load(),
	}
	if err != nil {
		return res, err
	}
	if r.doc.version != res.Writes {
		return res, fmt.Errorf("lost updates: document version %d after %d writes", r.doc.version, res.Writes)
	}
	return res, nil
}

// acquire acquires l as configured. Running out of time, including the end of
// the run, is reported as false.
func (r *stressRun) acquire(ctx context.Context, l locks.Lock) (bool, error) {
	var ok bool
	var err error
	if r.w.AcquireTimeout > 0 {
		ok, err = l.TryLockTimeout(ctx, r.w.AcquireTimeout)
	} else {
		err = l.LockContext(ctx)
		ok = err == nil
	}
	if err != nil && ctx.Err() != nil {
		return false, nil
	}
	if !ok && err == nil {
		r.unavailable.Add(1)
	}
	return ok, err
}

func (r *stressRun) hold() {
	if r.w.HoldTime > 0 {
		time.Sleep(r.w.HoldTime)
	}
}

func (r *stressRun) reader(ctx context.Context, h *rwulock.Holder) error {
	for ctx.Err() == nil {
		ok, err := r.acquire(ctx, h.ReadLock())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		v, c := r.doc.version, r.doc.copy
		r.hold()
		if err := h.ReadLock().Unlock(); err != nil {
			return err
		}
		if v != c {
			return fmt.Errorf("partial write observed: version %d, copy %d", v, c)
		}
		r.reads.Add(1)
	}
	return nil
}

func (r *stressRun) updater(ctx context.Context, h *rwulock.Holder, rng *rand.Rand) error {
	for ctx.Err() == nil {
		ok, err := r.acquire(ctx, h.UpdateLock())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		r.updates.Add(1)
		if err := r.maybeWrite(ctx, h, rng); err != nil {
			h.UpdateLock().Unlock()
			return err
		}
		if err := h.UpdateLock().Unlock(); err != nil {
			return err
		}
		if mode := h.Mode(); mode != rwulock.None {
			return fmt.Errorf("%v left in mode %v after releasing everything", h, mode)
		}
	}
	return nil
}

// maybeWrite upgrades h's update hold and writes a new version of the
// document if the updater decides to.
//
// Preconditions: h holds the update lock.
func (r *stressRun) maybeWrite(ctx context.Context, h *rwulock.Holder, rng *rand.Rand) error {
	next := r.doc.version + 1
	r.hold()
	if rng.Float64() >= r.w.WriteRatio {
		return nil
	}
	ok, err := r.acquire(ctx, h.WriteLock())
	if err != nil || !ok {
		return err
	}
	if counts := h.HoldCounts(); counts.Write != 1 || counts.Update != 2 {
		h.WriteLock().Unlock()
		return fmt.Errorf("unexpected hold counts after upgrade: %+v", counts)
	}
	r.doc.version = next
	r.doc.copy = next
	r.writes.Add(1)
	log.Debugf("Wrote version %d", next)
	return h.WriteLock().Unlock()
}
