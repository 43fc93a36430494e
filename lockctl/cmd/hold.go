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
	"os"
	"os/signal"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"gvisor.dev/locks/pkg/errors"
	"gvisor.dev/locks/pkg/locks"
	"gvisor.dev/locks/pkg/log"
)

// Hold implements subcommands.Command for the "hold" command.
type Hold struct {
	attempt  time.Duration
	retryFor time.Duration
	holdFor  time.Duration
}

// Name implements subcommands.Command.Name.
func (*Hold) Name() string {
	return "hold"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Hold) Synopsis() string {
	return "atomically lock a set of lock files and hold them"
}

// Usage implements subcommands.Command.Usage.
func (*Hold) Usage() string {
	return `hold [flags] <lock file>... - locks every file, in order, or none of them.

The files stay locked for -for, or until the command is interrupted if -for is
zero. Other processes that use the same files, e.g. another "lockctl hold",
are excluded meanwhile.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (h *Hold) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&h.attempt, "attempt", time.Second, "how long a single attempt waits for all the files.")
	f.DurationVar(&h.retryFor, "retry-for", 30*time.Second, "how long to keep retrying failed attempts. Zero makes a single attempt.")
	f.DurationVar(&h.holdFor, "for", 0, "how long to hold the files. Zero holds them until interrupted.")
}

// Execute implements subcommands.Command.Execute.
func (h *Hold) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
	defer stop()

	var ls []locks.Lock
	for _, path := range f.Args() {
		ls = append(ls, locks.NewFileLock(path))
	}
	c := locks.NewComposite(ls...)

	if err := AcquireWithRetry(ctx, c, h.attempt, h.retryFor); err != nil {
		return Errorf("locking %v: %v", f.Args(), err)
	}
	Infof("Locked %v", f.Args())

	if h.holdFor > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(h.holdFor):
		}
	} else {
		<-ctx.Done()
	}

	if err := c.Unlock(); err != nil {
		return Errorf("unlocking %v: %v", f.Args(), err)
	}
	Infof("Unlocked %v", f.Args())
	return subcommands.ExitSuccess
}

// errUnavailable is returned by attempts that ran out of time.
var errUnavailable = fmt.Errorf("lock unavailable")

// AcquireWithRetry acquires l, giving each attempt up to attempt to succeed
// and retrying with exponential backoff for up to retryFor. It stops
// immediately on any error other than l being unavailable.
func AcquireWithRetry(ctx context.Context, l locks.Lock, attempt, retryFor time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = retryFor

	tries := 0
	try := func() error {
		tries++
		ok, err := l.TryLockTimeout(ctx, attempt)
		if err == nil && !ok {
			log.Debugf("Attempt %d to lock %v timed out", tries, l)
			return errUnavailable
		}
		return err
	}
	if retryFor <= 0 {
		return try()
	}

	op := func() error {
		err := try()
		if err != nil && err != errUnavailable {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if ctx.Err() != nil && !errors.IsKind(err, errors.Interrupted) {
			return errors.Wrap(errors.Interrupted, "lock retries aborted", ctx.Err())
		}
		return fmt.Errorf("after %d attempts: %w", tries, err)
	}
	return nil
}
