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

package rwulock

import (
	"time"

	"gvisor.dev/locks/pkg/errors"
	"gvisor.dev/locks/pkg/log"
	"gvisor.dev/locks/pkg/metric"
)

// Outcomes of acquisitions and releases.
const (
	outcomeAcquired    = "acquired"
	outcomeUnavailable = "unavailable"
	outcomeInterrupted = "interrupted"
	outcomeFailed      = "failed"
	outcomeIllegal     = "illegal"
	outcomeReleased    = "released"
)

var views = []string{Read.String(), Update.String(), Write.String()}

var (
	// acquisitions counts view acquisitions by outcome. "unavailable" is a
	// try or timed acquisition that ran out of time.
	acquisitions = metric.MustCreateNewUint64Metric("rwulock_acquisitions", "Number of acquisitions of each lock view, by outcome.",
		metric.NewField("view", views),
		metric.NewField("outcome", []string{outcomeAcquired, outcomeUnavailable, outcomeInterrupted, outcomeFailed, outcomeIllegal}))

	// releases counts view releases by outcome.
	releases = metric.MustCreateNewUint64Metric("rwulock_releases", "Number of releases of each lock view, by outcome.",
		metric.NewField("view", views),
		metric.NewField("outcome", []string{outcomeReleased, outcomeIllegal}))
)

// misuseLog reports illegal transitions. A misbehaving caller may retry in a
// loop, so it is rate limited.
var misuseLog = log.BasicRateLimitedLogger(10 * time.Second)

func misuse(h *Holder, err error) {
	misuseLog.Warningf("Illegal lock transition by %v: %v", h, err)
}

func outcome(ok bool, err error) string {
	switch {
	case ok:
		return outcomeAcquired
	case err == nil:
		return outcomeUnavailable
	case errors.IsKind(err, errors.Interrupted):
		return outcomeInterrupted
	default:
		return outcomeFailed
	}
}
