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

package sync

import (
	"fmt"
	"sync/atomic"
)

// Owner identifies the holder of a reentrant lock.
//
// Go does not expose goroutine identity, so reentrant locks in this module are
// keyed by an explicit Owner instead. An Owner is normally created once per
// goroutine and must not be used by two goroutines at the same time: a lock
// acquired under an Owner is considered held by whichever goroutine presents
// that Owner.
//
// The zero Owner is never returned by NewOwner and means "no owner".
type Owner uint64

// NoOwner is the zero Owner.
const NoOwner Owner = 0

var lastOwner atomic.Uint64

// NewOwner returns a new, unique Owner.
func NewOwner() Owner {
	return Owner(lastOwner.Add(1))
}

// String implements fmt.Stringer.String.
func (o Owner) String() string {
	if o == NoOwner {
		return "owner(none)"
	}
	return fmt.Sprintf("owner(%d)", uint64(o))
}
