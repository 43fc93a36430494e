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

package rwulock_test

import (
	"fmt"
	"strings"

	"gvisor.dev/locks/pkg/rwulock"
)

// store holds a document that is read often and rewritten only when it is
// out of date.
type store struct {
	mu  rwulock.RWUMutex
	doc string
}

// updateIfNecessary reads the document under the update lock, which lets
// readers in, and only takes the write lock if it decides to change it.
func (s *store) updateIfNecessary(h *rwulock.Holder) error {
	if err := h.UpdateLock().Lock(); err != nil {
		return err
	}
	defer h.UpdateLock().Unlock()

	current := s.doc
	if strings.ToUpper(current) == current {
		return nil
	}
	next := strings.ToUpper(current)

	// Upgrade. New readers now wait until the write lock is released.
	if err := h.WriteLock().Lock(); err != nil {
		return err
	}
	defer h.WriteLock().Unlock()
	s.doc = next
	return nil
}

func (s *store) read(h *rwulock.Holder) (string, error) {
	if err := h.ReadLock().Lock(); err != nil {
		return "", err
	}
	defer h.ReadLock().Unlock()
	return s.doc, nil
}

func ExampleRWUMutex_updateDocument() {
	s := &store{doc: "hello"}
	h := s.mu.NewHolder()

	for i := 0; i < 2; i++ {
		if err := s.updateIfNecessary(h); err != nil {
			fmt.Println(err)
			return
		}
		doc, _ := s.read(h)
		fmt.Println(doc, h.Mode())
	}
	// Output:
	// HELLO none
	// HELLO none
}

func ExampleHolder_illegalTransition() {
	m := rwulock.New()
	h := m.NewHolder()

	h.ReadLock().Lock()
	err := h.UpdateLock().Lock()
	fmt.Println(err)
	h.ReadLock().Unlock()
	// Output:
	// cannot acquire update lock while holding read lock: release it first
}
