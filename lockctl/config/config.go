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

// Package config holds the workload configuration of "lockctl stress", read
// from a TOML file.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gvisor.dev/locks/pkg/log"
)

// Workload describes a stress run against a single lock.
type Workload struct {
	// Readers is the number of goroutines that only take read holds.
	Readers int `toml:"readers"`

	// Updaters is the number of goroutines that take update holds and
	// upgrade some of them to write holds.
	Updaters int `toml:"updaters"`

	// Duration is how long the workload runs.
	Duration time.Duration `toml:"duration"`

	// WriteRatio is the fraction of update holds that are upgraded.
	WriteRatio float64 `toml:"write_ratio"`

	// AcquireTimeout bounds every acquisition. Zero means that acquisitions
	// wait as long as necessary.
	AcquireTimeout time.Duration `toml:"acquire_timeout"`

	// HoldTime is how long each hold is kept before release.
	HoldTime time.Duration `toml:"hold_time"`

	// Seed seeds the upgrade decisions of the updaters.
	Seed int64 `toml:"seed"`

	// MetricsFile is where the lock metrics are written after the run, in
	// Prometheus text format. Empty means stdout.
	MetricsFile string `toml:"metrics_file"`
}

// Default returns the workload used for keys missing from the file.
func Default() Workload {
	return Workload{
		Readers:    4,
		Updaters:   2,
		Duration:   time.Second,
		WriteRatio: 0.5,
		Seed:       1,
	}
}

// Load reads the workload at path. Keys missing from the file keep their
// default value; unknown keys are an error.
func Load(path string) (*Workload, error) {
	w := Default()
	md, err := toml.DecodeFile(path, &w)
	if err != nil {
		return nil, fmt.Errorf("reading workload %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		var keys []string
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("workload %q: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("workload %q: %w", path, err)
	}
	return &w, nil
}

// Validate checks that w describes a runnable workload.
func (w *Workload) Validate() error {
	switch {
	case w.Readers < 0 || w.Updaters < 0:
		return fmt.Errorf("readers (%d) and updaters (%d) must not be negative", w.Readers, w.Updaters)
	case w.Readers+w.Updaters == 0:
		return fmt.Errorf("workload has no goroutines")
	case w.Duration <= 0:
		return fmt.Errorf("duration must be positive, got %v", w.Duration)
	case w.WriteRatio < 0 || w.WriteRatio > 1:
		return fmt.Errorf("write_ratio must be within [0, 1], got %v", w.WriteRatio)
	case w.AcquireTimeout < 0 || w.HoldTime < 0:
		return fmt.Errorf("acquire_timeout (%v) and hold_time (%v) must not be negative", w.AcquireTimeout, w.HoldTime)
	}
	return nil
}

// Log logs the workload.
func (w *Workload) Log() {
	log.Infof("Workload:")
	log.Infof("\t\treaders: %d, updaters: %d", w.Readers, w.Updaters)
	log.Infof("\t\tduration: %v, write ratio: %v", w.Duration, w.WriteRatio)
	log.Infof("\t\tacquire timeout: %v, hold time: %v, seed: %d", w.AcquireTimeout, w.HoldTime, w.Seed)
}
