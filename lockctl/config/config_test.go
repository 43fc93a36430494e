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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
readers = 8
duration = "250ms"
write_ratio = 0.25
acquire_timeout = "10ms"
metrics_file = "/tmp/metrics.txt"
`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.Readers = 8
	want.Duration = 250 * time.Millisecond
	want.WriteRatio = 0.25
	want.AcquireTimeout = 10 * time.Millisecond
	want.MetricsFile = "/tmp/metrics.txt"
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "readers = 1\nwriters = 2\n", "unknown keys writers"},
		{"syntax", "readers = \n", "reading workload"},
		{"no goroutines", "readers = 0\nupdaters = 0\n", "no goroutines"},
		{"ratio", "write_ratio = 1.5\n", "write_ratio"},
		{"duration", `duration = "0s"`, "duration must be positive"},
		{"negative timeout", `acquire_timeout = "-1s"`, "acquire_timeout"},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Load = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("Load of missing file succeeded")
	}
}

func TestDefaultIsValid(t *testing.T) {
	w := Default()
	if err := w.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}
