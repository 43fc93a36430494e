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
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/locks/pkg/metric"
)

// Metrics implements subcommands.Command for the "metrics" command.
type Metrics struct {
	name   string
	labels string
}

// Name implements subcommands.Command.Name.
func (*Metrics) Name() string {
	return "metrics"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Metrics) Synopsis() string {
	return "summarize lock metrics written by the stress command"
}

// Usage implements subcommands.Command.Usage.
func (*Metrics) Usage() string {
	return `metrics [-metric=<name>] [-labels=k=v,...] <file> - prints the matching samples of a Prometheus text file and their sum
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *Metrics) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.name, "metric", "rwulock_acquisitions", "metric to print.")
	f.StringVar(&m.labels, "labels", "", "comma-separated label=value pairs that samples must match.")
}

// Execute implements subcommands.Command.Execute.
func (m *Metrics) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	labels, err := parseLabels(m.labels)
	if err != nil {
		return Errorf("%v", err)
	}
	file, err := os.Open(f.Arg(0))
	if err != nil {
		return Errorf("opening metrics: %v", err)
	}
	defer file.Close()
	data, err := metric.ParseText(file)
	if err != nil {
		return Errorf("%v", err)
	}
	if err := Summarize(os.Stdout, data, m.name, labels); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}

// parseLabels parses "k=v,k2=v2".
func parseLabels(s string) (map[string]string, error) {
	labels := make(map[string]string)
	if s == "" {
		return labels, nil
	}
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid label %q, want label=value", kv)
		}
		labels[k] = v
	}
	return labels, nil
}

// Summarize prints every sample of name matching labels, one per line with
// its labels sorted, followed by their sum.
func Summarize(w io.Writer, data metric.Data, name string, labels map[string]string) error {
	family, ok := data[name]
	if !ok {
		return fmt.Errorf("metric %q not found", name)
	}
	var lines []string
	for _, sample := range family.GetMetric() {
		var pairs []string
		matching := 0
		for _, l := range sample.GetLabel() {
			pairs = append(pairs, fmt.Sprintf("%s=%s", l.GetName(), l.GetValue()))
			if v, ok := labels[l.GetName()]; ok && v == l.GetValue() {
				matching++
			}
		}
		if matching != len(labels) {
			continue
		}
		sort.Strings(pairs)
		lines = append(lines, fmt.Sprintf("%s{%s} %v", name, strings.Join(pairs, ","), sample.GetCounter().GetValue()))
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintf(w, "total %v\n", data.Sum(name, labels))
	return nil
}
