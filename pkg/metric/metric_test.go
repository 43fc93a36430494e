// Copyright 2018 The gVisor Authors.
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

package metric

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// reset clears all global state in the metric package.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	allMetrics = make(map[string]*Uint64Metric)
}

const (
	fooDescription     = "Foo!"
	counterDescription = "Counter"
)

func TestRegistration(t *testing.T) {
	defer reset()

	if _, err := NewUint64Metric("foo", fooDescription); err != nil {
		t.Fatalf("NewUint64Metric got err %v want nil", err)
	}
	if _, err := NewUint64Metric("foo", fooDescription); !errors.Is(err, ErrNameInUse) {
		t.Errorf("NewUint64Metric with duplicate name got err %v want %v", err, ErrNameInUse)
	}
	if _, err := NewUint64Metric("/foo/bar", fooDescription); !errors.Is(err, ErrInvalidName) {
		t.Errorf("NewUint64Metric with invalid name got err %v want %v", err, ErrInvalidName)
	}
	if _, err := NewUint64Metric("empty_field", fooDescription, NewField("kind", nil)); !errors.Is(err, ErrFieldHasNoAllowedValues) {
		t.Errorf("NewUint64Metric with empty field got err %v want %v", err, ErrFieldHasNoAllowedValues)
	}

	var names []string
	for _, m := range registered() {
		names = append(names, m.Name())
	}
	if diff := cmp.Diff([]string{"foo"}, names); diff != "" {
		t.Errorf("registered metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldValues(t *testing.T) {
	defer reset()

	m := MustCreateNewUint64Metric("counter", counterDescription,
		NewField("view", []string{"read", "write"}),
		NewField("outcome", []string{"acquired", "unavailable", "interrupted"}))

	m.Increment("read", "acquired")
	m.Increment("read", "acquired")
	m.IncrementBy(5, "write", "interrupted")

	for _, tc := range []struct {
		fields []string
		want   uint64
	}{
		{[]string{"read", "acquired"}, 2},
		{[]string{"read", "unavailable"}, 0},
		{[]string{"write", "interrupted"}, 5},
		{[]string{"write", "acquired"}, 0},
	} {
		if got := m.Value(tc.fields...); got != tc.want {
			t.Errorf("Value(%v) = %d, want %d", tc.fields, got, tc.want)
		}
	}

	for key := 0; key < m.fieldMapper.numKeys(); key++ {
		if got := m.fieldMapper.lookup(m.fieldMapper.keyToMultiField(key)...); got != key {
			t.Errorf("lookup(keyToMultiField(%d)) = %d", key, got)
		}
	}
}

func TestDisallowedFieldValuePanics(t *testing.T) {
	defer reset()

	m := MustCreateNewUint64Metric("counter", counterDescription, NewField("view", []string{"read"}))
	defer func() {
		if recover() == nil {
			t.Errorf("Increment with disallowed value did not panic")
		}
	}()
	m.Increment("update")
}

func TestWriteAndParseText(t *testing.T) {
	defer reset()

	plain := MustCreateNewUint64Metric("plain", fooDescription)
	withField := MustCreateNewUint64Metric("by_view", counterDescription, NewField("view", []string{"read", "update", "write"}))
	plain.IncrementBy(3)
	withField.Increment("update")
	withField.IncrementBy(7, "write")

	var buf bytes.Buffer
	if err := WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	text := buf.String()
	for _, want := range []string{
		"# HELP plain Foo!",
		"# TYPE by_view counter",
		`by_view{view="write"} 7`,
		"plain 3",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("WriteText output missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "by_view") > strings.Index(text, "plain") {
		t.Errorf("metrics not sorted by name:\n%s", text)
	}

	data, err := ParseText(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	for _, tc := range []struct {
		name   string
		labels map[string]string
		want   int64
	}{
		{"plain", nil, 3},
		{"by_view", map[string]string{"view": "read"}, 0},
		{"by_view", map[string]string{"view": "update"}, 1},
		{"by_view", map[string]string{"view": "write"}, 7},
	} {
		got, err := data.Integer(tc.name, tc.labels)
		if err != nil {
			t.Errorf("Integer(%q, %v): %v", tc.name, tc.labels, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Integer(%q, %v) = %d, want %d", tc.name, tc.labels, got, tc.want)
		}
	}
	if _, err := data.Integer("by_view", nil); err == nil {
		t.Errorf("Integer matched several samples without an error")
	}
	if _, err := data.Integer("missing", nil); err == nil {
		t.Errorf("Integer found a missing metric")
	}
	if got := data.Sum("by_view", nil); got != 8 {
		t.Errorf("Sum(by_view) = %v, want 8", got)
	}
}
