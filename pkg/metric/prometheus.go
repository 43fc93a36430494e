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

package metric

import (
	"fmt"
	"io"
	"math"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// family renders m as a Prometheus counter family with one sample per field
// value combination.
func (m *Uint64Metric) family() *dto.MetricFamily {
	name, help := m.name, m.description
	mf := &dto.MetricFamily{
		Name: &name,
		Help: &help,
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for key := 0; key < m.fieldMapper.numKeys(); key++ {
		v := float64(m.fields[key].Load())
		sample := &dto.Metric{Counter: &dto.Counter{Value: &v}}
		for i, value := range m.fieldMapper.keyToMultiField(key) {
			labelName, labelValue := m.fieldMapper.fields[i].name, value
			sample.Label = append(sample.Label, &dto.LabelPair{Name: &labelName, Value: &labelValue})
		}
		mf.Metric = append(mf.Metric, sample)
	}
	return mf
}

// WriteText writes every registered metric to w in the Prometheus text
// exposition format, sorted by name.
func WriteText(w io.Writer) error {
	for _, m := range registered() {
		if _, err := expfmt.MetricFamilyToText(w, m.family()); err != nil {
			return fmt.Errorf("writing metric %q: %w", m.name, err)
		}
	}
	return nil
}

// Data is parsed Prometheus text data, by metric name.
type Data map[string]*dto.MetricFamily

// ParseText parses metrics in the Prometheus text exposition format.
func ParseText(r io.Reader) (Data, error) {
	parsed, err := (&expfmt.TextParser{}).TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parsing metrics: %w", err)
	}
	return Data(parsed), nil
}

// Integer returns the integer value of the single sample of metricName whose
// labels include wantLabels.
func (d Data) Integer(metricName string, wantLabels map[string]string) (int64, error) {
	metricData, found := d[metricName]
	if !found {
		return 0, fmt.Errorf("metric %q not found", metricName)
	}
	foundIndex := -1
	for i, data := range metricData.GetMetric() {
		dataLabels := make(map[string]string, len(data.GetLabel()))
		for _, label := range data.GetLabel() {
			dataLabels[label.GetName()] = label.GetValue()
		}
		allMatching := true
		for wantLabel, wantValue := range wantLabels {
			if dataLabels[wantLabel] != wantValue {
				allMatching = false
				break
			}
		}
		if !allMatching {
			continue
		}
		if foundIndex != -1 {
			return 0, fmt.Errorf("found multiple metric data matching requested labels %v", wantLabels)
		}
		foundIndex = i
	}
	if foundIndex == -1 {
		return 0, fmt.Errorf("no metric data matching requested labels %v", wantLabels)
	}
	data := metricData.GetMetric()[foundIndex]
	var floatValue float64
	if data.GetCounter() != nil && data.GetCounter().Value != nil {
		floatValue = data.GetCounter().GetValue()
	} else if data.GetGauge() != nil && data.GetGauge().Value != nil {
		floatValue = data.GetGauge().GetValue()
	} else {
		return 0, fmt.Errorf("metric is not numerical: %v", data)
	}
	if math.Floor(floatValue) != floatValue {
		return 0, fmt.Errorf("value %v cannot be rounded to an integer", floatValue)
	}
	return int64(floatValue), nil
}

// Sum returns the sum of every sample of metricName whose labels include
// wantLabels. A missing metric sums to zero.
func (d Data) Sum(metricName string, wantLabels map[string]string) float64 {
	var sum float64
	for _, data := range d[metricName].GetMetric() {
		matching := 0
		for _, label := range data.GetLabel() {
			if v, ok := wantLabels[label.GetName()]; ok && v == label.GetValue() {
				matching++
			}
		}
		if matching == len(wantLabels) {
			sum += data.GetCounter().GetValue()
		}
	}
	return sum
}
