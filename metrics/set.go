// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// set is a registry of prometheus collectors addressed by their full
// VictoriaMetrics-style name, e.g. `foo{bar="baz"}`.
type set struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	metrics  map[string]prometheus.Collector
	vecs     map[string]prometheus.Collector
}

var defaultSet = newSet()

func newSet() *set {
	return &set{
		registry: prometheus.NewRegistry(),
		metrics:  map[string]prometheus.Collector{},
		vecs:     map[string]prometheus.Collector{},
	}
}

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelRe = regexp.MustCompile(`^\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*=\s*"((?:[^"\\]|\\.)*)"\s*$`)
)

// parseMetric splits `foo{bar="baz",aaa="b"}` into the bare name and its constant labels.
func parseMetric(s string) (string, prometheus.Labels, error) {
	name, rest, hasLabels := strings.Cut(s, "{")
	if !nameRe.MatchString(name) {
		return "", nil, fmt.Errorf("invalid metric name %q", s)
	}
	if !hasLabels {
		return name, nil, nil
	}
	if !strings.HasSuffix(rest, "}") {
		return "", nil, fmt.Errorf("missing closing brace in metric %q", s)
	}
	rest = strings.TrimSuffix(rest, "}")
	labels := prometheus.Labels{}
	if strings.TrimSpace(rest) == "" {
		return name, labels, nil
	}
	for _, pair := range strings.Split(rest, ",") {
		m := labelRe.FindStringSubmatch(pair)
		if m == nil {
			return "", nil, fmt.Errorf("invalid label %q in metric %q", pair, s)
		}
		labels[m[1]] = m[2]
	}
	return name, labels, nil
}

// canonical renders name and labels with labels sorted, so that equal metrics
// written with different label order map to the same collector.
func canonical(name string, labels prometheus.Labels) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func (s *set) getOrCreate(full string, create func(name string, labels prometheus.Labels) prometheus.Collector) (prometheus.Collector, error) {
	name, labels, err := parseMetric(full)
	if err != nil {
		return nil, err
	}
	key := canonical(name, labels)

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.metrics[key]; ok {
		return c, nil
	}
	c := create(name, labels)
	if err := s.registry.Register(c); err != nil {
		return nil, err
	}
	s.metrics[key] = c
	return c, nil
}

func (s *set) create(full string, create func(name string, labels prometheus.Labels) prometheus.Collector) (prometheus.Collector, error) {
	name, labels, err := parseMetric(full)
	if err != nil {
		return nil, err
	}
	key := canonical(name, labels)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metrics[key]; ok {
		return nil, fmt.Errorf("metric %q is already registered", full)
	}
	c := create(name, labels)
	if err := s.registry.Register(c); err != nil {
		return nil, err
	}
	s.metrics[key] = c
	return c, nil
}

func newCounter(name string, labels prometheus.Labels) prometheus.Collector {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, ConstLabels: labels})
}

func newGauge(name string, labels prometheus.Labels) prometheus.Collector {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, ConstLabels: labels})
}

var defaultObjectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.97: 0.003, 0.99: 0.001, 1: 0}

func newSummary(name string, labels prometheus.Labels) prometheus.Collector {
	return prometheus.NewSummary(prometheus.SummaryOpts{Name: name, ConstLabels: labels, Objectives: defaultObjectives})
}

func (s *set) NewCounter(name string) (prometheus.Counter, error) {
	c, err := s.create(name, newCounter)
	if err != nil {
		return nil, err
	}
	return c.(prometheus.Counter), nil
}

func (s *set) GetOrCreateCounter(name string) (prometheus.Counter, error) {
	c, err := s.getOrCreate(name, newCounter)
	if err != nil {
		return nil, err
	}
	counter, ok := c.(prometheus.Counter)
	if !ok {
		return nil, fmt.Errorf("metric %q is not a counter", name)
	}
	return counter, nil
}

func (s *set) GetOrCreateGauge(name string) (prometheus.Gauge, error) {
	c, err := s.getOrCreate(name, newGauge)
	if err != nil {
		return nil, err
	}
	gauge, ok := c.(prometheus.Gauge)
	if !ok {
		return nil, fmt.Errorf("metric %q is not a gauge", name)
	}
	return gauge, nil
}

func (s *set) GetOrCreateSummary(name string) (prometheus.Summary, error) {
	c, err := s.getOrCreate(name, newSummary)
	if err != nil {
		return nil, err
	}
	summary, ok := c.(prometheus.Summary)
	if !ok {
		return nil, fmt.Errorf("metric %q is not a summary", name)
	}
	return summary, nil
}

func (s *set) GetOrCreateGaugeVec(name string, labels []string, help ...string) (*prometheus.GaugeVec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.vecs[name]; ok {
		gv, ok := c.(*prometheus.GaugeVec)
		if !ok {
			return nil, fmt.Errorf("metric %q is not a gauge vec", name)
		}
		return gv, nil
	}
	if !nameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid metric name %q", name)
	}
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: strings.Join(help, " ")}, labels)
	if err := s.registry.Register(gv); err != nil {
		return nil, err
	}
	s.vecs[name] = gv
	return gv, nil
}
