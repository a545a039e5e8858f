// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ranking

import (
	"sync"
)

// Reporter receives named observations.
type Reporter interface {
	Report(name string, value float64)
}

// WeightedReporter receives observations that stand for weight samples.
type WeightedReporter interface {
	Reporter
	ReportWeighted(name string, value, weight float64)
}

// ReportWeighted sends a weighted observation, dropping the weight if r does not support it.
func ReportWeighted(r Reporter, name string, value, weight float64) {
	if wr, ok := r.(WeightedReporter); ok {
		wr.ReportWeighted(name, value, weight)
	} else {
		r.Report(name, value)
	}
}

type ReporterFunc func(name string, value float64)

func (f ReporterFunc) Report(name string, value float64) {
	f(name, value)
}

// MultiReporter forwards observations to every reporter.
type MultiReporter []Reporter

func (m MultiReporter) Report(name string, value float64) {
	for _, r := range m {
		r.Report(name, value)
	}
}

func (m MultiReporter) ReportWeighted(name string, value, weight float64) {
	for _, r := range m {
		ReportWeighted(r, name, value, weight)
	}
}

type prefixed struct {
	prefix   string
	reporter Reporter
}

// WithPrefix returns a reporter that prepends prefix to every name.
func WithPrefix(prefix string, r Reporter) Reporter {
	return &prefixed{prefix: prefix, reporter: r}
}

func (p *prefixed) Report(name string, value float64) {
	p.reporter.Report(p.prefix+name, value)
}

func (p *prefixed) ReportWeighted(name string, value, weight float64) {
	ReportWeighted(p.reporter, p.prefix+name, value, weight)
}

// Summary accumulates weighted means per name. It is safe for concurrent use.
type Summary struct {
	mu      sync.Mutex
	sums    map[string]float64
	weights map[string]float64
}

func NewSummary() *Summary {
	return &Summary{
		sums:    make(map[string]float64),
		weights: make(map[string]float64),
	}
}

func (s *Summary) Report(name string, value float64) {
	s.ReportWeighted(name, value, 1)
}

func (s *Summary) ReportWeighted(name string, value, weight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sums[name] += value * weight
	s.weights[name] += weight
}

// Mean returns the weighted mean of name and whether it has been reported.
func (s *Summary) Mean(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	weight, ok := s.weights[name]
	if !ok || weight == 0 {
		return 0, false
	}
	return s.sums[name] / weight, true
}

// Means returns all weighted means.
func (s *Summary) Means() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	means := make(map[string]float64, len(s.weights))
	for name, weight := range s.weights {
		if weight > 0 {
			means[name] = s.sums[name] / weight
		}
	}
	return means
}

func (s *Summary) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sums = make(map[string]float64)
	s.weights = make(map[string]float64)
}
