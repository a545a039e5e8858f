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

package trainer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const LabelName = "name"

var (
	EpochTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pairwise",
		Subsystem: "trainer",
		Name:      "epoch_total",
	})
	IterationTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairwise",
		Subsystem: "trainer",
		Name:      "iteration_total",
	})
	EpochSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pairwise",
		Subsystem: "trainer",
		Name:      "epoch_seconds",
	})
	MetricVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pairwise",
		Subsystem: "trainer",
		Name:      "metric",
	}, []string{LabelName})
	BatchMetricVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pairwise",
		Subsystem: "trainer",
		Name:      "batch_metric",
	}, []string{LabelName})
)
