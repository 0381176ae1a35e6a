// Copyright 2025 UMH Systems GmbH
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

package status

import (
	"sort"
	"time"

	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
)

// Latency summarizes the samples of a latency window.
type Latency struct {
	Samples int           `json:"samples"`
	Min     time.Duration `json:"min_ns"`
	Max     time.Duration `json:"max_ns"`
	Avg     time.Duration `json:"avg_ns"`
	P95     time.Duration `json:"p95_ns"`
	P99     time.Duration `json:"p99_ns"`
}

// CalculateLatency computes min, max, average and percentiles of the
// samples currently held by latencies.
func CalculateLatency(latencies *expiremap.ExpireMap[time.Time, time.Duration]) Latency {
	var durations []time.Duration

	latencies.Range(func(_ time.Time, value time.Duration) bool {
		durations = append(durations, value)

		return true
	})

	return summarize(durations)
}

func summarize(durations []time.Duration) Latency {
	items := len(durations)
	if items == 0 {
		return Latency{}
	}

	sort.Slice(durations, func(i, j int) bool {
		return durations[i] < durations[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	percentile := func(p float64) time.Duration {
		idx := int(float64(items) * p)
		if idx >= items {
			idx = items - 1
		}

		return durations[idx]
	}

	return Latency{
		Samples: items,
		Min:     durations[0],
		Max:     durations[items-1],
		Avg:     sum / time.Duration(items),
		P95:     percentile(0.95),
		P99:     percentile(0.99),
	}
}
