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

package webserver

import (
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

// HealthCheck counts consecutive failed health checks of the web server.
type HealthCheck struct {
	max      uint
	failures uint
}

// NewHealthCheck creates a counter that escalates after maxFailures consecutive
// failures.
func NewHealthCheck(maxFailures uint) *HealthCheck {
	if maxFailures == 0 {
		maxFailures = 1
	}

	return &HealthCheck{max: maxFailures}
}

// Observe accounts one health report and returns true when the service
// must be restarted. The counter is reset when that happens.
func (h *HealthCheck) Observe(report statereport.HealthReport) bool {
	defer func() { metrics.SetHealthFailures(h.failures) }()

	switch report.Outcome() {
	case statereport.HealthSuccess:
		h.failures = 0
	case statereport.HealthFailure:
		h.failures++
		if h.failures >= h.max {
			h.failures = 0

			return true
		}
	case statereport.HealthPending, statereport.HealthUnknown:
	}

	return false
}

// Failures is the number of consecutive failures so far.
func (h *HealthCheck) Failures() uint {
	return h.failures
}

func (h *HealthCheck) Max() uint {
	return h.max
}
