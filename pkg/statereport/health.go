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

package statereport

import "fmt"

// HealthOutcome classifies a health report.
type HealthOutcome int

const (
	// HealthPending means the check has not finished yet.
	HealthPending HealthOutcome = iota
	HealthSuccess
	HealthFailure
	// HealthUnknown covers finished checks with an unrecognized result.
	HealthUnknown
)

func (o HealthOutcome) String() string {
	switch o {
	case HealthPending:
		return "pending"
	case HealthSuccess:
		return "success"
	case HealthFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// HealthReport is the result of the external fetch of the web site.
type HealthReport struct {
	Fetch *FetchResult `yaml:"fetch" json:"fetch"`
}

type FetchResult struct {
	Finished bool   `yaml:"finished" json:"finished"`
	Result   string `yaml:"result" json:"result"`
}

// ParseHealthReport decodes a health report.
func ParseHealthReport(data []byte) (HealthReport, error) {
	var h HealthReport
	if err := decode(data, &h); err != nil {
		return HealthReport{}, fmt.Errorf("failed to parse health report: %w", err)
	}

	return h, nil
}

// Outcome interprets the report. A missing fetch section counts as pending.
func (h HealthReport) Outcome() HealthOutcome {
	if h.Fetch == nil || !h.Fetch.Finished {
		return HealthPending
	}

	switch h.Fetch.Result {
	case "success":
		return HealthSuccess
	case "failed", "failure":
		return HealthFailure
	default:
		return HealthUnknown
	}
}
