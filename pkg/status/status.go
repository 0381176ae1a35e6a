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

// Package status assembles and renders the status page of the manager.
package status

import (
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/pipeline"
	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/webserver"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

// Status is everything shown on the status page.
type Status struct {
	LastUpdate Date     `json:"last_update"`
	Uptime     Duration `json:"uptime_seconds"`
	RunID      string   `json:"run_id"`
	Version    string   `json:"version"`

	Host        *HostInfo                 `json:"host,omitempty"`
	Network     *statereport.NetworkState `json:"network,omitempty"`
	LoopLatency Latency                   `json:"loop_latency"`

	Lighttpd LighttpdStatus `json:"lighttpd"`
	Import   ImportStatus   `json:"import"`
}

type LighttpdStatus struct {
	State       string `json:"state"`
	Restarts    uint   `json:"restarts"`
	LastRestart Date   `json:"last_restart"`
	LastReason  string `json:"last_reason,omitempty"`
	Version     uint   `json:"version"`

	HealthFailures    uint `json:"health_failures"`
	HealthMaxFailures uint `json:"health_max_failures"`
	// HealthInhibited is set until the first import completed.
	HealthInhibited bool `json:"health_inhibited"`

	Specification SpecificationStatus `json:"specification"`
	StateReport   string              `json:"state_report,omitempty"`
}

// SpecificationStatus identifies the last specification published for a
// group.
type SpecificationStatus struct {
	Generations uint64 `json:"generations"`
	Digest      string `json:"digest,omitempty"`
}

func NewSpecificationStatus(generations, digest uint64) SpecificationStatus {
	if generations == 0 {
		return SpecificationStatus{}
	}

	return SpecificationStatus{
		Generations: generations,
		Digest:      fmt.Sprintf("%016x", digest),
	}
}

type StepStatus struct {
	Name         string   `json:"name"`
	Child        string   `json:"child"`
	LastDuration Duration `json:"last_duration_seconds"`
	Active       bool     `json:"active"`
	Version      uint     `json:"version"`
}

type ImportStatus struct {
	State          string   `json:"state"`
	Imports        uint     `json:"imports"`
	ImportDuration Duration `json:"import_duration_seconds"`
	LastUpdate     Date     `json:"last_import"`
	NextUpdate     Date     `json:"next_import"`

	StepTimeout  Duration `json:"step_timeout_seconds"`
	StepDeadline Date     `json:"step_deadline"`

	LastExitValue *int `json:"last_exit_value,omitempty"`

	Steps []StepStatus `json:"steps"`

	Specification SpecificationStatus `json:"specification"`

	// UnderWay is set when the cached report lists children.
	UnderWay    bool   `json:"under_way"`
	StateReport string `json:"state_report,omitempty"`
}

// NewLighttpdStatus converts a web server snapshot.
func NewLighttpdStatus(snap webserver.Snapshot) LighttpdStatus {
	return LighttpdStatus{
		State:       snap.State,
		Restarts:    snap.Restarts,
		LastRestart: Date(snap.LastRestart),
		LastReason:  snap.LastReason,
		Version:     snap.Version,
	}
}

// NewImportStatus converts a pipeline snapshot.
func NewImportStatus(snap pipeline.Snapshot) ImportStatus {
	s := ImportStatus{
		State:          snap.State,
		Imports:        snap.Imports,
		ImportDuration: Duration(snap.ImportDuration),
		LastUpdate:     Date(snap.LastUpdate),
		NextUpdate:     Date(snap.NextUpdate),
		StepTimeout:    Duration(snap.StepTimeout),
		StepDeadline:   Date(snap.StepDeadline),
		LastExitValue:  snap.LastExitValue,
	}

	for _, step := range snap.Steps {
		s.Steps = append(s.Steps, StepStatus{
			Name:         step.State,
			Child:        step.Child,
			LastDuration: Duration(step.LastDuration),
			Active:       step.Active,
			Version:      step.Version,
		})
	}

	return s
}

// WithStateReport attaches the cached report of the group.
func (s ImportStatus) WithStateReport(report statereport.Report, ok bool) ImportStatus {
	if !ok {
		return s
	}

	s.UnderWay = len(report.Children) > 0
	s.StateReport = report.Raw()

	return s
}

func (s LighttpdStatus) WithStateReport(report statereport.Report, ok bool) LighttpdStatus {
	if ok {
		s.StateReport = report.Raw()
	}

	return s
}

// Marker is the activity line shown above the import state report.
func (s ImportStatus) Marker() string {
	if !s.UnderWay {
		return ""
	}

	if s.Imports == 0 {
		return "initial import under way…"
	}

	return "import under way…"
}

// SetUptime sets the uptime from the process start.
func (s *Status) SetUptime(started, now time.Time) {
	s.Uptime = Duration(now.Sub(started))
}
