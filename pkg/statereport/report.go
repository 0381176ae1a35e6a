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

// Package statereport parses the documents the external supervisor writes
// back: per-group state reports, the web server health report and the
// network traffic summary. Documents are YAML or JSON.
package statereport

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
)

// ErrEmptyDocument is returned for documents without content.
var ErrEmptyDocument = errors.New("empty document")

// Report is the state report of one group.
type Report struct {
	Children []Child `yaml:"children" json:"children"`

	raw []byte
}

// Child is the reported state of one child.
type Child struct {
	Name    string `yaml:"name" json:"name"`
	Version *uint  `yaml:"version,omitempty" json:"version,omitempty"`
	State   string `yaml:"state,omitempty" json:"state,omitempty"`

	SkippedHeartbeats uint `yaml:"skipped_heartbeats,omitempty" json:"skipped_heartbeats,omitempty"`

	// Exited carries the exit code. Absent while the child runs.
	Exited *int `yaml:"exited,omitempty" json:"exited,omitempty"`

	RAM  *Resource `yaml:"ram,omitempty" json:"ram,omitempty"`
	Caps *Resource `yaml:"caps,omitempty" json:"caps,omitempty"`
}

// Resource is the quota accounting of one resource.
type Resource struct {
	Quota uint64 `yaml:"quota,omitempty" json:"quota,omitempty"`
	Avail uint64 `yaml:"avail,omitempty" json:"avail,omitempty"`

	// Requested is present when the child asked for more than it has.
	Requested *uint64 `yaml:"requested,omitempty" json:"requested,omitempty"`
}

// UpgradeRequested reports whether the child asked for more of r.
func (r *Resource) UpgradeRequested() bool {
	return r != nil && r.Requested != nil
}

// Responsive is false once the child skipped more heartbeats than allowed.
func (c Child) Responsive() bool {
	return c.SkippedHeartbeats <= constants.MaxSkippedHeartbeats
}

// Parse decodes a state report.
func Parse(data []byte) (Report, error) {
	var r Report
	if err := decode(data, &r); err != nil {
		return Report{}, fmt.Errorf("failed to parse state report: %w", err)
	}

	r.raw = append([]byte(nil), bytes.TrimSpace(data)...)

	return r, nil
}

// Raw returns the document the report was parsed from.
func (r Report) Raw() string {
	return string(r.raw)
}

// Digest identifies the reported content independent of the document
// formatting. A redelivered report has the digest of the original.
func (r Report) Digest() uint64 {
	data, err := json.Marshal(r.Children)
	if err != nil {
		return xxhash.Sum64(r.raw)
	}

	return xxhash.Sum64(data)
}

// Child looks up a child by name.
func (r Report) Child(name string) (Child, bool) {
	for _, c := range r.Children {
		if c.Name == name {
			return c, true
		}
	}

	return Child{}, false
}

// ExitState summarizes what the report says about one child.
type ExitState struct {
	Exists     bool
	Responsive bool
	Exited     bool
	Code       int

	// HasVersion is set when the report names the incarnation explicitly.
	HasVersion bool
	Version    uint
}

// ExitStateOf extracts the exit state of the named child.
func (r Report) ExitStateOf(name string) ExitState {
	c, ok := r.Child(name)
	if !ok {
		return ExitState{}
	}

	es := ExitState{
		Exists:     true,
		Responsive: c.Responsive(),
	}

	if c.Exited != nil {
		es.Exited = true
		es.Code = *c.Exited
	}

	if c.Version != nil {
		es.HasVersion = true
		es.Version = *c.Version
	}

	return es
}

func decode(data []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ErrEmptyDocument
	}

	if trimmed[0] == '{' {
		return json.Unmarshal(trimmed, out)
	}

	return yaml.Unmarshal(trimmed, out)
}
