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

package managed

import (
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

// ChildState is the part of a child the group keeps across reports: the
// current (possibly upgraded) quota and the incarnation version.
type ChildState struct {
	name     string
	priority Priority
	quota    Quota
	version  uint
}

// NewChildState starts at version 0 with the initial quota.
func NewChildState(name string, priority Priority, initial Quota) *ChildState {
	return &ChildState{
		name:     name,
		priority: priority,
		quota:    initial,
	}
}

func (c *ChildState) Name() string {
	return c.name
}

func (c *ChildState) Quota() Quota {
	return c.quota
}

// Version is bumped by every restart request. The external supervisor
// restarts a child whose version changed.
func (c *ChildState) Version() uint {
	return c.version
}

// TriggerRestart requests a new incarnation.
func (c *ChildState) TriggerRestart() {
	c.version++
}

// ApplyReport applies the upgrade policy if reported describes this child.
func (c *ChildState) ApplyReport(reported statereport.Child, policy UpgradePolicy) bool {
	if reported.Name != c.name {
		return false
	}

	upgraded, changed := policy(c.quota, reported)
	if !changed {
		return false
	}

	c.quota = upgraded

	return true
}

// Start returns the generic part of the start entry.
func (c *ChildState) Start() Start {
	return Start{
		Name:     c.name,
		Version:  c.version,
		Priority: int(c.priority),
		Caps:     c.quota.Caps,
		RAM:      c.quota.RAM,
	}
}
