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

// Quota is the resource budget handed to a child at construction.
type Quota struct {
	RAM  uint64
	Caps uint64
}

// Priority of a child in the specification. Lower values are scheduled
// with lower priority.
type Priority int

const (
	PriorityDriver     Priority = 0
	PriorityNetwork    Priority = -1
	PriorityStorage    Priority = -2
	PriorityBackground Priority = -3
)

// CapsUpgradeStep is added to the capability quota per upgrade request.
const CapsUpgradeStep = 100

// UpgradePolicy decides from one reported child entry whether the quota
// must grow. It returns the new quota and true when it changed.
type UpgradePolicy func(current Quota, reported statereport.Child) (Quota, bool)

// DefaultUpgradePolicy doubles RAM when the child requested RAM and adds
// CapsUpgradeStep capabilities when it requested caps.
func DefaultUpgradePolicy(current Quota, reported statereport.Child) (Quota, bool) {
	upgraded := current
	changed := false

	if reported.RAM.UpgradeRequested() {
		upgraded.RAM *= 2
		changed = true
	}

	if reported.Caps.UpgradeRequested() {
		upgraded.Caps += CapsUpgradeStep
		changed = true
	}

	return upgraded, changed
}
