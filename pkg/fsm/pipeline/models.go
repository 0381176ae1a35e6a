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

package pipeline

import (
	"time"
)

// Pipeline states. Exactly one step state has a live child.
const (
	// StateInvalid is entered when a step failed. It is only left through
	// an operator reset.
	StateInvalid = "invalid"
	// StateInit waits for the next report to start a cycle
	StateInit = "init"

	StateFetch    = "fetch"
	StateWipe     = "wipe"
	StateExtract  = "extract"
	StateGenerate = "generate"

	// StateSleep waits for the sleep timeout between two cycles
	StateSleep = "sleep"
)

// Pipeline events
const (
	EventBegin        = "begin"
	EventFetchDone    = "fetch_done"
	EventWipeDone     = "wipe_done"
	EventExtractDone  = "extract_done"
	EventGenerateDone = "generate_done"
	EventFail         = "fail"
	EventWake         = "wake"
	EventReset        = "reset"
)

// Names of the children started by the steps.
const (
	ChildFetch    = "fetchurl"
	ChildWipe     = "wipe"
	ChildExtract  = "extract"
	ChildGenerate = "generate"
)

// StepStates lists the step states in pipeline order.
var StepStates = []string{StateFetch, StateWipe, StateExtract, StateGenerate}

// IsStepState returns whether a child is running in state.
func IsStepState(state string) bool {
	switch state {
	case StateFetch, StateWipe, StateExtract, StateGenerate:
		return true
	}

	return false
}

// StepSnapshot is the observable part of one step.
type StepSnapshot struct {
	State        string
	Child        string
	LastDuration time.Duration
	Active       bool
	Version      uint
}

// Snapshot is a copy of the pipeline counters taken on the loop goroutine
// for rendering elsewhere.
type Snapshot struct {
	State string

	Imports        uint
	ImportDuration time.Duration
	LastUpdate     time.Time
	NextUpdate     time.Time

	// StepTimeout is the currently armed step timeout, zero when none.
	StepTimeout  time.Duration
	StepDeadline time.Time

	// LastExitValue is set while the pipeline is invalid.
	LastExitValue *int

	Steps []StepSnapshot
}
