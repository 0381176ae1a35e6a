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

package constants

import "time"

const (
	// StarvationThreshold is how long a probe may wait in the event queue
	// before the loop is considered starved.
	StarvationThreshold = 15 * time.Second

	// StarvationProbeInterval is the interval at which probes are posted.
	StarvationProbeInterval = time.Second

	// EventQueueSize is the capacity of the coordinator queue. Events posted
	// while it is full are buffered in order.
	EventQueueSize = 256

	// SlowEventThreshold marks handler runs that get logged as slow.
	SlowEventThreshold = 100 * time.Millisecond

	// LoopLatencyWindow is how long queue latency samples are kept for the status page.
	LoopLatencyWindow = 5 * time.Minute
)

const (
	// ExpectedMaxP95ExecutionTimePerEvent is the minimum time a context must
	// have left before a state machine transition is started.
	ExpectedMaxP95ExecutionTimePerEvent = 5 * time.Millisecond
)
