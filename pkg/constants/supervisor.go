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

// Pipeline step defaults used until a step has completed once.
const (
	DefaultFetchDuration    = 60 * time.Second
	DefaultWipeDuration     = 15 * time.Second
	DefaultExtractDuration  = 15 * time.Second
	DefaultGenerateDuration = 180 * time.Second

	// FetchTimeoutFloor and StepTimeoutFloor bound the grace added on top of
	// the last duration: timeout = last + max(last/2, floor).
	FetchTimeoutFloor = 60 * time.Second
	StepTimeoutFloor  = 15 * time.Second
)

const (
	// ExitValueUnresponsive is reported for a child that is missing from the
	// state report or skipped too many heartbeats.
	ExitValueUnresponsive = -42

	// MaxSkippedHeartbeats is the largest count still considered responsive.
	MaxSkippedHeartbeats = 2
)

const (
	// CertRestartDelay debounces restarts caused by certificate changes.
	CertRestartDelay = 5 * time.Second

	// HealthCheckMaxFailures is the number of consecutive failed health
	// checks that trigger a web server restart.
	HealthCheckMaxFailures = 3
)

const (
	// SpecPublishTimeout bounds a single specification write including retries.
	SpecPublishTimeout = 10 * time.Second

	// SpecPublishMaxElapsed is the retry budget of the sink.
	SpecPublishMaxElapsed = 5 * time.Second

	// StatusPublishTimeout bounds writing the status page.
	StatusPublishTimeout = 5 * time.Second
)
