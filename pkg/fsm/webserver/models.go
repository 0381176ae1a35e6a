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

// Web server states
const (
	// OperationalStateRunning is the steady state, the service is part of
	// the specification.
	OperationalStateRunning = "running"
	// OperationalStateRestarting is held while a restart is emitted
	OperationalStateRestarting = "restarting"
)

// Web server events
const (
	EventRestart     = "restart"
	EventRestartDone = "restart_done"
)

// ChildName is the name of the supervised service.
const ChildName = "lighttpd"
