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
	"context"

	"github.com/looplab/fsm"
)

// registerCallbacks registers logging callbacks for state transitions
func (w *Webserver) registerCallbacks() {
	w.baseFSMInstance.AddCallback("enter_"+OperationalStateRestarting, func(ctx context.Context, e *fsm.Event) {
		w.baseFSMInstance.GetLogger().Infof("Entering restarting state for %s", w.baseFSMInstance.GetID())
	})

	w.baseFSMInstance.AddCallback("enter_"+OperationalStateRunning, func(ctx context.Context, e *fsm.Event) {
		w.baseFSMInstance.GetLogger().Debugf("Entering running state for %s", w.baseFSMInstance.GetID())
	})
}
