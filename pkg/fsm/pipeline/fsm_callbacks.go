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
	"context"

	"github.com/looplab/fsm"

	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
)

// registerCallbacks registers the enter callbacks of all states.
// These callbacks are executed synchronously and only log and update metrics.
func (p *Pipeline) registerCallbacks() {
	for _, state := range []string{StateInit, StateFetch, StateWipe, StateExtract, StateGenerate, StateSleep} {
		p.baseFSMInstance.AddCallback("enter_"+state, func(ctx context.Context, e *fsm.Event) {
			p.baseFSMInstance.GetLogger().Infof("Entering %s state for %s", e.Dst, p.baseFSMInstance.GetID())
			metrics.SetPipelineState(p.baseFSMInstance.GetID(), e.Dst)
		})
	}

	p.baseFSMInstance.AddCallback("enter_"+StateInvalid, func(ctx context.Context, e *fsm.Event) {
		p.baseFSMInstance.GetLogger().Errorf("Entering invalid state for %s from %s, operator reset required", p.baseFSMInstance.GetID(), e.Src)
		metrics.SetPipelineState(p.baseFSMInstance.GetID(), e.Dst)
	})
}
