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
	"errors"
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/sentry"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

// ErrNotInvalid is returned by Reset when the pipeline did not fail.
var ErrNotInvalid = errors.New("pipeline is not invalid")

// StateUpdate is the single entry point for reports and timer expiries.
// It evaluates the next state from the current one, and only when
// something changed applies the entry actions and emits a specification.
func (p *Pipeline) StateUpdate(ctx context.Context, report statereport.Report, reconfigure bool) {
	start := time.Now()
	defer func() {
		metrics.ObserveEventHandlingTime(metrics.ComponentPipeline, p.group.Name(), time.Since(start))
	}()

	current := p.State()

	timeout := p.stepTimeoutTriggered && IsStepState(current)
	p.stepTimeoutTriggered = false

	next, exitValue := p.evaluate(current, report, timeout)

	// still processing without apparent problems
	if next == current && !reconfigure && !timeout {
		return
	}

	// A quota upgrade only regenerates the specification. A transition
	// found in the same event is taken with the next report.
	if reconfigure {
		p.generateConfig(ctx)

		return
	}

	if err := p.commit(ctx, current, next, timeout, exitValue); err != nil {
		metrics.IncErrorCount(metrics.ComponentPipeline, p.group.Name())
		sentry.ReportFSMError(p.logger, p.group.Name(), "pipeline", "state_update", err)
	}
}

// evaluate computes the next state without side effects. A step timeout
// counts as "still running".
func (p *Pipeline) evaluate(current string, report statereport.Report, timeout bool) (string, int) {
	switch current {
	case StateInit:
		return StateFetch, 0
	case StateSleep:
		if p.sleepTimeoutTriggered {
			return StateInit, 0
		}

		return StateSleep, 0
	case StateFetch, StateWipe, StateExtract, StateGenerate:
		s := p.stepFor(current)
		if timeout {
			return current, 0
		}

		switch result := s.child.Check(report).(type) {
		case managed.Ok:
			if result.Finished {
				return s.next, 0
			}

			return current, 0
		case managed.Error:
			return StateInvalid, result.ExitValue
		}
	}

	return StateInvalid, 0
}

// commit leaves current, enters next and publishes the new specification.
func (p *Pipeline) commit(ctx context.Context, current, next string, timeout bool, exitValue int) error {
	now := p.clock.Now()

	if next != current {
		if err := p.baseFSMInstance.SendEvent(ctx, p.eventFor(current, next)); err != nil {
			return err
		}
	}

	p.leave(current, next, now)

	p.stepTimeout.Discard()
	p.stepStart = now

	p.enter(ctx, current, next, timeout, exitValue, now)

	p.generateConfig(ctx)

	// INIT is left on the next event. Posting the cached report keeps the
	// cycle going when no fresh report follows.
	if next == StateInit {
		p.exec(p.Kick)
	}

	return nil
}

func (p *Pipeline) eventFor(current, next string) string {
	switch {
	case next == StateInvalid:
		return EventFail
	case current == StateInit:
		return EventBegin
	case current == StateSleep:
		return EventWake
	case current == StateInvalid:
		return EventReset
	}

	if s := p.stepFor(current); s != nil {
		return s.doneEvent
	}

	return ""
}

// handleStepTimeout re-enters StateUpdate with the cached report.
func (p *Pipeline) handleStepTimeout(ctx context.Context) {
	state := p.State()
	p.logger.Warnf("Timeout triggered for step %s after %s", state, p.stepTimeoutDuration)
	metrics.IncStepTimeouts(p.group.Name(), state)

	p.stepTimeoutTriggered = true
	p.withReport(func(report statereport.Report) {
		p.StateUpdate(ctx, report, false)
	})
}

func (p *Pipeline) handleSleepTimeout(ctx context.Context) {
	p.sleepTimeoutTriggered = true
	p.withReport(func(report statereport.Report) {
		p.StateUpdate(ctx, report, false)
	})
}

// Kick evaluates the cached report, or an empty one if none arrived yet.
// It starts the first cycle without waiting for the external supervisor.
func (p *Pipeline) Kick(ctx context.Context) {
	p.withReport(func(report statereport.Report) {
		p.StateUpdate(ctx, report, false)
	})
}

func (p *Pipeline) withReport(fn func(report statereport.Report)) {
	p.group.WithCachedStateReport(fn, func() {
		fn(statereport.Report{})
	})
}

// Reset takes an invalid pipeline back to INIT. It is never called
// automatically.
func (p *Pipeline) Reset(ctx context.Context) error {
	current := p.State()
	if current != StateInvalid {
		return fmt.Errorf("cannot reset pipeline %s in state %s: %w", p.group.Name(), current, ErrNotInvalid)
	}

	p.logger.Infof("Operator reset of pipeline %s", p.group.Name())

	return p.commit(ctx, current, StateInit, false, 0)
}
