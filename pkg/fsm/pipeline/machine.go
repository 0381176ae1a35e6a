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

// Package pipeline implements the periodic import cycle
// fetch, wipe, extract, generate, sleep as a state machine driving one
// managed group.
package pipeline

import (
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	internal_fsm "github.com/united-manufacturing-hub/site-manager/internal/fsm"
	"github.com/united-manufacturing-hub/site-manager/pkg/config"
	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/timer"
)

// step is one stage of the cycle and the child it runs.
type step struct {
	state     string
	next      string
	doneEvent string

	child *managed.Child
	quota managed.Quota

	// lastDuration is replaced on every successful completion and sizes
	// the next step timeout.
	lastDuration time.Duration
	floor        time.Duration
}

func (s *step) timeout() time.Duration {
	return StepTimeout(s.lastDuration, s.floor)
}

// StepTimeout returns last + max(last/2, floor).
func StepTimeout(last, floor time.Duration) time.Duration {
	return last + max(last/2, floor)
}

// Pipeline is the import state machine. All methods must be called from
// the goroutine that runs the executor passed to NewPipeline.
type Pipeline struct {
	baseFSMInstance *internal_fsm.BaseFSMInstance

	group *managed.Group
	cfg   config.ImportConfig
	clock timer.Clock
	exec  timer.Executor

	steps []*step

	stepTimeout          *timer.OneShotTimeout
	stepTimeoutDuration  time.Duration
	stepTimeoutTriggered bool

	sleepTimeout          *timer.OneShotTimeout
	sleepTimeoutTriggered bool

	importStart    time.Time
	stepStart      time.Time
	importDuration time.Duration
	imports        uint
	lastUpdate     time.Time
	nextUpdate     time.Time

	lastExitValue *int

	logger *zap.SugaredLogger
}

// NewPipeline creates the pipeline in INIT and attaches it as the policy
// of group. Timer expiries are delivered through exec.
func NewPipeline(cfg config.ImportConfig, group *managed.Group, clock timer.Clock, exec timer.Executor, logger *zap.SugaredLogger) *Pipeline {
	p := &Pipeline{
		group:  group,
		cfg:    cfg,
		clock:  clock,
		exec:   exec,
		logger: logger.With("pipeline", group.Name()),
	}

	p.baseFSMInstance = internal_fsm.NewBaseFSMInstance(internal_fsm.BaseFSMInstanceConfig{
		ID:           group.Name(),
		InitialState: StateInit,
		Transitions: []fsm.EventDesc{
			{Name: EventBegin, Src: []string{StateInit}, Dst: StateFetch},
			{Name: EventFetchDone, Src: []string{StateFetch}, Dst: StateWipe},
			{Name: EventWipeDone, Src: []string{StateWipe}, Dst: StateExtract},
			{Name: EventExtractDone, Src: []string{StateExtract}, Dst: StateGenerate},
			{Name: EventGenerateDone, Src: []string{StateGenerate}, Dst: StateSleep},
			{Name: EventFail, Src: StepStates, Dst: StateInvalid},
			{Name: EventWake, Src: []string{StateSleep}, Dst: StateInit},
			{Name: EventReset, Src: []string{StateInvalid}, Dst: StateInit},
		},
	}, p.logger)

	p.steps = []*step{
		p.newStep(StateFetch, StateWipe, EventFetchDone, ChildFetch, cfg.Fetch,
			constants.DefaultFetchDuration, constants.FetchTimeoutFloor, fetchStart),
		p.newStep(StateWipe, StateExtract, EventWipeDone, ChildWipe, cfg.Wipe,
			constants.DefaultWipeDuration, constants.StepTimeoutFloor, wipeStart),
		p.newStep(StateExtract, StateGenerate, EventExtractDone, ChildExtract, cfg.Extract,
			constants.DefaultExtractDuration, constants.StepTimeoutFloor, extractStart),
		p.newStep(StateGenerate, StateSleep, EventGenerateDone, ChildGenerate, cfg.Generate,
			constants.DefaultGenerateDuration, constants.StepTimeoutFloor, generateStart),
	}

	p.stepTimeout = timer.NewOneShotTimeout(clock, exec, p.handleStepTimeout)
	p.sleepTimeout = timer.NewOneShotTimeout(clock, exec, p.handleSleepTimeout)

	p.registerCallbacks()
	group.SetPolicy(p)

	metrics.InitErrorCounter(metrics.ComponentPipeline, group.Name())
	metrics.SetPipelineState(group.Name(), StateInit)

	return p
}

func (p *Pipeline) newStep(state, next, doneEvent, child string, cc config.ChildConfig,
	initial, floor time.Duration, startFn managed.StartFunc,
) *step {
	return &step{
		state:        state,
		next:         next,
		doneEvent:    doneEvent,
		child:        p.group.NewChild(child, managed.PriorityDriver, startFn),
		quota:        managed.Quota{RAM: uint64(cc.RAM), Caps: cc.Caps},
		lastDuration: initial,
		floor:        floor,
	}
}

func (p *Pipeline) stepFor(state string) *step {
	for _, s := range p.steps {
		if s.state == state {
			return s
		}
	}

	return nil
}

// State returns the current state.
func (p *Pipeline) State() string {
	return p.baseFSMInstance.GetCurrentFSMState()
}

// Imports counts completed cycles.
func (p *Pipeline) Imports() uint {
	return p.imports
}

// ImportDuration is the duration of the last completed cycle.
func (p *Pipeline) ImportDuration() time.Duration {
	return p.importDuration
}

// LastUpdate is when the last cycle completed.
func (p *Pipeline) LastUpdate() time.Time {
	return p.lastUpdate
}

// NextUpdate is when the next cycle is due.
func (p *Pipeline) NextUpdate() time.Time {
	return p.nextUpdate
}

// LastDuration returns the duration history of a step state.
func (p *Pipeline) LastDuration(state string) time.Duration {
	if s := p.stepFor(state); s != nil {
		return s.lastDuration
	}

	return 0
}

// CurrentStepTimeout is the armed step timeout, zero when none is armed.
func (p *Pipeline) CurrentStepTimeout() time.Duration {
	if !p.stepTimeout.Scheduled() {
		return 0
	}

	return p.stepTimeoutDuration
}

// LastExitValue is the exit value that made the pipeline invalid.
func (p *Pipeline) LastExitValue() (int, bool) {
	if p.lastExitValue == nil {
		return 0, false
	}

	return *p.lastExitValue, true
}

// Child returns the child supervisor of a step state.
func (p *Pipeline) Child(state string) *managed.Child {
	if s := p.stepFor(state); s != nil {
		return s.child
	}

	return nil
}

// Group returns the managed group driven by the pipeline.
func (p *Pipeline) Group() *managed.Group {
	return p.group
}

// Snapshot copies the counters for the status page.
func (p *Pipeline) Snapshot() Snapshot {
	snap := Snapshot{
		State:          p.State(),
		Imports:        p.imports,
		ImportDuration: p.importDuration,
		LastUpdate:     p.lastUpdate,
		NextUpdate:     p.nextUpdate,
		StepTimeout:    p.CurrentStepTimeout(),
		StepDeadline:   p.stepTimeout.Deadline(),
	}

	if p.lastExitValue != nil {
		v := *p.lastExitValue
		snap.LastExitValue = &v
	}

	for _, s := range p.steps {
		snap.Steps = append(snap.Steps, StepSnapshot{
			State:        s.state,
			Child:        s.child.Name(),
			LastDuration: s.lastDuration,
			Active:       s.child.Constructed(),
			Version:      s.child.Version(),
		})
	}

	return snap
}
