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

// Package fsm wraps looplab/fsm with the conventions shared by the pipeline
// and web server state machines: per-state enter callbacks, context-guarded
// events and logging.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
)

// BaseFSMInstance is embedded by the concrete state machines.
type BaseFSMInstance struct {
	cfg BaseFSMInstanceConfig

	fsm *fsm.FSM

	// Registered "enter_<state>" callbacks, for logging and metrics only.
	callbacks map[string]fsm.Callback

	logger *zap.SugaredLogger
}

// BaseFSMInstanceConfig holds parameters for setting up the base FSM.
type BaseFSMInstanceConfig struct {
	ID           string
	InitialState string
	Transitions  []fsm.EventDesc
}

// NewBaseFSMInstance builds the state machine from cfg.
func NewBaseFSMInstance(cfg BaseFSMInstanceConfig, logger *zap.SugaredLogger) *BaseFSMInstance {
	baseInstance := &BaseFSMInstance{
		cfg:       cfg,
		callbacks: make(map[string]fsm.Callback),
		logger:    logger,
	}

	baseInstance.fsm = fsm.NewFSM(
		cfg.InitialState,
		fsm.Events(cfg.Transitions),
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				baseInstance.logger.Debugf("FSM %s: %s -> %s (%s)", baseInstance.cfg.ID, e.Src, e.Dst, e.Event)

				if cb, ok := baseInstance.callbacks["enter_"+e.Dst]; ok {
					cb(ctx, e)
				}
			},
		},
	)

	return baseInstance
}

// AddCallback registers a callback under "enter_<state>".
func (s *BaseFSMInstance) AddCallback(eventName string, callback fsm.Callback) {
	s.callbacks[eventName] = callback
}

// GetCurrentFSMState returns the current state of the FSM
func (s *BaseFSMInstance) GetCurrentFSMState() string {
	return s.fsm.Current()
}

// SetCurrentFSMState forces the state without running callbacks. Outside
// of tests it is only used to recover from a failed event.
func (s *BaseFSMInstance) SetCurrentFSMState(state string) {
	s.fsm.SetState(state)
}

// Can reports whether event is allowed in the current state.
func (s *BaseFSMInstance) Can(event string) bool {
	return s.fsm.Can(event)
}

// SendEvent fires event. It refuses to start when ctx is already done or
// about to expire, because an interrupted transition leaves looplab/fsm
// rejecting every later event.
func (s *BaseFSMInstance) SendEvent(ctx context.Context, eventName string, args ...interface{}) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < constants.ExpectedMaxP95ExecutionTimePerEvent {
			return errors.New("context deadline exceeded")
		}
	}

	if err := s.fsm.Event(ctx, eventName, args...); err != nil {
		return fmt.Errorf("fsm %s: event %s in state %s: %w", s.cfg.ID, eventName, s.fsm.Current(), err)
	}

	return nil
}

func (s *BaseFSMInstance) GetID() string {
	return s.cfg.ID
}

func (s *BaseFSMInstance) GetLogger() *zap.SugaredLogger {
	return s.logger
}
