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

// Package webserver supervises the long-running web server: it restarts
// the service when it crashed and on external triggers, and counts
// consecutive failed health checks.
package webserver

import (
	"context"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	internal_fsm "github.com/united-manufacturing-hub/site-manager/internal/fsm"
	"github.com/united-manufacturing-hub/site-manager/pkg/config"
	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/timer"
)

// Webserver is the policy of the web server group.
type Webserver struct {
	baseFSMInstance *internal_fsm.BaseFSMInstance

	group *managed.Group
	cfg   config.LighttpdConfig
	clock timer.Clock

	child *managed.ChildState

	restarts    uint
	lastRestart time.Time
	lastReason  string

	logger *zap.SugaredLogger
}

// Snapshot is a copy of the restart counters.
type Snapshot struct {
	State       string
	Restarts    uint
	LastRestart time.Time
	LastReason  string
	Version     uint
	Quota       managed.Quota
}

// NewWebserver attaches the web server to group and publishes its first
// specification, the service always runs.
func NewWebserver(ctx context.Context, cfg config.LighttpdConfig, group *managed.Group, clock timer.Clock, logger *zap.SugaredLogger) *Webserver {
	w := &Webserver{
		group:  group,
		cfg:    cfg,
		clock:  clock,
		child:  managed.NewChildState(ChildName, managed.PriorityDriver, managed.Quota{RAM: uint64(cfg.RAM), Caps: cfg.Caps}),
		logger: logger.With("webserver", group.Name()),
	}

	w.baseFSMInstance = internal_fsm.NewBaseFSMInstance(internal_fsm.BaseFSMInstanceConfig{
		ID:           group.Name(),
		InitialState: OperationalStateRunning,
		Transitions: []fsm.EventDesc{
			{Name: EventRestart, Src: []string{OperationalStateRunning}, Dst: OperationalStateRestarting},
			{Name: EventRestartDone, Src: []string{OperationalStateRestarting}, Dst: OperationalStateRunning},
		},
	}, w.logger)

	w.registerCallbacks()

	group.Register(w.child)
	group.SetPolicy(w)

	metrics.InitErrorCounter(metrics.ComponentWebserver, group.Name())

	w.generateConfig(ctx)

	return w
}

func (w *Webserver) State() string {
	return w.baseFSMInstance.GetCurrentFSMState()
}

// Restarts counts every restart since start.
func (w *Webserver) Restarts() uint {
	return w.restarts
}

// LastRestart is zero until the first restart.
func (w *Webserver) LastRestart() time.Time {
	return w.lastRestart
}

func (w *Webserver) LastReason() string {
	return w.lastReason
}

// Version is the current incarnation of the service.
func (w *Webserver) Version() uint {
	return w.child.Version()
}

// Quota is the current, possibly upgraded, quota.
func (w *Webserver) Quota() managed.Quota {
	return w.child.Quota()
}

func (w *Webserver) Group() *managed.Group {
	return w.group
}

func (w *Webserver) Snapshot() Snapshot {
	return Snapshot{
		State:       w.State(),
		Restarts:    w.restarts,
		LastRestart: w.lastRestart,
		LastReason:  w.lastReason,
		Version:     w.child.Version(),
		Quota:       w.child.Quota(),
	}
}
