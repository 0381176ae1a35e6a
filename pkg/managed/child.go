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

package managed

import (
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

// Result is the outcome of Child.Check: either Ok or Error.
type Result interface {
	isResult()
}

// Ok means the child is running (Finished false) or exited with code 0.
type Ok struct {
	Finished bool
}

// Error means the child failed. ExitValue is the exit code, or
// constants.ExitValueUnresponsive when the child is missing from the
// report or stopped answering heartbeats.
type Error struct {
	ExitValue int
}

func (Ok) isResult()    {}
func (Error) isResult() {}

// StartFunc adds the child specific parts (binary, routes, config) to the
// generic start entry.
type StartFunc func(start *Start)

// Child supervises one child of a group. It exists in the specification
// only between Construct and Destruct.
type Child struct {
	group    *Group
	name     string
	priority Priority
	startFn  StartFunc
	state    *ChildState
	logger   *zap.SugaredLogger
}

// NewChild creates a child that is not constructed yet.
func (g *Group) NewChild(name string, priority Priority, startFn StartFunc) *Child {
	return &Child{
		group:    g,
		name:     name,
		priority: priority,
		startFn:  startFn,
		logger:   g.logger.With("child", name),
	}
}

func (c *Child) Name() string {
	return c.name
}

// Constructed reports whether the child is part of the specification.
func (c *Child) Constructed() bool {
	return c.state != nil
}

// Construct adds the child with the given quota. Constructing an existing
// child keeps the current incarnation.
func (c *Child) Construct(quota Quota) {
	if c.state != nil {
		c.logger.Debugf("Child %s already constructed", c.name)

		return
	}

	c.state = NewChildState(c.name, c.priority, quota)
	c.group.register(c.state)
}

// Destruct removes the child from the specification.
func (c *Child) Destruct() {
	if c.state == nil {
		return
	}

	c.group.unregister(c.state)
	c.state = nil
}

// TriggerRestart bumps the incarnation of a constructed child.
func (c *Child) TriggerRestart() {
	if c.state == nil {
		return
	}

	c.state.TriggerRestart()
	c.logger.Infof("Restart of %s requested, version %d", c.name, c.state.Version())
}

// Quota returns the current quota, zero when not constructed.
func (c *Child) Quota() Quota {
	if c.state == nil {
		return Quota{}
	}

	return c.state.Quota()
}

// Version returns the current incarnation, zero when not constructed.
func (c *Child) Version() uint {
	if c.state == nil {
		return 0
	}

	return c.state.Version()
}

// Check classifies what report says about this child. Entries that name an
// older incarnation than the current one are treated as still running, an
// entry without a version names incarnation 0.
func (c *Child) Check(report statereport.Report) Result {
	es := report.ExitStateOf(c.name)

	if !es.Exists || !es.Responsive {
		return Error{ExitValue: constants.ExitValueUnresponsive}
	}

	if es.Version < c.Version() {
		return Ok{Finished: false}
	}

	if !es.Exited {
		return Ok{Finished: false}
	}

	if es.Code != 0 {
		c.logger.Warnf("Child %s exited with exit value %d", c.name, es.Code)

		return Error{ExitValue: es.Code}
	}

	return Ok{Finished: true}
}

// Generate appends the start entry if the child is constructed.
func (c *Child) Generate(b *Builder) {
	if c.state == nil {
		return
	}

	start := c.state.Start()
	if c.startFn != nil {
		c.startFn(&start)
	}

	b.AddStart(start)
}
