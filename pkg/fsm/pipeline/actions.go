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
	"time"

	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/sentry"
)

// leave destructs the child of a finished or failed step. Only successful
// steps update the duration history.
func (p *Pipeline) leave(current, next string, now time.Time) {
	if next == current {
		return
	}

	s := p.stepFor(current)
	if s == nil {
		return
	}

	s.child.Destruct()

	if next == StateInvalid {
		return
	}

	s.lastDuration = now.Sub(p.stepStart)
	metrics.SetStepLastDuration(p.group.Name(), s.state, s.lastDuration)
	p.logger.Infof("Step %s finished after %s", s.state, s.lastDuration)
}

// enter runs the entry action of next. A timeout re-entry of the same step
// restarts the child in place.
func (p *Pipeline) enter(ctx context.Context, current, next string, timeout bool, exitValue int, now time.Time) {
	switch next {
	case StateFetch, StateWipe, StateExtract, StateGenerate:
		s := p.stepFor(next)
		if timeout && current == next {
			s.child.TriggerRestart()
		} else {
			s.child.Construct(s.quota)
		}

		if current == StateInit {
			p.importStart = now
		}

		p.stepTimeoutDuration = s.timeout()
		if p.stepTimeoutDuration > 0 {
			p.stepTimeout.Schedule(p.stepTimeoutDuration)
		}
	case StateSleep:
		interval := p.cfg.UpdateInterval()
		p.sleepTimeout.Schedule(interval)
		p.stepTimeoutDuration = 0

		p.imports++
		p.importDuration = now.Sub(p.importStart)
		p.lastUpdate = now
		p.nextUpdate = now.Add(interval)

		metrics.IncImportCycles(p.group.Name())
		p.logger.Infof("Import %d completed in %s, next import at %s", p.imports, p.importDuration, p.nextUpdate.UTC().Format(time.RFC3339))
	case StateInit:
		p.sleepTimeoutTriggered = false
		p.sleepTimeout.Discard()
		p.stepTimeoutDuration = 0
		p.lastExitValue = nil
	case StateInvalid:
		p.stepTimeoutDuration = 0
		p.lastExitValue = &exitValue

		metrics.IncStepFailures(p.group.Name(), current)
		sentry.ReportFSMWarningf(p.logger, p.group.Name(), "pipeline", "step_failed",
			"step %s failed with exit value %d", current, exitValue)
	}
}

// generateConfig publishes the specification of the live children.
func (p *Pipeline) generateConfig(ctx context.Context) {
	err := p.group.GenerateConfig(ctx, func(b *managed.Builder) {
		b.SetHeartbeat(p.cfg.HeartbeatMs)

		for _, s := range p.steps {
			s.child.Generate(b)
		}
	})
	if err != nil {
		p.logger.Errorf("Failed to generate specification in state %s: %v", p.State(), err)
	}
}

// commonParentRoutes are routed to the parent by every step.
func commonParentRoutes() []managed.Route {
	return []managed.Route{
		managed.ParentRoute("ROM", "", ""),
		managed.ParentRoute("CPU", "", ""),
		managed.ParentRoute("PD", "", ""),
		managed.ParentRoute("RM", "", ""),
		managed.ParentRoute("LOG", "", ""),
	}
}

func configRoute(child string) managed.Route {
	return managed.ParentRoute("ROM", "config", child+".config")
}

func fetchStart(s *managed.Start) {
	s.Heartbeat = true
	s.Routes = append([]managed.Route{
		configRoute(ChildFetch),
		managed.ParentRoute("Nic", "", ""),
		managed.ParentRoute("File_system", "", ""),
		managed.ParentRoute("Timer", "", ""),
	}, commonParentRoutes()...)
}

func wipeStart(s *managed.Start) {
	s.Binary = "init"
	s.Heartbeat = true
	s.Routes = append([]managed.Route{
		configRoute(ChildWipe),
		managed.ParentRoute("File_system", "", ""),
		managed.ParentRoute("Timer", "", ""),
	}, commonParentRoutes()...)
}

func extractStart(s *managed.Start) {
	s.Heartbeat = true
	s.Routes = append([]managed.Route{
		managed.ParentRoute("File_system", "", ""),
		configRoute(ChildExtract),
	}, commonParentRoutes()...)
}

func generateStart(s *managed.Start) {
	s.Binary = "init"
	s.Heartbeat = true
	s.Routes = append([]managed.Route{
		configRoute(ChildGenerate),
		managed.ParentRoute("File_system", "", ""),
		managed.ParentRoute("Timer", "", ""),
		managed.ParentRoute("Rtc", "", ""),
	}, commonParentRoutes()...)
}
