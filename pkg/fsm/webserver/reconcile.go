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
	"time"

	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/sentry"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

// StateUpdate restarts the service when the report shows it exited or
// unresponsive. Entries naming an older incarnation describe a service
// that was already restarted and are ignored. An entry without a version
// names incarnation 0, which is published without one.
func (w *Webserver) StateUpdate(ctx context.Context, report statereport.Report, reconfigure bool) {
	start := time.Now()
	defer func() {
		metrics.ObserveEventHandlingTime(metrics.ComponentWebserver, w.group.Name(), time.Since(start))
	}()

	es := report.ExitStateOf(ChildName)
	stale := es.Version < w.child.Version()

	if es.Exists && !stale {
		switch {
		case es.Exited:
			w.logger.Warnf("%s exited with exit value %d", ChildName, es.Code)
			w.TriggerRestart(ctx, metrics.RestartReasonExited)

			return
		case !es.Responsive:
			w.logger.Warnf("%s is unresponsive", ChildName)
			w.TriggerRestart(ctx, metrics.RestartReasonUnresponsive)

			return
		}
	}

	if reconfigure {
		q := w.child.Quota()
		w.logger.Infof("Applying quota ram=%d caps=%d", q.RAM, q.Caps)
		w.generateConfig(ctx)
	}
}

// TriggerRestart requests a new incarnation and publishes it. It is used
// for crashes as well as for certificate changes and failed health checks.
func (w *Webserver) TriggerRestart(ctx context.Context, reason string) {
	if err := w.baseFSMInstance.SendEvent(ctx, EventRestart); err != nil {
		w.logger.Errorf("Failed to start restart: %v", err)
		metrics.IncErrorCount(metrics.ComponentWebserver, w.group.Name())
		sentry.ReportFSMError(w.logger, w.group.Name(), "webserver", "restart", err)

		return
	}

	w.child.TriggerRestart()
	w.restarts++
	w.lastRestart = w.clock.Now()
	w.lastReason = reason

	metrics.IncWebserverRestarts(w.group.Name(), reason)
	w.logger.Infof("Restarting %s (%s), restart %d, version %d", ChildName, reason, w.restarts, w.child.Version())

	w.generateConfig(ctx)

	if err := w.baseFSMInstance.SendEvent(ctx, EventRestartDone); err != nil {
		w.logger.Errorf("Failed to finish restart: %v", err)
		metrics.IncErrorCount(metrics.ComponentWebserver, w.group.Name())
		// Never stay in restarting, every later restart would be refused.
		w.baseFSMInstance.SetCurrentFSMState(OperationalStateRunning)
	}
}
