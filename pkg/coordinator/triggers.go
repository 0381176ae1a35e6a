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

package coordinator

import (
	"context"
	"fmt"

	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/pipeline"
	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/webserver"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

// Snapshot is a consistent copy of both supervisors.
type Snapshot struct {
	Import         pipeline.Snapshot
	Lighttpd       webserver.Snapshot
	HealthFailures uint
}

// OnReport parses data as the state report of group and hands it to the
// loop. Parse errors are returned to the caller, nothing is enqueued.
func (c *Coordinator) OnReport(group string, data []byte) error {
	g, err := c.group(group)
	if err != nil {
		return err
	}

	report, err := statereport.Parse(data)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentCoordinator, group)

		return fmt.Errorf("failed to parse report of %s: %w", group, err)
	}

	c.Post(func(ctx context.Context) {
		g.HandleReport(ctx, report)
	})

	return nil
}

// OnHealthReport parses the result of the external web site check.
func (c *Coordinator) OnHealthReport(data []byte) error {
	report, err := statereport.ParseHealthReport(data)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentCoordinator, "health")

		return err
	}

	c.Post(func(ctx context.Context) {
		c.handleHealthReport(ctx, report)
	})

	return nil
}

// OnCertChanged (re)arms the certificate restart timer.
func (c *Coordinator) OnCertChanged() {
	c.Post(func(_ context.Context) {
		c.logger.Infof("Certificate changed, restarting web server in %s", constants.CertRestartDelay)
		c.certTimeout.Schedule(constants.CertRestartDelay)
	})
}

// OnNetworkState replaces the network traffic shown on the status page.
func (c *Coordinator) OnNetworkState(data []byte) error {
	state, err := statereport.ParseNetworkState(data)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentCoordinator, "network")

		return err
	}

	c.Post(func(_ context.Context) {
		c.network = &state
		c.statusPending = true
	})

	return nil
}

// ResetImport moves an invalid pipeline back to init.
func (c *Coordinator) ResetImport(ctx context.Context) error {
	return c.Do(ctx, func(loopCtx context.Context) error {
		if err := c.pipeline.Reset(loopCtx); err != nil {
			return err
		}

		c.statusPending = true

		return nil
	})
}

// RestartWebserver restarts the web server on operator request.
func (c *Coordinator) RestartWebserver(ctx context.Context) error {
	return c.Do(ctx, func(loopCtx context.Context) error {
		c.webserver.TriggerRestart(loopCtx, metrics.RestartReasonManualRequest)
		c.statusPending = true

		return nil
	})
}

// RefreshStatus publishes a fresh status page.
func (c *Coordinator) RefreshStatus(ctx context.Context) error {
	return c.Do(ctx, func(_ context.Context) error {
		c.statusPending = true

		return nil
	})
}

// Snapshot copies the supervisor state on the loop.
func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	err := c.Do(ctx, func(_ context.Context) error {
		snap = Snapshot{
			Import:         c.pipeline.Snapshot(),
			Lighttpd:       c.webserver.Snapshot(),
			HealthFailures: c.health.Failures(),
		}

		return nil
	})

	return snap, err
}

// Health checks only start counting after the first completed import, the
// site has nothing to serve before.
func (c *Coordinator) handleHealthReport(ctx context.Context, report statereport.HealthReport) {
	if c.pipeline.Imports() == 0 {
		c.logger.Debugf("Ignoring health report (%s) until the first import completed", report.Outcome())

		return
	}

	outcome := report.Outcome()
	restart := c.health.Observe(report)
	c.statusPending = true

	if outcome == statereport.HealthFailure {
		c.logger.Warnf("Health check failed (%d/%d), network: %s", c.health.Failures(), c.health.Max(), c.networkSummary())
	}

	if restart {
		c.logger.Warnf("Health check failed %d times in a row, restarting web server", c.health.Max())
		c.webserver.TriggerRestart(ctx, metrics.RestartReasonHealthCheck)
	}
}

func (c *Coordinator) networkSummary() string {
	if c.network == nil {
		return "unknown"
	}

	return c.network.String()
}

func (c *Coordinator) handleCertTimeout(ctx context.Context) {
	c.webserver.TriggerRestart(ctx, metrics.RestartReasonCertificate)
	c.statusPending = true
}

func (c *Coordinator) handleStatusTimeout(_ context.Context) {
	c.statusPending = true
	c.statusTimeout.Schedule(c.cfg.StatusUpdateInterval())
}
