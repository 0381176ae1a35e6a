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

	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/sentry"
	"github.com/united-manufacturing-hub/site-manager/pkg/status"
)

func (c *Coordinator) buildStatus(ctx context.Context) status.Status {
	now := c.clock.Now()

	s := status.Status{
		LastUpdate:  status.Date(now),
		RunID:       c.runID,
		Version:     constants.AppVersion,
		Network:     c.network,
		LoopLatency: status.CalculateLatency(c.latencies),
		Lighttpd:    status.NewLighttpdStatus(c.webserver.Snapshot()).WithStateReport(c.lighttpdGroup.CachedReport()),
		Import:      status.NewImportStatus(c.pipeline.Snapshot()).WithStateReport(c.importGroup.CachedReport()),
	}
	s.SetUptime(c.started, now)

	s.Lighttpd.HealthFailures = c.health.Failures()
	s.Lighttpd.HealthMaxFailures = c.health.Max()
	s.Lighttpd.HealthInhibited = c.pipeline.Imports() == 0

	s.Lighttpd.Specification = status.NewSpecificationStatus(c.lighttpdGroup.Generations(), c.lighttpdGroup.LastDigest())
	s.Import.Specification = status.NewSpecificationStatus(c.importGroup.Generations(), c.importGroup.LastDigest())

	if c.hostInfo != nil {
		host, err := c.hostInfo(ctx)
		if err != nil {
			c.logger.Debugf("Failed to collect host info: %v", err)
		} else {
			s.Host = host
		}
	}

	return s
}

func (c *Coordinator) updateStatus(ctx context.Context) {
	c.statusPending = false

	if c.publisher == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, constants.StatusPublishTimeout)
	defer cancel()

	if err := c.publisher.Publish(publishCtx, c.buildStatus(publishCtx)); err != nil {
		metrics.IncErrorCount(metrics.ComponentStatus, "publish")
		sentry.ReportIssuef(sentry.IssueTypeWarning, c.logger, "Failed to publish status: %v", err)
	}
}
