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

// Package coordinator owns both supervised groups and serializes every
// stimulus through one event loop: state reports, timer expiries, health
// and certificate notifications, operator requests and status refreshes.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/config"
	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/pipeline"
	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/webserver"
	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/starvationchecker"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
	"github.com/united-manufacturing-hub/site-manager/pkg/status"
	"github.com/united-manufacturing-hub/site-manager/pkg/timer"
)

// Group names, also used as file names by the sink and the report watcher.
const (
	GroupImport   = "import"
	GroupLighttpd = "lighttpd"
)

var (
	// ErrUnknownGroup is returned for reports addressed to a group that does not exist.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrStopped is returned when the loop is no longer running.
	ErrStopped = errors.New("coordinator stopped")
)

// StatusPublisher receives every refreshed status.
type StatusPublisher interface {
	Publish(ctx context.Context, s status.Status) error
}

type event struct {
	fn       func(ctx context.Context)
	enqueued time.Time
}

// Coordinator is the single consumer of all triggers. Everything except
// the exported trigger methods runs on the loop goroutine.
type Coordinator struct {
	cfg   config.FullConfig
	clock timer.Clock

	queue chan event
	done  chan struct{}

	// overflow holds events posted while the queue was full, in order.
	// Guarded by mu, which also serializes every send into queue.
	mu       sync.Mutex
	overflow []event

	importGroup   *managed.Group
	lighttpdGroup *managed.Group

	pipeline  *pipeline.Pipeline
	webserver *webserver.Webserver
	health    *webserver.HealthCheck

	certTimeout   *timer.OneShotTimeout
	statusTimeout *timer.OneShotTimeout
	statusPending bool

	network   *statereport.NetworkState
	publisher StatusPublisher
	hostInfo  func(ctx context.Context) (*status.HostInfo, error)

	latencies *expiremap.ExpireMap[time.Time, time.Duration]

	runID   string
	started time.Time

	logger *zap.SugaredLogger
}

// NewCoordinator builds both groups on top of sink. The web server
// specification is published before NewCoordinator returns, the import
// pipeline waits for Run.
func NewCoordinator(ctx context.Context, cfg config.FullConfig, sink managed.Sink, publisher StatusPublisher, clock timer.Clock, logger *zap.SugaredLogger) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		clock:     clock,
		queue:     make(chan event, constants.EventQueueSize),
		done:      make(chan struct{}),
		publisher: publisher,
		hostInfo:  status.CollectHostInfo,
		health:    webserver.NewHealthCheck(cfg.Manager.HealthCheckMaxFailures),
		latencies: expiremap.NewEx[time.Time, time.Duration](constants.LoopLatencyWindow, constants.LoopLatencyWindow),
		runID:     uuid.New().String(),
		started:   clock.Now(),
		logger:    logger,
	}

	c.importGroup = managed.NewGroup(GroupImport, sink, logger)
	c.lighttpdGroup = managed.NewGroup(GroupLighttpd, sink, logger)

	c.importGroup.SetNotifier(c.reportCached)
	c.lighttpdGroup.SetNotifier(c.reportCached)

	c.pipeline = pipeline.NewPipeline(cfg.Import, c.importGroup, clock, c.Post, logger)
	c.webserver = webserver.NewWebserver(ctx, cfg.Lighttpd, c.lighttpdGroup, clock, logger)

	c.certTimeout = timer.NewOneShotTimeout(clock, c.Post, c.handleCertTimeout)
	c.statusTimeout = timer.NewOneShotTimeout(clock, c.Post, c.handleStatusTimeout)

	metrics.InitErrorCounter(metrics.ComponentCoordinator, "main")

	c.logger.Infof("Coordinator created with run id %s", c.runID)

	return c
}

// RunID identifies this process run on the status page and in sentry.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Run consumes the queue until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	checker := starvationchecker.NewStarvationChecker(constants.StarvationThreshold, constants.StarvationProbeInterval, c.TryPost)
	defer checker.Stop()

	defer close(c.done)

	c.Post(c.start)

	for {
		select {
		case <-ctx.Done():
			c.certTimeout.Discard()
			c.statusTimeout.Discard()
			c.logger.Infof("Coordinator stopped")

			return nil
		case e := <-c.queue:
			c.refill()
			c.handle(ctx, e)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, e event) {
	c.latencies.Set(e.enqueued, time.Since(e.enqueued))

	start := time.Now()
	e.fn(ctx)

	if c.statusPending {
		c.updateStatus(ctx)
	}

	elapsed := time.Since(start)
	metrics.ObserveEventHandlingTime(metrics.ComponentCoordinator, "main", elapsed)

	if elapsed > constants.SlowEventThreshold {
		c.logger.Warnf("Event took %s to handle", elapsed)
	}
}

func (c *Coordinator) start(ctx context.Context) {
	c.pipeline.Kick(ctx)
	c.statusTimeout.Schedule(c.cfg.StatusUpdateInterval())
	c.statusPending = true
}

// Post enqueues fn without blocking the caller, which may be the loop
// itself. When the queue is full the event waits in the overflow list, so
// events always reach the loop in posting order. Events posted after the
// loop stopped are dropped.
func (c *Coordinator) Post(fn func(ctx context.Context)) {
	if !c.enqueue(event{fn: fn, enqueued: time.Now()}, true) {
		c.logger.Debugf("Dropping event: %v", ErrStopped)
	}
}

// TryPost enqueues fn unless the queue is full or events are waiting in
// the overflow list.
func (c *Coordinator) TryPost(fn func(ctx context.Context)) bool {
	return c.enqueue(event{fn: fn, enqueued: time.Now()}, false)
}

func (c *Coordinator) enqueue(e event, spill bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return false
	default:
	}

	if len(c.overflow) == 0 {
		select {
		case c.queue <- e:
			return true
		default:
		}
	}

	if !spill {
		return false
	}

	if len(c.overflow) == 0 {
		c.logger.Warnf("Event queue full, buffering events")
	}

	c.overflow = append(c.overflow, e)

	return true
}

// refill moves buffered events into the queue while it has room. The loop
// calls it after every receive, so the overflow list is only non-empty
// while the queue is full.
func (c *Coordinator) refill() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.overflow) > 0 {
		select {
		case c.queue <- c.overflow[0]:
			c.overflow[0] = event{}
			c.overflow = c.overflow[1:]
		default:
			return
		}
	}

	c.overflow = nil
}

// Do runs fn on the loop and waits for its result.
func (c *Coordinator) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)

	if !c.enqueue(event{fn: func(loopCtx context.Context) { result <- fn(loopCtx) }, enqueued: time.Now()}, true) {
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) group(name string) (*managed.Group, error) {
	switch name {
	case GroupImport:
		return c.importGroup, nil
	case GroupLighttpd:
		return c.lighttpdGroup, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
}

// reportCached is the notifier of both groups.
func (c *Coordinator) reportCached(_ string, _ statereport.Report) {
	c.statusPending = true
}
