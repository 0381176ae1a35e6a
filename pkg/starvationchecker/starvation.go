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

package starvationchecker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/logger"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/sentry"
)

// Poster enqueues fn on the loop that is being monitored. It returns false
// when the loop refused the probe, for example because its queue is full.
type Poster func(fn func(ctx context.Context)) bool

// StarvationChecker detects periods in which the coordinator loop does not
// get around to handling its queue.
//
// A probe is posted every interval. When the loop runs the probe it marks
// itself alive. The background goroutine compares the time since the last
// processed probe against the threshold, so a loop that is blocked inside a
// handler is reported even though no probe ever completes.
type StarvationChecker struct {
	lastProbeTime       time.Time
	ctx                 context.Context //nolint:containedctx // background service lifecycle
	post                Poster
	logger              *zap.SugaredLogger
	cancel              context.CancelFunc
	wg                  sync.WaitGroup
	starvationThreshold time.Duration
	interval            time.Duration
	mutex               sync.RWMutex
}

// NewStarvationChecker starts a checker posting probes through post. It
// must be stopped with Stop.
func NewStarvationChecker(threshold, interval time.Duration, post Poster) *StarvationChecker {
	ctx, cancel := context.WithCancel(context.Background())
	checker := &StarvationChecker{
		starvationThreshold: threshold,
		interval:            interval,
		lastProbeTime:       time.Now(),
		post:                post,
		logger:              logger.For(logger.ComponentStarvationChecker),
		ctx:                 ctx,
		cancel:              cancel,
	}

	checker.wg.Add(1)

	go checker.checkStarvationLoop()

	checker.logger.Infof("Starvation checker created with threshold %s", threshold)

	return checker
}

func (s *StarvationChecker) checkStarvationLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.post != nil && !s.post(s.Probe) {
				s.logger.Debugf("Loop refused starvation probe")
			}

			since := time.Since(s.GetLastProbeTime())
			if since > s.starvationThreshold {
				starvationTime := since.Seconds()
				metrics.AddStarvationTime(starvationTime)
				sentry.ReportIssuef(sentry.IssueTypeWarning, s.logger, "[StarvationChecker.checkStarvationLoop] Coordinator loop starvation detected: %.2f seconds since last probe", starvationTime)
			} else {
				s.logger.Debugf("Coordinator loop is healthy, last probe was %.2f seconds ago", since.Seconds())
			}
		}
	}
}

// Stop terminates the background goroutine.
func (s *StarvationChecker) Stop() {
	s.logger.Info("Stopping starvation checker")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Starvation checker stopped")
}

// Probe marks the loop as alive. It runs on the monitored loop.
func (s *StarvationChecker) Probe(_ context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastProbeTime = time.Now()
}

// GetLastProbeTime returns when the loop last handled a probe.
func (s *StarvationChecker) GetLastProbeTime() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.lastProbeTime
}
