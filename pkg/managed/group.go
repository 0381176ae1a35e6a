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

// Package managed implements a supervised process group: it folds state
// reports into per-child quota decisions, caches the latest report, and is
// the single path through which specifications reach the sink.
package managed

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/sentry"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

// Sink receives every generated specification.
type Sink interface {
	Publish(ctx context.Context, group string, document []byte) error
}

// Policy is the state machine driving a group.
type Policy interface {
	// StateUpdate is called for every report after the cache was replaced.
	// reconfigure is set when a child quota changed and the specification
	// must be regenerated.
	StateUpdate(ctx context.Context, report statereport.Report, reconfigure bool)
}

// Notifier is told about every cache replacement.
type Notifier func(group string, report statereport.Report)

// Group is one supervised process group.
type Group struct {
	name     string
	sink     Sink
	policy   Policy
	notifier Notifier
	upgrade  UpgradePolicy

	// Registered children in registration order.
	children []*ChildState

	cached       *statereport.Report
	cachedDigest uint64

	generations uint64
	lastDigest  uint64

	logger *zap.SugaredLogger
}

// NewGroup creates a group publishing to sink. The policy is attached
// with SetPolicy once the state machine exists.
func NewGroup(name string, sink Sink, logger *zap.SugaredLogger) *Group {
	metrics.InitErrorCounter(metrics.ComponentManagedGroup, name)

	return &Group{
		name:    name,
		sink:    sink,
		upgrade: DefaultUpgradePolicy,
		logger:  logger.With("group", name),
	}
}

func (g *Group) Name() string {
	return g.name
}

func (g *Group) SetPolicy(p Policy) {
	g.policy = p
}

func (g *Group) SetNotifier(n Notifier) {
	g.notifier = n
}

func (g *Group) SetUpgradePolicy(u UpgradePolicy) {
	g.upgrade = u
}

// Register adds a child state that outlives individual constructions, such
// as the one of a long-running service.
func (g *Group) Register(cs *ChildState) {
	g.register(cs)
}

func (g *Group) register(cs *ChildState) {
	for _, existing := range g.children {
		if existing == cs {
			return
		}
	}

	g.children = append(g.children, cs)
}

func (g *Group) unregister(cs *ChildState) {
	for i, existing := range g.children {
		if existing == cs {
			g.children = append(g.children[:i], g.children[i+1:]...)

			return
		}
	}
}

// HandleReport folds report into the registered children, replaces the
// cached report, notifies, and hands over to the policy. A report equal to
// the cached one is a redelivery and dropped: it would be checked against
// children constructed because of its first delivery.
func (g *Group) HandleReport(ctx context.Context, report statereport.Report) {
	metrics.IncStateReports(g.name)

	digest := report.Digest()
	if g.cached != nil && digest == g.cachedDigest {
		metrics.IncDuplicateStateReports(g.name)
		g.logger.Debugf("Dropping redelivered state report %016x", digest)

		return
	}

	reconfigure := false

	for _, reported := range report.Children {
		for _, cs := range g.children {
			if cs.ApplyReport(reported, g.upgrade) {
				q := cs.Quota()
				g.logger.Infof("Upgraded quota of %s to ram=%d caps=%d", cs.Name(), q.RAM, q.Caps)

				reconfigure = true
			}
		}
	}

	cached := report
	g.cached = &cached
	g.cachedDigest = digest

	if g.notifier != nil {
		g.notifier(g.name, report)
	}

	if g.policy != nil {
		g.policy.StateUpdate(ctx, report, reconfigure)
	}
}

// GenerateConfig builds a fresh specification with fn and publishes it.
func (g *Group) GenerateConfig(ctx context.Context, fn func(b *Builder)) error {
	b := newBuilder()
	fn(b)

	data, err := Marshal(b.Specification())
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentManagedGroup, g.name)

		return err
	}

	digest := xxhash.Sum64(data)

	if err := g.sink.Publish(ctx, g.name, data); err != nil {
		metrics.IncErrorCount(metrics.ComponentManagedGroup, g.name)
		sentry.ReportServiceError(g.logger, g.name, "managed_group", "publish", err)

		return fmt.Errorf("failed to publish specification of %s: %w", g.name, err)
	}

	g.generations++
	g.lastDigest = digest
	metrics.IncSpecGenerations(g.name)

	g.logger.Debugf("Published specification %016x (%d children)", digest, len(b.Specification().Start))

	return nil
}

// WithCachedStateReport calls avail with the last report, or missing if
// none arrived yet.
func (g *Group) WithCachedStateReport(avail func(report statereport.Report), missing func()) {
	if g.cached == nil {
		if missing != nil {
			missing()
		}

		return
	}

	avail(*g.cached)
}

// CachedReport returns the last report.
func (g *Group) CachedReport() (statereport.Report, bool) {
	if g.cached == nil {
		return statereport.Report{}, false
	}

	return *g.cached, true
}

// Generations counts published specifications.
func (g *Group) Generations() uint64 {
	return g.generations
}

// LastDigest is the xxhash of the last published specification.
func (g *Group) LastDigest() uint64 {
	return g.lastDigest
}
