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

package status

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/backoff"
	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/service/filesystem"
)

const (
	HTMLFile = "status.html"
	JSONFile = "status.json"
)

// Publisher renders each status, keeps the latest rendering for the HTTP
// API and writes it to the status directory.
type Publisher struct {
	dir       string
	fsService filesystem.Service
	policy    backoff.Policy

	mu     sync.RWMutex
	latest Status
	html   []byte
	json   []byte

	logger *zap.SugaredLogger
}

// NewPublisher writes into dir. An empty dir only keeps the rendering in
// memory.
func NewPublisher(dir string, fsService filesystem.Service, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{
		dir:       dir,
		fsService: fsService,
		policy:    backoff.DefaultPolicy(constants.StatusPublishTimeout / 2),
		logger:    logger,
	}
}

func (p *Publisher) WithRetryPolicy(policy backoff.Policy) *Publisher {
	p.policy = policy

	return p
}

// Publish renders s and writes both files. The in-memory rendering is
// replaced even when writing fails.
func (p *Publisher) Publish(ctx context.Context, s Status) error {
	html, err := RenderHTML(s)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentStatus, "render")

		return err
	}

	data, err := RenderJSON(s)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentStatus, "render")

		return err
	}

	p.mu.Lock()
	p.latest = s
	p.html = html
	p.json = data
	p.mu.Unlock()

	if p.dir == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, constants.StatusPublishTimeout)
	defer cancel()

	err = errors.Join(
		p.write(ctx, HTMLFile, html),
		p.write(ctx, JSONFile, data),
	)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentStatus, "write")

		return err
	}

	return nil
}

func (p *Publisher) write(ctx context.Context, name string, data []byte) error {
	path := filepath.Join(p.dir, name)

	err := backoff.Retry(ctx, p.policy, func() error {
		return filesystem.WriteFileAtomic(ctx, p.fsService, path, data, 0o644)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// Latest returns the last published status.
func (p *Publisher) Latest() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.latest
}

// HTML returns the last rendered page, nil before the first publish.
func (p *Publisher) HTML() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.html
}

// JSON returns the last rendered document, nil before the first publish.
func (p *Publisher) JSON() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.json
}
