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

// Package sink writes published specifications where the external
// supervisor picks them up.
package sink

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/backoff"
	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/service/filesystem"
)

// FileSink writes <dir>/<group>.config. The last write wins.
type FileSink struct {
	dir       string
	fsService filesystem.Service
	policy    backoff.Policy
	logger    *zap.SugaredLogger
}

func NewFileSink(dir string, fsService filesystem.Service, logger *zap.SugaredLogger) *FileSink {
	return &FileSink{
		dir:       dir,
		fsService: fsService,
		policy:    backoff.DefaultPolicy(constants.SpecPublishMaxElapsed),
		logger:    logger,
	}
}

// WithRetryPolicy replaces the write retry policy.
func (s *FileSink) WithRetryPolicy(policy backoff.Policy) *FileSink {
	s.policy = policy

	return s
}

// Path returns the file the specification of group is written to.
func (s *FileSink) Path(group string) string {
	return filepath.Join(s.dir, group+".config")
}

// Publish atomically replaces the specification of group.
func (s *FileSink) Publish(ctx context.Context, group string, document []byte) error {
	ctx, cancel := context.WithTimeout(ctx, constants.SpecPublishTimeout)
	defer cancel()

	path := s.Path(group)
	start := time.Now()
	attempts := 0

	err := backoff.Retry(ctx, s.policy, func() error {
		attempts++

		return filesystem.WriteFileAtomic(ctx, s.fsService, path, document, 0o644)
	})
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentSpecSink, group)

		return fmt.Errorf("failed to write %s after %d attempts: %w", path, attempts, err)
	}

	s.logger.Debugf("Wrote %s (%d bytes) in %s", path, len(document), time.Since(start))

	return nil
}
