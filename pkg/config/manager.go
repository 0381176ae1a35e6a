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

package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/backoff"
	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/logger"
	"github.com/united-manufacturing-hub/site-manager/pkg/service/filesystem"
)

// FileConfigManager reads the configuration file.
type FileConfigManager struct {
	configPath string
	fsService  filesystem.Service
	policy     backoff.Policy
	logger     *zap.SugaredLogger
}

// NewFileConfigManager reads from path, or the default location when path
// is empty.
func NewFileConfigManager(path string) *FileConfigManager {
	if path == "" {
		path = constants.DefaultConfigPath
	}

	return &FileConfigManager{
		configPath: path,
		fsService:  filesystem.NewDefaultService(),
		policy:     backoff.DefaultPolicy(constants.SpecPublishMaxElapsed),
		logger:     logger.For(logger.ComponentConfigManager),
	}
}

// WithFileSystemService allows setting a custom filesystem service.
func (m *FileConfigManager) WithFileSystemService(fsService filesystem.Service) *FileConfigManager {
	m.fsService = fsService

	return m
}

// WithRetryPolicy replaces the read retry policy.
func (m *FileConfigManager) WithRetryPolicy(policy backoff.Policy) *FileConfigManager {
	m.policy = policy

	return m
}

// GetConfig reads and parses the file. A missing file yields the defaults;
// an unparsable file is a permanent error and is not retried.
func (m *FileConfigManager) GetConfig(ctx context.Context) (FullConfig, error) {
	var cfg FullConfig

	err := backoff.Retry(ctx, m.policy, func() error {
		exists, err := m.fsService.PathExists(ctx, m.configPath)
		if err != nil {
			return err
		}

		if !exists {
			m.logger.Infof("No config file at %s, using defaults", m.configPath)

			cfg = Default()

			return nil
		}

		data, err := m.fsService.ReadFile(ctx, m.configPath)
		if err != nil {
			return err
		}

		parsed, err := Parse(data)
		if err != nil {
			return backoff.NewPermanentError(err)
		}

		cfg = parsed

		return nil
	})
	if err != nil {
		return FullConfig{}, fmt.Errorf("failed to load config %s: %w", m.configPath, err)
	}

	return cfg, nil
}
