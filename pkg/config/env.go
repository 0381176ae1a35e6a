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
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Environment variables that override the manager section.
const (
	// EnvConfigPath selects the configuration file itself.
	EnvConfigPath    = "SITE_MANAGER_CONFIG"
	EnvReportDir     = "SITE_MANAGER_REPORT_DIR"
	EnvConfigDir     = "SITE_MANAGER_CONFIG_DIR"
	EnvStatusDir     = "SITE_MANAGER_STATUS_DIR"
	EnvAPIListenAddr = "SITE_MANAGER_API_LISTEN_ADDR"
	EnvMetricsPort   = "SITE_MANAGER_METRICS_PORT"
	EnvSentryDSN     = "SITE_MANAGER_SENTRY_DSN"
)

// ApplyEnvOverrides replaces manager settings with non-empty environment
// values. Invalid numbers are reported and ignored.
func ApplyEnvOverrides(cfg FullConfig, log *zap.SugaredLogger) FullConfig {
	out := cfg.Clone()

	overrides := map[string]*string{
		EnvReportDir:     &out.Manager.ReportDir,
		EnvConfigDir:     &out.Manager.ConfigDir,
		EnvStatusDir:     &out.Manager.StatusDir,
		EnvAPIListenAddr: &out.Manager.APIListenAddr,
		EnvSentryDSN:     &out.Manager.SentryDSN,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	if v := os.Getenv(EnvMetricsPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			log.Warnf("Ignoring %s=%q: not a valid port", EnvMetricsPort, v)
		} else {
			out.Manager.MetricsPort = port
		}
	}

	return out
}

// LoadConfigWithEnvOverrides loads the file through m and applies the
// environment overrides on top. The result is validated.
func LoadConfigWithEnvOverrides(ctx context.Context, m *FileConfigManager, log *zap.SugaredLogger) (FullConfig, error) {
	cfg, err := m.GetConfig(ctx)
	if err != nil {
		return FullConfig{}, err
	}

	cfg = ApplyEnvOverrides(cfg, log)

	if err := cfg.Validate(); err != nil {
		return FullConfig{}, fmt.Errorf("config %s: %w", m.configPath, err)
	}

	return cfg, nil
}
