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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/tiendc/go-deepcopy"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
)

// FullConfig is the content of the configuration file.
type FullConfig struct {
	// StatusUpdateIntervalSec is the period of the status page refresh.
	StatusUpdateIntervalSec uint `yaml:"status_update_interval_sec"`

	Lighttpd LighttpdConfig `yaml:"lighttpd"`
	Import   ImportConfig   `yaml:"import"`
	Manager  ManagerConfig  `yaml:"manager"`
}

// ChildConfig holds the initial quota of one child.
type ChildConfig struct {
	RAM  ByteSize `yaml:"ram"`
	Caps uint64   `yaml:"caps"`
}

// LighttpdConfig configures the web server group.
type LighttpdConfig struct {
	ChildConfig `yaml:",inline"`

	HeartbeatMs uint `yaml:"heartbeat_ms"`
}

// ImportConfig configures the import pipeline group.
type ImportConfig struct {
	HeartbeatMs       uint `yaml:"heartbeat_ms"`
	UpdateIntervalMin uint `yaml:"update_interval_min"`

	Fetch    ChildConfig `yaml:"fetchurl"`
	Wipe     ChildConfig `yaml:"wipe"`
	Extract  ChildConfig `yaml:"extract"`
	Generate ChildConfig `yaml:"generate"`
}

// ManagerConfig holds the settings of the manager process itself: where
// reports come from, where specifications go, and the HTTP endpoints.
type ManagerConfig struct {
	ReportDir        string `yaml:"report_dir"`
	ConfigDir        string `yaml:"config_dir"`
	StatusDir        string `yaml:"status_dir"`
	CertificatePath  string `yaml:"certificate_path"`
	HealthReportPath string `yaml:"health_report_path"`
	NetworkStatePath string `yaml:"network_state_path"`

	APIListenAddr string `yaml:"api_listen_addr"`
	MetricsPort   int    `yaml:"metrics_port"`

	HealthCheckMaxFailures uint `yaml:"health_check_max_failures"`
	SentryDSN              string `yaml:"sentry_dsn,omitempty"`
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

func defaultChild() ChildConfig {
	return ChildConfig{RAM: constants.DefaultChildRAM, Caps: constants.DefaultChildCaps}
}

// Default returns the configuration used for every field the file omits.
func Default() FullConfig {
	return FullConfig{
		StatusUpdateIntervalSec: constants.DefaultStatusUpdateIntervalSec,
		Lighttpd: LighttpdConfig{
			ChildConfig: defaultChild(),
			HeartbeatMs: constants.DefaultHeartbeatMs,
		},
		Import: ImportConfig{
			HeartbeatMs:       constants.DefaultHeartbeatMs,
			UpdateIntervalMin: constants.DefaultUpdateIntervalMin,
			Fetch:             defaultChild(),
			Wipe:              defaultChild(),
			Extract:           defaultChild(),
			Generate:          defaultChild(),
		},
		Manager: ManagerConfig{
			ReportDir:              constants.DefaultReportDir,
			ConfigDir:              constants.DefaultConfigDir,
			StatusDir:              constants.DefaultStatusDir,
			CertificatePath:        constants.DefaultCertificatePath,
			HealthReportPath:       constants.DefaultHealthReportPath,
			NetworkStatePath:       constants.DefaultNetworkStatePath,
			APIListenAddr:          constants.DefaultAPIListenAddr,
			MetricsPort:            constants.DefaultMetricsPort,
			HealthCheckMaxFailures: constants.HealthCheckMaxFailures,
		},
	}
}

// Parse decodes data on top of the defaults.
func Parse(data []byte) (FullConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FullConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Clone returns a deep copy.
func (c FullConfig) Clone() FullConfig {
	var clone FullConfig
	if err := deepcopy.Copy(&clone, &c); err != nil {
		return c
	}

	return clone
}

// Validate rejects values that would make the supervisors misbehave.
func (c FullConfig) Validate() error {
	if c.StatusUpdateIntervalSec == 0 {
		return fmt.Errorf("%w: status_update_interval_sec must be positive", ErrInvalidConfig)
	}

	if c.Lighttpd.HeartbeatMs == 0 || c.Import.HeartbeatMs == 0 {
		return fmt.Errorf("%w: heartbeat_ms must be positive", ErrInvalidConfig)
	}

	if c.Import.UpdateIntervalMin == 0 {
		return fmt.Errorf("%w: import.update_interval_min must be positive", ErrInvalidConfig)
	}

	children := map[string]ChildConfig{
		"lighttpd":        c.Lighttpd.ChildConfig,
		"import.fetchurl": c.Import.Fetch,
		"import.wipe":     c.Import.Wipe,
		"import.extract":  c.Import.Extract,
		"import.generate": c.Import.Generate,
	}
	for name, child := range children {
		if child.RAM == 0 || child.Caps == 0 {
			return fmt.Errorf("%w: %s needs a non-zero ram and caps quota", ErrInvalidConfig, name)
		}
	}

	if c.Manager.HealthCheckMaxFailures == 0 {
		return fmt.Errorf("%w: manager.health_check_max_failures must be positive", ErrInvalidConfig)
	}

	return nil
}

// StatusUpdateInterval returns the status refresh period.
func (c FullConfig) StatusUpdateInterval() time.Duration {
	return time.Duration(c.StatusUpdateIntervalSec) * time.Second
}

// UpdateInterval returns the sleep between two import cycles.
func (c ImportConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMin) * time.Minute
}

// ByteSize is a memory amount in bytes. In YAML it accepts plain integers
// as well as sizes such as "48M" or "64K" (binary units).
type ByteSize uint64

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a size, got a %v node", node.Line, node.Kind)
	}

	if n, err := strconv.ParseUint(node.Value, 10, 64); err == nil {
		*b = ByteSize(n)

		return nil
	}

	n, err := units.RAMInBytes(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	if n < 0 {
		return fmt.Errorf("line %d: negative size %q", node.Line, node.Value)
	}

	*b = ByteSize(n)

	return nil
}

func (b ByteSize) MarshalYAML() (interface{}, error) {
	return uint64(b), nil
}

// String renders the size the way the status page shows it, e.g. "48MiB".
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}
