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

package constants

// Defaults of the configuration file. See pkg/config.
const (
	DefaultConfigPath = "/config/site-manager.yaml"

	DefaultStatusUpdateIntervalSec = 60
	DefaultHeartbeatMs             = 3000
	DefaultUpdateIntervalMin       = 180
	DefaultChildRAM                = 48 * 1024 * 1024
	DefaultChildCaps               = 300

	DefaultReportDir        = "/data/report"
	DefaultConfigDir        = "/data/config"
	DefaultStatusDir        = "/data/status"
	DefaultCertificatePath  = "/data/certs/cert.pem"
	DefaultHealthReportPath = "/data/report/fetch_lighttpd.report"
	DefaultNetworkStatePath = "/data/report/network.state"

	DefaultAPIListenAddr = ":8080"
	DefaultMetricsPort   = 8081
)
