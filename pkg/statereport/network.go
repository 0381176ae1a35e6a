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

package statereport

import "fmt"

// NetworkState is the traffic summary of the network router, one entry per
// domain. It is only shown on the status page.
type NetworkState struct {
	Domains []DomainTraffic `yaml:"domains" json:"domains"`
}

type DomainTraffic struct {
	Name    string `yaml:"name" json:"name"`
	RxBytes uint64 `yaml:"rx_bytes" json:"rx_bytes"`
	TxBytes uint64 `yaml:"tx_bytes" json:"tx_bytes"`
}

// ParseNetworkState decodes a network state document.
func ParseNetworkState(data []byte) (NetworkState, error) {
	var n NetworkState
	if err := decode(data, &n); err != nil {
		return NetworkState{}, fmt.Errorf("failed to parse network state: %w", err)
	}

	return n, nil
}

// String renders the state for log lines.
func (n NetworkState) String() string {
	s := ""
	for i, d := range n.Domains {
		if i > 0 {
			s += ", "
		}

		s += fmt.Sprintf("%s rx=%d tx=%d", d.Name, d.RxBytes, d.TxBytes)
	}

	return s
}
