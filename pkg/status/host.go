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
	"fmt"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo describes the machine the manager runs on.
type HostInfo struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`

	MemoryTotal     uint64  `json:"memory_total_bytes"`
	MemoryAvailable uint64  `json:"memory_available_bytes"`
	MemoryUsedPct   float64 `json:"memory_used_percent"`

	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// Memory renders the memory line of the overview.
func (h HostInfo) Memory() string {
	return fmt.Sprintf("%s of %s available (%.1f%% used)",
		FormatBytes(h.MemoryAvailable), FormatBytes(h.MemoryTotal), h.MemoryUsedPct)
}

// CollectHostInfo reads host, memory and load information. Parts that
// cannot be read stay empty, an error is only returned when nothing could
// be read.
func CollectHostInfo(ctx context.Context) (*HostInfo, error) {
	info := &HostInfo{}

	var errs []error

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = fmt.Sprintf("%s %s (%s)", h.Platform, h.PlatformVersion, h.KernelVersion)
	} else {
		errs = append(errs, err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryAvailable = vm.Available
		info.MemoryUsedPct = vm.UsedPercent
	} else {
		errs = append(errs, err)
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.Load1 = avg.Load1
		info.Load5 = avg.Load5
		info.Load15 = avg.Load15
	} else {
		errs = append(errs, err)
	}

	if len(errs) == 3 {
		return nil, fmt.Errorf("failed to collect host info: %w", errs[0])
	}

	return info, nil
}
