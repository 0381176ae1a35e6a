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

package config_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/site-manager/pkg/backoff"
	"github.com/united-manufacturing-hub/site-manager/pkg/config"
	"github.com/united-manufacturing-hub/site-manager/pkg/service/filesystem"
)

var _ = Describe("Parse", func() {
	It("fills every omitted field with its default", func() {
		cfg, err := config.Parse([]byte("import:\n  update_interval_min: 30\n"))
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Import.UpdateIntervalMin).To(Equal(uint(30)))
		Expect(cfg.Import.UpdateInterval()).To(Equal(30 * time.Minute))
		Expect(cfg.Import.HeartbeatMs).To(Equal(uint(3000)))
		Expect(cfg.Import.Fetch.RAM).To(Equal(config.ByteSize(48 * 1024 * 1024)))
		Expect(cfg.Import.Generate.Caps).To(Equal(uint64(300)))
		Expect(cfg.StatusUpdateIntervalSec).To(Equal(uint(60)))
		Expect(cfg.Lighttpd.HeartbeatMs).To(Equal(uint(3000)))
	})

	It("accepts human readable sizes", func() {
		cfg, err := config.Parse([]byte(`
lighttpd:
  ram: 64M
  caps: 400
import:
  generate:
    ram: "128M"
  wipe:
    ram: 1048576
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Lighttpd.RAM).To(Equal(config.ByteSize(64 * 1024 * 1024)))
		Expect(cfg.Lighttpd.Caps).To(Equal(uint64(400)))
		Expect(cfg.Import.Generate.RAM).To(Equal(config.ByteSize(128 * 1024 * 1024)))
		Expect(cfg.Import.Generate.Caps).To(Equal(uint64(300)))
		Expect(cfg.Import.Wipe.RAM).To(Equal(config.ByteSize(1024 * 1024)))
		Expect(cfg.Lighttpd.RAM.String()).To(Equal("64MiB"))
	})

	It("rejects malformed sizes", func() {
		_, err := config.Parse([]byte("lighttpd:\n  ram: lots\n"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects zero intervals on validation", func() {
		cfg := config.Default()
		cfg.Import.UpdateIntervalMin = 0
		Expect(errors.Is(cfg.Validate(), config.ErrInvalidConfig)).To(BeTrue())

		Expect(config.Default().Validate()).To(Succeed())
	})

	It("clones without sharing state", func() {
		orig := config.Default()
		clone := orig.Clone()
		clone.Manager.ReportDir = "/elsewhere"

		Expect(orig.Manager.ReportDir).NotTo(Equal("/elsewhere"))
	})
})

var _ = Describe("FileConfigManager", func() {
	var (
		fs  *filesystem.MockFileSystem
		ctx context.Context
	)

	BeforeEach(func() {
		fs = filesystem.NewMockFileSystem()
		ctx = context.Background()
	})

	newManager := func() *config.FileConfigManager {
		return config.NewFileConfigManager("/config/site-manager.yaml").
			WithFileSystemService(fs).
			WithRetryPolicy(backoff.Policy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxElapsedTime: 50 * time.Millisecond})
	}

	It("returns the defaults when no file exists", func() {
		cfg, err := newManager().GetConfig(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))
	})

	It("does not retry parse errors", func() {
		reads := 0
		fs.WithFile("/config/site-manager.yaml", []byte("import: ["))
		fs.ReadFileFunc = func(context.Context, string) error {
			reads++

			return nil
		}

		_, err := newManager().GetConfig(ctx)
		Expect(err).To(HaveOccurred())
		Expect(reads).To(Equal(1))
	})

	It("applies environment overrides", func() {
		GinkgoT().Setenv(config.EnvReportDir, "/tmp/reports")
		GinkgoT().Setenv(config.EnvMetricsPort, "not-a-port")

		fs.WithFile("/config/site-manager.yaml", []byte("manager:\n  metrics_port: 9100\n"))

		cfg, err := config.LoadConfigWithEnvOverrides(ctx, newManager(), zaptest.NewLogger(GinkgoT()).Sugar())
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Manager.ReportDir).To(Equal("/tmp/reports"))
		Expect(cfg.Manager.MetricsPort).To(Equal(9100))
	})
})
