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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/united-manufacturing-hub/site-manager/pkg/api"
	"github.com/united-manufacturing-hub/site-manager/pkg/config"
	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/coordinator"
	"github.com/united-manufacturing-hub/site-manager/pkg/logger"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/sentry"
	"github.com/united-manufacturing-hub/site-manager/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/site-manager/pkg/sink"
	"github.com/united-manufacturing-hub/site-manager/pkg/status"
	"github.com/united-manufacturing-hub/site-manager/pkg/timer"
	"github.com/united-manufacturing-hub/site-manager/pkg/watcher"
)

func main() {
	logger.Initialize()

	log := logger.For(logger.ComponentCore)
	log.Infof("Starting site-manager %s", constants.AppVersion)

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	configManager := config.NewFileConfigManager(os.Getenv(config.EnvConfigPath))

	cfg, err := config.LoadConfigWithEnvOverrides(ctx, configManager, log)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to load config: %v", err)
		os.Exit(1)
	}

	fsService := filesystem.NewDefaultService()

	specSink := sink.NewFileSink(cfg.Manager.ConfigDir, fsService, logger.For(logger.ComponentSpecSink))
	publisher := status.NewPublisher(cfg.Manager.StatusDir, fsService, logger.For(logger.ComponentStatus))

	coord := coordinator.NewCoordinator(ctx, cfg, specSink, publisher, timer.NewRealClock(), logger.For(logger.ComponentCoordinator))

	sentry.InitSentry(constants.AppVersion, cfg.Manager.SentryDSN, true, map[string]string{"run_id": coord.RunID()})

	metricsServer := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.Manager.MetricsPort))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown metrics server: %v", err)
		}
	}()

	fileWatcher := newFileWatcher(cfg.Manager, fsService, coord)
	server := api.NewServer(coord, publisher, logger.For(logger.ComponentAPI))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Run(gctx)
	})
	g.Go(func() error {
		return fileWatcher.Run(gctx)
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.Manager.APIListenAddr)
	})

	if err := g.Wait(); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "site-manager failed: %v", err)
		_ = logger.Sync()
		os.Exit(1)
	}

	log.Info("site-manager stopped")
	_ = logger.Sync()
}

// newFileWatcher feeds the documents of the external supervisor into the
// coordinator.
func newFileWatcher(m config.ManagerConfig, fsService filesystem.Service, coord *coordinator.Coordinator) *watcher.FileWatcher {
	log := logger.For(logger.ComponentFileWatcher)
	fw := watcher.NewFileWatcher(fsService, log)

	// A state file left by a previous run describes children this process
	// never constructed, so only reports written after startup count.
	for _, group := range []string{coordinator.GroupImport, coordinator.GroupLighttpd} {
		fw.Watch(filepath.Join(m.ReportDir, group+".state"), false, func(_ context.Context, path string, data []byte) {
			if err := coord.OnReport(group, data); err != nil {
				log.Warnf("Ignoring %s: %v", path, err)
			}
		})
	}

	fw.Watch(m.HealthReportPath, false, func(_ context.Context, path string, data []byte) {
		if err := coord.OnHealthReport(data); err != nil {
			log.Warnf("Ignoring %s: %v", path, err)
		}
	})

	fw.Watch(m.NetworkStatePath, true, func(_ context.Context, path string, data []byte) {
		if err := coord.OnNetworkState(data); err != nil {
			log.Warnf("Ignoring %s: %v", path, err)
		}
	})

	fw.Watch(m.CertificatePath, false, func(_ context.Context, _ string, _ []byte) {
		coord.OnCertChanged()
	})

	return fw
}
