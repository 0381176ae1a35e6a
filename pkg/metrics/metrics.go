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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/united-manufacturing-hub/site-manager/pkg/logger"
	"github.com/united-manufacturing-hub/site-manager/pkg/sentry"
)

// Component labels.
const (
	ComponentCoordinator  = "coordinator"
	ComponentManagedGroup = "managed_group"
	ComponentPipeline     = "pipeline"
	ComponentWebserver    = "webserver"
	ComponentSpecSink     = "spec_sink"
	ComponentStatus       = "status"
	ComponentFileWatcher  = "file_watcher"
	ComponentAPI          = "api"
	ComponentFilesystem   = "filesystem"
)

// Restart reasons for the web server.
const (
	RestartReasonExited        = "exited"
	RestartReasonUnresponsive  = "unresponsive"
	RestartReasonCertificate   = "certificate"
	RestartReasonHealthCheck   = "health_check"
	RestartReasonManualRequest = "manual"
)

var (
	namespace = "site"
	subsystem = "manager"

	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	eventHandlingTime = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "event_handling_duration_milliseconds",
			Help:      "Time taken to handle one event on the coordinator loop (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.01,
			},
		},
		[]string{"component", "instance"},
	)

	starvationSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loop_starved_total_seconds",
			Help:      "Total seconds the coordinator loop was starved",
		},
	)

	pipelineState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pipeline_state",
			Help:      "Current pipeline state (-1=invalid, 0=init, 1=fetch, 2=wipe, 3=extract, 4=generate, 5=sleep)",
		},
		[]string{"instance"},
	)

	importCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "import_cycles_total",
			Help:      "Number of completed import cycles",
		},
		[]string{"instance"},
	)

	stepLastDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pipeline_step_last_duration_seconds",
			Help:      "Duration of the last successful run of a pipeline step",
		},
		[]string{"instance", "step"},
	)

	stepTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pipeline_step_timeouts_total",
			Help:      "Number of step timeouts that restarted a step in place",
		},
		[]string{"instance", "step"},
	)

	stepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pipeline_step_failures_total",
			Help:      "Number of steps that failed and moved the pipeline to invalid",
		},
		[]string{"instance", "step"},
	)

	webserverRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webserver_restarts_total",
			Help:      "Number of web server restarts by reason",
		},
		[]string{"instance", "reason"},
	)

	healthFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "health_check_consecutive_failures",
			Help:      "Consecutive failed external health checks",
		},
	)

	specGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "specification_generations_total",
			Help:      "Number of specifications published per group",
		},
		[]string{"group"},
	)

	stateReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_reports_total",
			Help:      "Number of state reports received per group",
		},
		[]string{"group"},
	)

	duplicateStateReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duplicate_state_reports_total",
			Help:      "Number of redelivered state reports dropped per group",
		},
		[]string{"group"},
	)

	filesystemOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_total",
			Help:      "Total number of filesystem operations by type",
		},
		[]string{"operation", "result"},
	)

	filesystemOpsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_duration_seconds",
			Help:      "Duration of filesystem operations in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// SetupMetricsEndpoint starts an HTTP server exposing /metrics.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeFatal, logger.For("metrics"))
		}
	}()

	return server
}

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// InitErrorCounter makes the series visible before the first error.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// ObserveEventHandlingTime records how long a handler ran on the loop.
func ObserveEventHandlingTime(component, instance string, duration time.Duration) {
	eventHandlingTime.WithLabelValues(component, instance).Observe(float64(duration.Milliseconds()))
}

// AddStarvationTime increases the starvation counter by the specified seconds.
func AddStarvationTime(seconds float64) {
	starvationSeconds.Add(seconds)
}

// SetPipelineState publishes the numeric value of a pipeline state name.
func SetPipelineState(instance, state string) {
	pipelineState.WithLabelValues(instance).Set(getStateValue(state))
}

func getStateValue(state string) float64 {
	switch state {
	case "init":
		return 0
	case "fetch":
		return 1
	case "wipe":
		return 2
	case "extract":
		return 3
	case "generate":
		return 4
	case "sleep":
		return 5
	default:
		return -1
	}
}

func IncImportCycles(instance string) {
	importCycles.WithLabelValues(instance).Inc()
}

func SetStepLastDuration(instance, step string, d time.Duration) {
	stepLastDuration.WithLabelValues(instance, step).Set(d.Seconds())
}

func IncStepTimeouts(instance, step string) {
	stepTimeouts.WithLabelValues(instance, step).Inc()
}

func IncStepFailures(instance, step string) {
	stepFailures.WithLabelValues(instance, step).Inc()
}

func IncWebserverRestarts(instance, reason string) {
	webserverRestarts.WithLabelValues(instance, reason).Inc()
}

func SetHealthFailures(n uint) {
	healthFailures.Set(float64(n))
}

func IncSpecGenerations(group string) {
	specGenerations.WithLabelValues(group).Inc()
}

func IncStateReports(group string) {
	stateReports.WithLabelValues(group).Inc()
}

func IncDuplicateStateReports(group string) {
	duplicateStateReports.WithLabelValues(group).Inc()
}

// RecordFilesystemOp records a filesystem operation.
func RecordFilesystemOp(operation string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	filesystemOpsTotal.WithLabelValues(operation, result).Inc()
	filesystemOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
