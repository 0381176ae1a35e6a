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

package webserver_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/site-manager/internal/fsmtest"
	"github.com/united-manufacturing-hub/site-manager/pkg/config"
	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/webserver"
	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
	"github.com/united-manufacturing-hub/site-manager/pkg/timer"
)

var _ = Describe("Webserver", func() {
	var (
		ctx   context.Context
		clock *timer.FakeClock
		sink  *fsmtest.RecordingSink
		group *managed.Group
		w     *webserver.Webserver
	)

	deliver := func(children ...statereport.Child) {
		group.HandleReport(ctx, fsmtest.Report(children...))
	}

	BeforeEach(func() {
		ctx = context.Background()
		clock = timer.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
		sink = fsmtest.NewRecordingSink()

		logger := zaptest.NewLogger(GinkgoT()).Sugar()
		group = managed.NewGroup("lighttpd", sink, logger)
		w = webserver.NewWebserver(ctx, config.Default().Lighttpd, group, clock, logger)
	})

	It("publishes its specification on construction", func() {
		Expect(sink.Count("lighttpd")).To(Equal(1))
		Expect(w.State()).To(Equal(webserver.OperationalStateRunning))

		spec, err := sink.LastSpec("lighttpd")
		Expect(err).NotTo(HaveOccurred())
		Expect(spec.DefaultRoute).To(BeEmpty())

		start, found := spec.FindStart(webserver.ChildName)
		Expect(found).To(BeTrue())
		Expect(start.Version).To(BeZero())
		Expect(start.Heartbeat).To(BeTrue())
		Expect(start.Config).NotTo(BeNil())
		Expect(start.Config.Children[:4]).To(Equal([]managed.Node{
			managed.NewNode("arg", "value", "lighttpd"),
			managed.NewNode("arg", "value", "-f"),
			managed.NewNode("arg", "value", "/etc/lighttpd/lighttpd.conf"),
			managed.NewNode("arg", "value", "-D"),
		}))
		Expect(start.Routes).To(ContainElement(managed.ParentRoute("File_system", "cert", "cert")))
	})

	It("ignores reports of a running service", func() {
		deliver(fsmtest.Running(webserver.ChildName))
		deliver(fsmtest.Running("other"))

		Expect(sink.Count("lighttpd")).To(Equal(1))
		Expect(w.Restarts()).To(BeZero())
	})

	It("restarts exactly once when the service exited", func() {
		clock.Advance(time.Minute)
		deliver(fsmtest.Exited(webserver.ChildName, 1))

		Expect(w.Restarts()).To(Equal(uint(1)))
		Expect(w.LastRestart()).To(Equal(clock.Now()))
		Expect(w.LastReason()).To(Equal(metrics.RestartReasonExited))
		Expect(w.Version()).To(Equal(uint(1)))
		Expect(w.State()).To(Equal(webserver.OperationalStateRunning))
		Expect(sink.Count("lighttpd")).To(Equal(2))

		spec, err := sink.LastSpec("lighttpd")
		Expect(err).NotTo(HaveOccurred())
		start, _ := spec.FindStart(webserver.ChildName)
		Expect(start.Version).To(Equal(uint(1)))
	})

	It("restarts an unresponsive service", func() {
		deliver(fsmtest.Unresponsive(webserver.ChildName))

		Expect(w.Restarts()).To(Equal(uint(1)))
		Expect(w.LastReason()).To(Equal(metrics.RestartReasonUnresponsive))
	})

	It("does not restart again for a report about the previous incarnation", func() {
		deliver(fsmtest.WithVersion(fsmtest.Exited(webserver.ChildName, 1), 0))
		deliver(fsmtest.WithVersion(fsmtest.Exited(webserver.ChildName, 1), 0))

		Expect(w.Restarts()).To(Equal(uint(1)))

		deliver(fsmtest.WithVersion(fsmtest.Exited(webserver.ChildName, 1), 1))
		Expect(w.Restarts()).To(Equal(uint(2)))
	})

	It("restarts once for a redelivered crash report", func() {
		crash := fsmtest.Report(fsmtest.Exited(webserver.ChildName, 1))
		group.HandleReport(ctx, crash)
		group.HandleReport(ctx, crash)

		Expect(w.Restarts()).To(Equal(uint(1)))
		Expect(sink.Count("lighttpd")).To(Equal(2))
	})

	It("treats an unversioned crash entry as the first incarnation", func() {
		deliver(fsmtest.Exited(webserver.ChildName, 1))
		deliver(fsmtest.Running("other"))
		deliver(fsmtest.Exited(webserver.ChildName, 1))

		Expect(w.Restarts()).To(Equal(uint(1)))
		Expect(w.Version()).To(Equal(uint(1)))
	})

	It("re-emits without restarting on a quota upgrade", func() {
		deliver(fsmtest.RequestingRAM(fsmtest.Running(webserver.ChildName)))

		Expect(w.Restarts()).To(BeZero())
		Expect(sink.Count("lighttpd")).To(Equal(2))
		Expect(w.Quota().RAM).To(Equal(uint64(2 * config.Default().Lighttpd.RAM)))
	})

	It("restarts on external triggers", func() {
		w.TriggerRestart(ctx, metrics.RestartReasonCertificate)
		w.TriggerRestart(ctx, metrics.RestartReasonHealthCheck)

		Expect(w.Restarts()).To(Equal(uint(2)))
		Expect(w.Version()).To(Equal(uint(2)))
		Expect(w.Snapshot().LastReason).To(Equal(metrics.RestartReasonHealthCheck))
	})
})

var _ = Describe("HealthCheck", func() {
	report := func(finished bool, result string) statereport.HealthReport {
		return statereport.HealthReport{Fetch: &statereport.FetchResult{Finished: finished, Result: result}}
	}

	var hc *webserver.HealthCheck

	BeforeEach(func() {
		hc = webserver.NewHealthCheck(3)
	})

	It("escalates after three consecutive failures and resets", func() {
		Expect(hc.Observe(report(true, "failed"))).To(BeFalse())
		Expect(hc.Observe(report(true, "failure"))).To(BeFalse())
		Expect(hc.Failures()).To(Equal(uint(2)))

		Expect(hc.Observe(report(true, "failed"))).To(BeTrue())
		Expect(hc.Failures()).To(BeZero())
	})

	It("resets on success without escalating", func() {
		hc.Observe(report(true, "failed"))
		hc.Observe(report(true, "failed"))

		Expect(hc.Observe(report(true, "success"))).To(BeFalse())
		Expect(hc.Failures()).To(BeZero())

		Expect(hc.Observe(report(true, "failed"))).To(BeFalse())
		Expect(hc.Failures()).To(Equal(uint(1)))
	})

	It("ignores checks in progress and unknown results", func() {
		hc.Observe(report(true, "failed"))

		Expect(hc.Observe(report(false, "failed"))).To(BeFalse())
		Expect(hc.Observe(report(true, "timeout"))).To(BeFalse())
		Expect(hc.Observe(statereport.HealthReport{})).To(BeFalse())
		Expect(hc.Failures()).To(Equal(uint(1)))
	})
})
