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

package pipeline_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/site-manager/internal/fsmtest"
	"github.com/united-manufacturing-hub/site-manager/pkg/config"
	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/pipeline"
	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
	"github.com/united-manufacturing-hub/site-manager/pkg/timer"
)

var _ = Describe("StepTimeout", func() {
	It("adds half of the last duration, at least the floor", func() {
		Expect(pipeline.StepTimeout(40*time.Second, constants.StepTimeoutFloor)).To(Equal(60 * time.Second))
		Expect(pipeline.StepTimeout(10*time.Second, constants.FetchTimeoutFloor)).To(Equal(70 * time.Second))
		Expect(pipeline.StepTimeout(180*time.Second, constants.StepTimeoutFloor)).To(Equal(270 * time.Second))
	})
})

var _ = Describe("Pipeline", func() {
	var (
		ctx   context.Context
		clock *timer.FakeClock
		queue *fsmtest.Queue
		sink  *fsmtest.RecordingSink
		group *managed.Group
		p     *pipeline.Pipeline
	)

	deliver := func(children ...statereport.Child) {
		group.HandleReport(ctx, fsmtest.Report(children...))
	}

	advance := func(d time.Duration) {
		clock.Advance(d)
		queue.RunAll(ctx)
	}

	published := func() managed.Specification {
		spec, err := sink.LastSpec("import")
		Expect(err).NotTo(HaveOccurred())

		return spec
	}

	// finish drives the active step to completion after d.
	finish := func(child string, d time.Duration) {
		advance(d)
		deliver(fsmtest.Exited(child, 0))
	}

	BeforeEach(func() {
		ctx = context.Background()
		clock = timer.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
		queue = &fsmtest.Queue{}
		sink = fsmtest.NewRecordingSink()

		logger := zaptest.NewLogger(GinkgoT()).Sugar()
		group = managed.NewGroup("import", sink, logger)
		p = pipeline.NewPipeline(config.Default().Import, group, clock, queue.Post, logger)
	})

	Context("when created", func() {
		It("waits in init without publishing", func() {
			Expect(p.State()).To(Equal(pipeline.StateInit))
			Expect(sink.Count("import")).To(BeZero())
			Expect(p.Imports()).To(BeZero())
		})

		It("starts fetching on the first report", func() {
			deliver()

			Expect(p.State()).To(Equal(pipeline.StateFetch))
			Expect(p.Child(pipeline.StateFetch).Constructed()).To(BeTrue())
			Expect(p.CurrentStepTimeout()).To(Equal(120 * time.Second))

			spec := published()
			Expect(spec.Heartbeat).NotTo(BeNil())
			Expect(spec.Heartbeat.RateMs).To(Equal(uint(constants.DefaultHeartbeatMs)))

			start, found := spec.FindStart(pipeline.ChildFetch)
			Expect(found).To(BeTrue())
			Expect(start.RAM).To(Equal(uint64(constants.DefaultChildRAM)))
			Expect(start.Caps).To(Equal(uint64(constants.DefaultChildCaps)))
			Expect(start.Heartbeat).To(BeTrue())
			Expect(start.Routes).To(ContainElement(managed.ParentRoute("ROM", "config", "fetchurl.config")))
			Expect(start.Routes).To(ContainElement(managed.ParentRoute("Nic", "", "")))
		})

		It("can be kicked without any report", func() {
			p.Kick(ctx)

			Expect(p.State()).To(Equal(pipeline.StateFetch))
		})
	})

	Context("while a step is running", func() {
		BeforeEach(func() {
			deliver()
		})

		It("ignores reports that change nothing", func() {
			before := sink.Count("import")
			snap := p.Snapshot()

			deliver(fsmtest.Running(pipeline.ChildFetch))
			deliver(fsmtest.Running(pipeline.ChildFetch))

			Expect(sink.Count("import")).To(Equal(before))
			Expect(p.State()).To(Equal(pipeline.StateFetch))
			Expect(p.Snapshot()).To(Equal(snap))
		})

		It("restarts the step in place when the timeout fires", func() {
			child := p.Child(pipeline.StateFetch)
			before := sink.Count("import")

			advance(120 * time.Second)

			Expect(p.State()).To(Equal(pipeline.StateFetch))
			Expect(child.Constructed()).To(BeTrue())
			Expect(child.Version()).To(Equal(uint(1)))
			Expect(sink.Count("import")).To(Equal(before + 1))

			start, found := published().FindStart(pipeline.ChildFetch)
			Expect(found).To(BeTrue())
			Expect(start.Version).To(Equal(uint(1)))

			Expect(p.CurrentStepTimeout()).To(Equal(120 * time.Second))
			Expect(p.Snapshot().StepDeadline).To(Equal(clock.Now().Add(120 * time.Second)))

			// Keeps restarting while the step hangs.
			advance(120 * time.Second)
			Expect(child.Version()).To(Equal(uint(2)))
		})

		It("treats reports of the previous incarnation as still running", func() {
			advance(120 * time.Second)
			before := sink.Count("import")

			deliver(fsmtest.WithVersion(fsmtest.Exited(pipeline.ChildFetch, 9), 0))

			Expect(p.State()).To(Equal(pipeline.StateFetch))
			Expect(sink.Count("import")).To(Equal(before))
		})

		It("regenerates the specification before taking a transition on a quota upgrade", func() {
			before := sink.Count("import")

			deliver(fsmtest.RequestingRAM(fsmtest.Exited(pipeline.ChildFetch, 0)))

			Expect(p.State()).To(Equal(pipeline.StateFetch))
			Expect(sink.Count("import")).To(Equal(before + 1))

			start, _ := published().FindStart(pipeline.ChildFetch)
			Expect(start.RAM).To(Equal(uint64(2 * constants.DefaultChildRAM)))

			deliver(fsmtest.Exited(pipeline.ChildFetch, 0))
			Expect(p.State()).To(Equal(pipeline.StateWipe))
		})

		It("restarts with the upgraded quota", func() {
			child := p.Child(pipeline.StateFetch)

			// The expiry is queued while a report with an upgrade request
			// is processed first.
			clock.Advance(120 * time.Second)
			Expect(queue.Len()).To(Equal(1))

			deliver(fsmtest.RequestingCaps(fsmtest.Running(pipeline.ChildFetch)))
			Expect(child.Version()).To(BeZero())

			queue.RunAll(ctx)

			start, _ := published().FindStart(pipeline.ChildFetch)
			Expect(start.Version).To(Equal(uint(1)))
			Expect(start.Caps).To(Equal(uint64(constants.DefaultChildCaps + managed.CapsUpgradeStep)))
		})
	})

	Context("when all steps succeed", func() {
		It("walks through every step once per cycle", func() {
			deliver()
			Expect(p.State()).To(Equal(pipeline.StateFetch))

			finish(pipeline.ChildFetch, 10*time.Second)
			Expect(p.State()).To(Equal(pipeline.StateWipe))
			Expect(p.Child(pipeline.StateFetch).Constructed()).To(BeFalse())
			Expect(p.Child(pipeline.StateWipe).Constructed()).To(BeTrue())
			Expect(p.LastDuration(pipeline.StateFetch)).To(Equal(10 * time.Second))
			Expect(p.CurrentStepTimeout()).To(Equal(30 * time.Second))

			start, found := published().FindStart(pipeline.ChildWipe)
			Expect(found).To(BeTrue())
			Expect(start.Binary).To(Equal("init"))
			_, found = published().FindStart(pipeline.ChildFetch)
			Expect(found).To(BeFalse())

			finish(pipeline.ChildWipe, 5*time.Second)
			Expect(p.State()).To(Equal(pipeline.StateExtract))

			finish(pipeline.ChildExtract, 5*time.Second)
			Expect(p.State()).To(Equal(pipeline.StateGenerate))
			Expect(p.Imports()).To(BeZero())

			finish(pipeline.ChildGenerate, 100*time.Second)
			Expect(p.State()).To(Equal(pipeline.StateSleep))
			Expect(p.Imports()).To(Equal(uint(1)))
			Expect(p.ImportDuration()).To(Equal(120 * time.Second))
			Expect(p.LastUpdate()).To(Equal(clock.Now()))
			Expect(p.CurrentStepTimeout()).To(BeZero())
			Expect(published().Start).To(BeEmpty())

			Expect(p.LastDuration(pipeline.StateWipe)).To(Equal(5 * time.Second))
			Expect(p.LastDuration(pipeline.StateExtract)).To(Equal(5 * time.Second))
			Expect(p.LastDuration(pipeline.StateGenerate)).To(Equal(100 * time.Second))
		})

		It("sleeps for the update interval and resumes", func() {
			deliver()
			finish(pipeline.ChildFetch, 10*time.Second)
			finish(pipeline.ChildWipe, time.Second)
			finish(pipeline.ChildExtract, time.Second)
			finish(pipeline.ChildGenerate, time.Second)
			Expect(p.State()).To(Equal(pipeline.StateSleep))

			entered := clock.Now()
			Expect(p.NextUpdate()).To(Equal(entered.Add(180 * time.Minute)))
			Expect(clock.Pending()).To(Equal(1))

			before := sink.Count("import")
			advance(time.Hour)
			deliver(fsmtest.Running("other"))
			Expect(p.State()).To(Equal(pipeline.StateSleep))
			Expect(sink.Count("import")).To(Equal(before))

			clock.Advance(2 * time.Hour)
			Expect(queue.RunOne(ctx)).To(BeTrue())
			Expect(p.State()).To(Equal(pipeline.StateInit))
			Expect(p.Imports()).To(Equal(uint(1)))

			// The posted re-evaluation starts the next cycle.
			Expect(queue.RunOne(ctx)).To(BeTrue())
			Expect(p.State()).To(Equal(pipeline.StateFetch))
			Expect(p.CurrentStepTimeout()).To(Equal(70 * time.Second))
		})
	})

	Context("when reports are redelivered", func() {
		It("advances only once for a repeated step completion", func() {
			deliver()

			done := fsmtest.Report(fsmtest.Exited(pipeline.ChildFetch, 0))
			group.HandleReport(ctx, done)
			group.HandleReport(ctx, done)

			Expect(p.State()).To(Equal(pipeline.StateWipe))
			Expect(p.Child(pipeline.StateWipe).Constructed()).To(BeTrue())
		})
	})

	Context("when a step fails", func() {
		BeforeEach(func() {
			deliver()
			finish(pipeline.ChildFetch, 10*time.Second)
		})

		It("becomes invalid and stays there", func() {
			deliver(fsmtest.Exited(pipeline.ChildWipe, 7))

			Expect(p.State()).To(Equal(pipeline.StateInvalid))
			Expect(p.Child(pipeline.StateWipe).Constructed()).To(BeFalse())
			Expect(published().Start).To(BeEmpty())

			code, ok := p.LastExitValue()
			Expect(ok).To(BeTrue())
			Expect(code).To(Equal(7))

			Expect(p.LastDuration(pipeline.StateWipe)).To(Equal(constants.DefaultWipeDuration))
			Expect(clock.Pending()).To(BeZero())

			before := sink.Count("import")
			deliver(fsmtest.Exited(pipeline.ChildWipe, 0))
			advance(24 * time.Hour)

			Expect(p.State()).To(Equal(pipeline.StateInvalid))
			Expect(sink.Count("import")).To(Equal(before))
		})

		It("reports a lost child with the unresponsive exit value", func() {
			deliver(fsmtest.Unresponsive(pipeline.ChildWipe))

			Expect(p.State()).To(Equal(pipeline.StateInvalid))
			code, _ := p.LastExitValue()
			Expect(code).To(Equal(constants.ExitValueUnresponsive))
		})

		It("is left only through an operator reset", func() {
			deliver(fsmtest.Exited(pipeline.ChildWipe, 7))

			Expect(p.Reset(ctx)).To(Succeed())
			Expect(p.State()).To(Equal(pipeline.StateInit))
			_, ok := p.LastExitValue()
			Expect(ok).To(BeFalse())

			queue.RunAll(ctx)
			Expect(p.State()).To(Equal(pipeline.StateFetch))
		})
	})

	It("refuses a reset of a healthy pipeline", func() {
		deliver()

		err := p.Reset(ctx)
		Expect(errors.Is(err, pipeline.ErrNotInvalid)).To(BeTrue())
		Expect(p.State()).To(Equal(pipeline.StateFetch))
	})

	It("logs publish failures and keeps its state", func() {
		sink.Err = errors.New("disk full")
		deliver()

		Expect(p.State()).To(Equal(pipeline.StateFetch))
		Expect(sink.Count("import")).To(BeZero())
	})
})
