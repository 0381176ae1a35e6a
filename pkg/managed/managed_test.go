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

package managed_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/site-manager/internal/fsmtest"
	"github.com/united-manufacturing-hub/site-manager/pkg/constants"
	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

type recordingPolicy struct {
	calls       int
	reconfigure []bool
}

func (p *recordingPolicy) StateUpdate(_ context.Context, _ statereport.Report, reconfigure bool) {
	p.calls++
	p.reconfigure = append(p.reconfigure, reconfigure)
}

var _ = Describe("Child", func() {
	var (
		group *managed.Group
		child *managed.Child
	)

	BeforeEach(func() {
		group = managed.NewGroup("import", fsmtest.NewRecordingSink(), zaptest.NewLogger(GinkgoT()).Sugar())
		child = group.NewChild("fetch", managed.PriorityBackground, nil)
		child.Construct(managed.Quota{RAM: 1 << 20, Caps: 100})
	})

	DescribeTable("Check",
		func(report statereport.Report, expected managed.Result) {
			Expect(child.Check(report)).To(Equal(expected))
		},
		Entry("absent child", fsmtest.Report(fsmtest.Running("other")),
			managed.Error{ExitValue: constants.ExitValueUnresponsive}),
		Entry("unresponsive child", fsmtest.Report(fsmtest.Unresponsive("fetch")),
			managed.Error{ExitValue: constants.ExitValueUnresponsive}),
		Entry("unresponsive child that exited", fsmtest.Report(func() statereport.Child {
			c := fsmtest.Exited("fetch", 0)
			c.SkippedHeartbeats = 5

			return c
		}()), managed.Error{ExitValue: constants.ExitValueUnresponsive}),
		Entry("running child", fsmtest.Report(fsmtest.Running("fetch")),
			managed.Ok{Finished: false}),
		Entry("child exited with failure", fsmtest.Report(fsmtest.Exited("fetch", 7)),
			managed.Error{ExitValue: 7}),
		Entry("child exited successfully", fsmtest.Report(fsmtest.Exited("fetch", 0)),
			managed.Ok{Finished: true}),
	)

	It("treats an exit of an older incarnation as still running", func() {
		child.TriggerRestart()
		Expect(child.Version()).To(Equal(uint(1)))

		stale := fsmtest.Report(fsmtest.WithVersion(fsmtest.Exited("fetch", 9), 0))
		Expect(child.Check(stale)).To(Equal(managed.Ok{Finished: false}))

		current := fsmtest.Report(fsmtest.WithVersion(fsmtest.Exited("fetch", 9), 1))
		Expect(child.Check(current)).To(Equal(managed.Error{ExitValue: 9}))
	})

	It("appears in the specification only while constructed", func() {
		var spec managed.Specification
		Expect(group.GenerateConfig(context.Background(), func(b *managed.Builder) {
			child.Generate(b)
			spec = b.Specification()
		})).To(Succeed())
		_, found := spec.FindStart("fetch")
		Expect(found).To(BeTrue())

		child.Destruct()
		Expect(child.Constructed()).To(BeFalse())

		Expect(group.GenerateConfig(context.Background(), func(b *managed.Builder) {
			child.Generate(b)
			spec = b.Specification()
		})).To(Succeed())
		_, found = spec.FindStart("fetch")
		Expect(found).To(BeFalse())
	})

	It("keeps the incarnation when constructed twice", func() {
		child.TriggerRestart()
		child.Construct(managed.Quota{RAM: 1, Caps: 1})

		Expect(child.Version()).To(Equal(uint(1)))
		Expect(child.Quota()).To(Equal(managed.Quota{RAM: 1 << 20, Caps: 100}))
	})
})

var _ = Describe("Group", func() {
	var (
		sink   *fsmtest.RecordingSink
		group  *managed.Group
		policy *recordingPolicy
		ctx    context.Context
	)

	BeforeEach(func() {
		sink = fsmtest.NewRecordingSink()
		group = managed.NewGroup("import", sink, zaptest.NewLogger(GinkgoT()).Sugar())
		policy = &recordingPolicy{}
		group.SetPolicy(policy)
		ctx = context.Background()
	})

	Describe("HandleReport", func() {
		It("upgrades quotas and requests reconfiguration", func() {
			child := group.NewChild("extract", managed.PriorityBackground, nil)
			child.Construct(managed.Quota{RAM: 1000, Caps: 300})

			group.HandleReport(ctx, fsmtest.Report(fsmtest.RequestingCaps(fsmtest.RequestingRAM(fsmtest.Running("extract")))))

			Expect(child.Quota()).To(Equal(managed.Quota{RAM: 2000, Caps: 400}))
			Expect(policy.reconfigure).To(Equal([]bool{true}))
		})

		It("does not reconfigure for reports without requests", func() {
			child := group.NewChild("extract", managed.PriorityBackground, nil)
			child.Construct(managed.Quota{RAM: 1000, Caps: 300})

			group.HandleReport(ctx, fsmtest.Report(fsmtest.Running("extract")))

			Expect(child.Quota()).To(Equal(managed.Quota{RAM: 1000, Caps: 300}))
			Expect(policy.reconfigure).To(Equal([]bool{false}))
		})

		It("ignores requests of children that are not registered", func() {
			group.HandleReport(ctx, fsmtest.Report(fsmtest.RequestingRAM(fsmtest.Running("ghost"))))
			Expect(policy.reconfigure).To(Equal([]bool{false}))
		})

		It("replaces the cache and notifies before the policy runs", func() {
			var notified []string
			group.SetNotifier(func(name string, _ statereport.Report) {
				notified = append(notified, name)
				Expect(policy.calls).To(Equal(len(notified) - 1))
			})

			missing := false
			group.WithCachedStateReport(func(statereport.Report) {}, func() { missing = true })
			Expect(missing).To(BeTrue())

			group.HandleReport(ctx, fsmtest.Report(fsmtest.Running("a")))
			group.HandleReport(ctx, fsmtest.Report(fsmtest.Running("b")))

			var cached statereport.Report
			group.WithCachedStateReport(func(r statereport.Report) { cached = r }, nil)
			Expect(cached.Children).To(ConsistOf(fsmtest.Running("b")))
			Expect(notified).To(Equal([]string{"import", "import"}))
			Expect(policy.calls).To(Equal(2))
		})

		It("drops a redelivered report", func() {
			child := group.NewChild("extract", managed.PriorityBackground, nil)
			child.Construct(managed.Quota{RAM: 1000, Caps: 300})

			var notified int
			group.SetNotifier(func(string, statereport.Report) { notified++ })

			report := fsmtest.Report(fsmtest.RequestingRAM(fsmtest.Running("extract")))
			group.HandleReport(ctx, report)
			group.HandleReport(ctx, report)

			Expect(child.Quota().RAM).To(Equal(uint64(2000)))
			Expect(policy.calls).To(Equal(1))
			Expect(notified).To(Equal(1))
		})

		It("handles a report again once another one arrived in between", func() {
			group.HandleReport(ctx, fsmtest.Report(fsmtest.Running("a")))
			group.HandleReport(ctx, fsmtest.Report(fsmtest.Running("b")))
			group.HandleReport(ctx, fsmtest.Report(fsmtest.Running("a")))

			Expect(policy.calls).To(Equal(3))
		})

		It("treats reformatted documents with equal content as redelivered", func() {
			first, err := statereport.Parse([]byte("children:\n  - name: a\n    exited: 0\n"))
			Expect(err).NotTo(HaveOccurred())
			second, err := statereport.Parse([]byte(`{"children": [{"name": "a", "exited": 0}]}`))
			Expect(err).NotTo(HaveOccurred())

			group.HandleReport(ctx, first)
			group.HandleReport(ctx, second)

			Expect(policy.calls).To(Equal(1))
		})

		It("accepts a custom upgrade policy", func() {
			group.SetUpgradePolicy(func(q managed.Quota, reported statereport.Child) (managed.Quota, bool) {
				if reported.RAM.UpgradeRequested() {
					q.RAM += 10

					return q, true
				}

				return q, false
			})

			child := group.NewChild("generate", managed.PriorityBackground, nil)
			child.Construct(managed.Quota{RAM: 10, Caps: 1})
			group.HandleReport(ctx, fsmtest.Report(fsmtest.RequestingRAM(fsmtest.Running("generate"))))

			Expect(child.Quota().RAM).To(Equal(uint64(20)))
		})
	})

	Describe("GenerateConfig", func() {
		build := func(b *managed.Builder) {
			b.SetHeartbeat(3000)
			b.AddStart(managed.Start{
				Name:   "lighttpd",
				RAM:    1 << 20,
				Caps:   300,
				Config: &managed.Node{Type: "config", Attributes: map[string]string{"z": "1", "a": "2"}},
				Routes: []managed.Route{managed.ParentRoute("ROM", "config", "lighttpd.config")},
			})
		}

		It("produces identical bytes for identical state", func() {
			Expect(group.GenerateConfig(ctx, build)).To(Succeed())
			first := sink.Last("import")
			digest := group.LastDigest()

			Expect(group.GenerateConfig(ctx, build)).To(Succeed())
			Expect(sink.Last("import")).To(Equal(first))
			Expect(group.LastDigest()).To(Equal(digest))
			Expect(group.Generations()).To(Equal(uint64(2)))
		})

		It("emits the header settings", func() {
			Expect(group.GenerateConfig(ctx, build)).To(Succeed())

			spec, err := sink.LastSpec("import")
			Expect(err).NotTo(HaveOccurred())
			Expect(spec.Verbose).To(BeFalse())
			Expect(spec.Report.DelayMs).To(Equal(uint(5000)))
			Expect(spec.Report.Buffer).To(Equal("64K"))
			Expect(spec.Heartbeat.RateMs).To(Equal(uint(3000)))
			Expect(spec.DefaultRoute).To(Equal("parent"))
			Expect(spec.ParentProvides).To(ContainElements("ROM", "Timer", "Nic"))
			Expect(spec.Start).To(HaveLen(1))
		})

		It("returns publish errors", func() {
			sink.Err = errors.New("disk full")
			Expect(group.GenerateConfig(ctx, build)).To(MatchError(ContainSubstring("disk full")))
			Expect(group.Generations()).To(BeZero())
		})
	})
})
