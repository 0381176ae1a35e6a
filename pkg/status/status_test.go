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

package status_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/site-manager/pkg/backoff"
	"github.com/united-manufacturing-hub/site-manager/pkg/fsm/pipeline"
	"github.com/united-manufacturing-hub/site-manager/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
	"github.com/united-manufacturing-hub/site-manager/pkg/status"
)

func TestStatus(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Status Suite")
}

var _ = Describe("Formatting", func() {
	DescribeTable("FormatSeconds",
		func(d time.Duration, expected string) {
			Expect(status.FormatSeconds(d)).To(Equal(expected))
		},
		Entry("zero", time.Duration(0), "0 seconds"),
		Entry("sub-second", 900*time.Millisecond, "0 seconds"),
		Entry("one second", time.Second, "1 second"),
		Entry("minutes", 2*time.Minute+5*time.Second, "2 minutes 5 seconds"),
		Entry("all units", 26*time.Hour+3*time.Minute+4*time.Second, "1 day 2 hours 3 minutes 4 seconds"),
		Entry("whole hours", 3*time.Hour, "3 hours"),
		Entry("days", 49*time.Hour, "2 days 1 hour"),
	)

	It("formats dates as ISO-8601 in UTC", func() {
		t := time.Date(2025, 3, 1, 7, 4, 9, 0, time.FixedZone("CET", 3600))
		Expect(status.FormatDate(t)).To(Equal("2025-03-01T06:04:09Z"))
		Expect(status.FormatDate(time.Time{})).To(Equal("-"))
	})
})

var _ = Describe("Latency", func() {
	It("summarizes the samples of the window", func() {
		m := expiremap.NewEx[time.Time, time.Duration](time.Minute, time.Minute)
		base := time.Now()
		for i := 1; i <= 4; i++ {
			m.Set(base.Add(time.Duration(i)*time.Millisecond), time.Duration(i)*time.Millisecond)
		}

		l := status.CalculateLatency(m)
		Expect(l.Samples).To(Equal(4))
		Expect(l.Min).To(Equal(time.Millisecond))
		Expect(l.Max).To(Equal(4 * time.Millisecond))
		Expect(l.Avg).To(Equal(2500 * time.Microsecond))
		Expect(l.P95).To(Equal(4 * time.Millisecond))
	})

	It("is empty without samples", func() {
		m := expiremap.NewEx[time.Time, time.Duration](time.Minute, time.Minute)
		Expect(status.CalculateLatency(m)).To(Equal(status.Latency{}))
	})
})

func sample() status.Status {
	exitValue := 7
	report, err := statereport.Parse([]byte("children:\n  - name: fetchurl\n"))
	Expect(err).NotTo(HaveOccurred())

	imp := status.NewImportStatus(pipeline.Snapshot{
		State:          pipeline.StateInvalid,
		Imports:        2,
		ImportDuration: 90 * time.Second,
		LastUpdate:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		NextUpdate:     time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC),
		LastExitValue:  &exitValue,
		Steps: []pipeline.StepSnapshot{
			{State: pipeline.StateFetch, Child: pipeline.ChildFetch, LastDuration: 61 * time.Second},
		},
	}).WithStateReport(report, true)

	return status.Status{
		LastUpdate: status.Date(time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)),
		Uptime:     status.Duration(time.Hour),
		RunID:      "run-1",
		Version:    "1.2.3",
		Network: &statereport.NetworkState{Domains: []statereport.DomainTraffic{
			{Name: "uplink", RxBytes: 2048, TxBytes: 1024},
		}},
		Lighttpd: status.LighttpdStatus{
			State:           "running",
			HealthInhibited: true,
			Specification:   status.NewSpecificationStatus(3, 0xabc),
		},
		Import:   imp,
	}
}

var _ = Describe("Rendering", func() {
	It("renders all sections of the page", func() {
		page, err := status.RenderHTML(sample())
		Expect(err).NotTo(HaveOccurred())

		html := string(page)
		Expect(html).To(ContainSubstring(`<div id="Overview">`))
		Expect(html).To(ContainSubstring("<tr><td>Uptime</td><td>1 hour</td></tr>"))
		Expect(html).To(ContainSubstring("<td>uplink</td>"))
		Expect(html).To(ContainSubstring("<tr><td>Total restarts</td><td>0</td></tr>"))
		Expect(html).NotTo(ContainSubstring("Last restart"))
		Expect(html).To(ContainSubstring("inhibited"))
		Expect(html).To(ContainSubstring("<tr><td>Total imports</td><td>2</td></tr>"))
		Expect(html).To(ContainSubstring("<tr><td>Next import</td><td>2025-03-01T15:00:00Z</td></tr>"))
		Expect(html).To(ContainSubstring("<tr><td>fetch</td><td>1 minute 1 second</td></tr>"))
		Expect(html).To(ContainSubstring("invalid (exit value 7)"))
		Expect(html).To(ContainSubstring("<p>import under way…</p>"))
		Expect(html).To(ContainSubstring("name: fetchurl"))
		Expect(html).To(ContainSubstring("<tr><td>Specification</td><td>0000000000000abc (generation 3)</td></tr>"))
		Expect(html).To(ContainSubstring("<tr><td>Specification</td><td>none</td></tr>"))
	})

	It("marks the first import", func() {
		imp := status.ImportStatus{UnderWay: true}
		Expect(imp.Marker()).To(Equal("initial import under way…"))

		imp.Imports = 1
		Expect(imp.Marker()).To(Equal("import under way…"))

		Expect(status.ImportStatus{}.Marker()).To(BeEmpty())
	})

	It("renders seconds and dates in JSON", func() {
		data, err := status.RenderJSON(sample())
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]interface{}
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded["uptime_seconds"]).To(BeNumerically("==", 3600))

		imp := decoded["import"].(map[string]interface{})
		Expect(imp["next_import"]).To(Equal("2025-03-01T15:00:00Z"))
		Expect(imp["step_deadline"]).To(BeNil())
		Expect(imp["last_exit_value"]).To(BeNumerically("==", 7))

		spec := decoded["lighttpd"].(map[string]interface{})["specification"].(map[string]interface{})
		Expect(spec["generations"]).To(BeNumerically("==", 3))
		Expect(spec["digest"]).To(Equal("0000000000000abc"))
	})
})

var _ = Describe("Publisher", func() {
	var (
		ctx context.Context
		fs  *filesystem.MockFileSystem
		p   *status.Publisher
	)

	BeforeEach(func() {
		ctx = context.Background()
		fs = filesystem.NewMockFileSystem()
		p = status.NewPublisher("/data/status", fs, zaptest.NewLogger(GinkgoT()).Sugar()).
			WithRetryPolicy(backoff.Policy{
				InitialInterval: time.Millisecond,
				MaxInterval:     time.Millisecond,
				MaxElapsedTime:  20 * time.Millisecond,
			})
	})

	It("writes both renderings and keeps them in memory", func() {
		Expect(p.HTML()).To(BeNil())

		Expect(p.Publish(ctx, sample())).To(Succeed())

		Expect(fs.Files()).To(ConsistOf("/data/status/status.html", "/data/status/status.json"))
		Expect(string(p.HTML())).To(ContainSubstring("Site Manager Status Overview"))
		Expect(p.JSON()).NotTo(BeEmpty())
		Expect(p.Latest().RunID).To(Equal("run-1"))
	})

	It("keeps the rendering when writing fails", func() {
		fs.WriteFileFunc = func(context.Context, string, []byte) error {
			return errors.New("no space left on device")
		}

		Expect(p.Publish(ctx, sample())).NotTo(Succeed())
		Expect(p.Latest().RunID).To(Equal("run-1"))
		Expect(fs.Files()).To(BeEmpty())
	})
})
