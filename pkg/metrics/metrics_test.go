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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	Expect(g.Write(&m)).To(Succeed())

	return m.GetGauge().GetValue()
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	Expect(c.Write(&m)).To(Succeed())

	return m.GetCounter().GetValue()
}

var _ = Describe("Metrics", func() {
	It("maps pipeline states to gauge values", func() {
		SetPipelineState("metrics-test", "wipe")
		Expect(gaugeValue(pipelineState.WithLabelValues("metrics-test"))).To(Equal(2.0))

		SetPipelineState("metrics-test", "invalid")
		Expect(gaugeValue(pipelineState.WithLabelValues("metrics-test"))).To(Equal(-1.0))
	})

	It("counts restarts per reason", func() {
		before := counterValue(webserverRestarts.WithLabelValues("metrics-test", RestartReasonCertificate))
		IncWebserverRestarts("metrics-test", RestartReasonCertificate)
		Expect(counterValue(webserverRestarts.WithLabelValues("metrics-test", RestartReasonCertificate))).To(Equal(before + 1))
	})

	It("stores step durations in seconds", func() {
		SetStepLastDuration("metrics-test", "fetch", 90*time.Second)
		Expect(gaugeValue(stepLastDuration.WithLabelValues("metrics-test", "fetch"))).To(Equal(90.0))
	})

	It("initializes error counters at zero", func() {
		InitErrorCounter("metrics-test", "init")
		Expect(counterValue(errorCounter.WithLabelValues("metrics-test", "init"))).To(BeZero())

		IncErrorCount("metrics-test", "init")
		Expect(counterValue(errorCounter.WithLabelValues("metrics-test", "init"))).To(Equal(1.0))
	})
})
