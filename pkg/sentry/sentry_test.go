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

package sentry

import (
	"errors"
	"strings"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"
)

var _ = Describe("Issue reporting", func() {
	Describe("getMeaningfulErrorTitle", func() {
		It("cuts at the first separator", func() {
			Expect(getMeaningfulErrorTitle(errors.New("publish failed: disk full"))).To(Equal("publish failed"))
		})

		It("limits long titles", func() {
			title := getMeaningfulErrorTitle(errors.New(strings.Repeat("a", 150)))
			Expect(title).To(HaveLen(100))
			Expect(title).To(HaveSuffix("..."))
		})
	})

	Describe("createSentryEventWithContext", func() {
		It("puts scalars into tags and extends the fingerprint", func() {
			event := createSentryEventWithContext(sentrygo.LevelWarning, errors.New("step failed"), map[string]interface{}{
				"fsm_type":   "pipeline",
				"operation":  "fetch",
				"exit_value": 7,
				"report":     []string{"a"},
			})

			Expect(event.Tags).To(HaveKeyWithValue("fsm_type", "pipeline"))
			Expect(event.Tags).To(HaveKeyWithValue("exit_value", "7"))
			Expect(event.Extra).To(HaveKey("report"))
			Expect(event.Fingerprint).To(ContainElements("operation: fetch", "fsm_type: pipeline"))
			Expect(event.Threads).To(BeEmpty())
		})

		It("attaches goroutine threads for errors", func() {
			event := createSentryEvent(sentrygo.LevelError, errors.New("boom"))
			Expect(event.Threads).NotTo(BeEmpty())
			Expect(event.Attachments).To(HaveLen(1))
		})
	})

	Describe("debouncer", func() {
		It("suppresses the same key inside the window", func() {
			now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			d := newDebouncer(time.Hour)
			d.now = func() time.Time { return now }

			Expect(d.allow("error|x")).To(BeTrue())
			Expect(d.allow("error|x")).To(BeFalse())
			Expect(d.allow("error|y")).To(BeTrue())

			now = now.Add(time.Hour)
			Expect(d.allow("error|x")).To(BeTrue())
		})
	})

	It("only logs while sentry is disabled", func() {
		log := zaptest.NewLogger(GinkgoT()).Sugar()
		Expect(func() {
			ReportIssuef(IssueTypeWarning, log, "step %s failed with exit value %d", "fetch", 7)
			ReportServiceError(log, "import", "sink", "publish", errors.New("disk full"))
		}).NotTo(Panic())
	})

	It("panics on fatal issues", func() {
		log := zaptest.NewLogger(GinkgoT()).Sugar()
		Expect(func() { ReportIssue(errors.New("cannot start"), IssueTypeFatal, log) }).To(Panic())
	})
})
