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
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const (
	levelWarning = sentry.LevelWarning
	levelError   = sentry.LevelError
)

// debouncer suppresses repeated issues with the same level and title.
type debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	lastSent map[string]time.Time
	now      func() time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:   window,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// allow records the issue and reports whether it may be sent.
func (d *debouncer) allow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.window {
		return false
	}

	d.lastSent[key] = now

	return true
}

var issueDebouncer = newDebouncer(2 * time.Hour)

func reportFatal(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Errorf("site-manager encountered a fatal error and will terminate: %s", err)
	log.Errorf("Stack trace: %s", string(debug.Stack()))

	if enabled {
		sendSentryEvent(createSentryEventWithContext(sentry.LevelFatal, err, context))
		sentry.Flush(5 * time.Second)
	}

	log.Panic("Fatal error")
}

func report(level sentry.Level, err error, log *zap.SugaredLogger, context map[string]interface{}) {
	if level == sentry.LevelWarning {
		log.Warnw(err.Error(), contextFields(context)...)
	} else {
		log.Errorw(err.Error(), contextFields(context)...)
	}

	if !enabled {
		return
	}

	if shouldDebounceErrors && !issueDebouncer.allow(string(level)+"|"+getMeaningfulErrorTitle(err)) {
		return
	}

	sendSentryEvent(createSentryEventWithContext(level, err, context))
}

func contextFields(context map[string]interface{}) []interface{} {
	fields := make([]interface{}, 0, 2*len(context))
	for k, v := range context {
		fields = append(fields, k, v)
	}

	return fields
}
