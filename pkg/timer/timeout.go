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

package timer

import (
	"context"
	"time"
)

// OneShotTimeout delivers at most one expiry per Schedule call. Scheduling
// again replaces the pending deadline, and an expiry that was already in
// flight when the timeout got re-armed or discarded is dropped.
//
// Schedule, Discard and Scheduled must be called from the executor's
// goroutine. The handler runs there as well.
type OneShotTimeout struct {
	clock   Clock
	exec    Executor
	handler func(ctx context.Context)

	pending    Stopper
	generation uint64
	scheduled  bool
	deadline   time.Time
}

// NewOneShotTimeout creates an idle timeout.
func NewOneShotTimeout(clock Clock, exec Executor, handler func(ctx context.Context)) *OneShotTimeout {
	return &OneShotTimeout{clock: clock, exec: exec, handler: handler}
}

// Schedule arms the timeout to fire after d.
func (t *OneShotTimeout) Schedule(d time.Duration) {
	t.Discard()

	t.generation++
	t.scheduled = true
	t.deadline = t.clock.Now().Add(d)

	gen := t.generation
	t.pending = t.clock.AfterFunc(d, func() {
		t.exec(func(ctx context.Context) {
			if gen != t.generation || !t.scheduled {
				return
			}

			t.scheduled = false
			t.pending = nil
			t.handler(ctx)
		})
	})
}

// Discard cancels a pending expiry. It is a no-op when nothing is scheduled.
func (t *OneShotTimeout) Discard() {
	if !t.scheduled {
		return
	}

	t.scheduled = false
	t.generation++

	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// Scheduled reports whether an expiry is pending.
func (t *OneShotTimeout) Scheduled() bool {
	return t.scheduled
}

// Deadline returns the time of the pending expiry. Zero when idle.
func (t *OneShotTimeout) Deadline() time.Time {
	if !t.scheduled {
		return time.Time{}
	}

	return t.deadline
}
