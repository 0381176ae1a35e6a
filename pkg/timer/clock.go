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

// Package timer provides the time source shared by the supervisors and the
// one-shot timeouts that re-enter the coordinator loop.
package timer

import (
	"context"
	"time"
)

// Clock abstracts wall time so that tests can drive timeouts explicitly.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// Stopper cancels a pending AfterFunc.
type Stopper interface {
	Stop() bool
}

// Executor runs fn on the goroutine that owns the supervisors.
type Executor func(fn func(ctx context.Context))

// Immediate runs fn on the calling goroutine with a background context.
// Only suitable when the caller already is the owner, as in tests.
func Immediate(fn func(ctx context.Context)) {
	fn(context.Background())
}

type realClock struct{}

// NewRealClock returns the system clock.
func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
