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

package backoff

import (
	"context"
	"time"

	cbackoff "github.com/cenkalti/backoff"
)

// Policy configures Retry.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultPolicy suits local file writes: a handful of quick attempts.
func DefaultPolicy(maxElapsed time.Duration) Policy {
	return Policy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  maxElapsed,
	}
}

// Retry runs op until it succeeds, returns a permanent error, the policy's
// elapsed budget is used up, or ctx is done. The last error is returned.
func Retry(ctx context.Context, policy Policy, op func() error) error {
	expo := cbackoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialInterval
	expo.MaxInterval = policy.MaxInterval
	expo.MaxElapsedTime = policy.MaxElapsedTime
	expo.Reset()

	return cbackoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return cbackoff.Permanent(err)
		}

		err := op()
		if err != nil && IsPermanentError(err) {
			return cbackoff.Permanent(err)
		}

		return err
	}, cbackoff.WithContext(expo, ctx))
}
