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

// Package backoff classifies errors into retryable and permanent ones and
// retries operations with exponential backoff.
package backoff

import (
	"errors"
)

// ErrorCategory tells callers whether retrying an operation can help.
type ErrorCategory int

const (
	// CategoryTransient errors are retried.
	CategoryTransient ErrorCategory = iota
	// CategoryPermanent errors stop retries immediately.
	CategoryPermanent
)

// CategorizedError wraps an error with its category.
type CategorizedError struct {
	Err      error
	Category ErrorCategory
}

func (ce *CategorizedError) Error() string {
	return ce.Err.Error()
}

func (ce *CategorizedError) Unwrap() error {
	return ce.Err
}

// NewTransientError wraps err as CategoryTransient.
func NewTransientError(err error) error {
	return &CategorizedError{Err: err, Category: CategoryTransient}
}

// NewPermanentError wraps err as CategoryPermanent.
func NewPermanentError(err error) error {
	return &CategorizedError{Err: err, Category: CategoryPermanent}
}

// IsPermanentError reports whether err carries CategoryPermanent.
func IsPermanentError(err error) bool {
	var ce *CategorizedError

	return errors.As(err, &ce) && ce.Category == CategoryPermanent
}

// IsTransientError reports whether err is retryable. Uncategorized errors
// are treated as transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	return !IsPermanentError(err)
}
