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

package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
)

// DefaultService implements Service on the local filesystem. Every
// operation runs in its own goroutine so a hanging mount cannot block the
// caller past its context deadline.
type DefaultService struct{}

// NewDefaultService creates a new DefaultService.
func NewDefaultService() *DefaultService {
	return &DefaultService{}
}

// run executes op unless ctx is done first and records the operation.
func run[T any](ctx context.Context, name string, op func() (T, error)) (T, error) {
	var zero T

	start := time.Now()

	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("failed to check context: %w", err)
	}

	type result struct {
		value T
		err   error
	}

	resCh := make(chan result, 1)

	go func() {
		v, err := op()
		resCh <- result{value: v, err: err}
	}()

	select {
	case res := <-resCh:
		metrics.RecordFilesystemOp(name, res.err, time.Since(start))

		return res.value, res.err
	case <-ctx.Done():
		metrics.RecordFilesystemOp(name, ctx.Err(), time.Since(start))

		return zero, ctx.Err()
	}
}

func (s *DefaultService) EnsureDirectory(ctx context.Context, path string) error {
	_, err := run(ctx, "EnsureDirectory", func() (struct{}, error) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return struct{}{}, fmt.Errorf("failed to create directory %s: %w", path, err)
		}

		return struct{}{}, nil
	})

	return err
}

func (s *DefaultService) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return run(ctx, "ReadFile", func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}

		return data, nil
	})
}

func (s *DefaultService) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	_, err := run(ctx, "WriteFile", func() (struct{}, error) {
		if err := os.WriteFile(path, data, perm); err != nil {
			return struct{}{}, fmt.Errorf("failed to write file %s: %w", path, err)
		}

		return struct{}{}, nil
	})

	return err
}

func (s *DefaultService) PathExists(ctx context.Context, path string) (bool, error) {
	return run(ctx, "PathExists", func() (bool, error) {
		_, err := os.Stat(path)
		if err == nil {
			return true, nil
		}

		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	})
}

func (s *DefaultService) Remove(ctx context.Context, path string) error {
	_, err := run(ctx, "Remove", func() (struct{}, error) {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return struct{}{}, fmt.Errorf("failed to remove %s: %w", path, err)
		}

		return struct{}{}, nil
	})

	return err
}

func (s *DefaultService) Rename(ctx context.Context, oldPath, newPath string) error {
	_, err := run(ctx, "Rename", func() (struct{}, error) {
		if err := os.Rename(oldPath, newPath); err != nil {
			return struct{}{}, fmt.Errorf("failed to rename file %s to %s: %w", oldPath, newPath, err)
		}

		return struct{}{}, nil
	})

	return err
}

// WriteFileAtomic writes data next to path and renames it into place, so
// readers never observe a partially written file.
func WriteFileAtomic(ctx context.Context, fs Service, path string, data []byte, perm os.FileMode) error {
	if err := fs.EnsureDirectory(ctx, filepath.Dir(path)); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := fs.WriteFile(ctx, tmp, data, perm); err != nil {
		return err
	}

	if err := fs.Rename(ctx, tmp, path); err != nil {
		_ = fs.Remove(ctx, tmp)

		return err
	}

	return nil
}
