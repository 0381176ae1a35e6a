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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MockFileSystem is an in-memory Service. Individual operations can be
// made to fail through the *Func hooks, which run before the default
// behavior and short-circuit it when they return an error.
type MockFileSystem struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool

	WriteFileFunc func(ctx context.Context, path string, data []byte) error
	RenameFunc    func(ctx context.Context, oldPath, newPath string) error
	ReadFileFunc  func(ctx context.Context, path string) error
}

// NewMockFileSystem creates an empty in-memory filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

// WithFile seeds a file.
func (m *MockFileSystem) WithFile(path string, data []byte) *MockFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[filepath.Clean(path)] = append([]byte(nil), data...)

	return m
}

// Files lists all file paths in lexical order.
func (m *MockFileSystem) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

func (m *MockFileSystem) EnsureDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for p := filepath.Clean(path); p != "/" && p != "."; p = filepath.Dir(p) {
		m.dirs[p] = true
	}

	return nil
}

func (m *MockFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.ReadFileFunc != nil {
		if err := m.ReadFileFunc(ctx, path); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, fmt.Errorf("failed to read file %s: %w", path, os.ErrNotExist)
	}

	return append([]byte(nil), data...), nil
}

func (m *MockFileSystem) WriteFile(ctx context.Context, path string, data []byte, _ os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.WriteFileFunc != nil {
		if err := m.WriteFileFunc(ctx, path, data); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirs[filepath.Dir(filepath.Clean(path))] {
		return fmt.Errorf("failed to write file %s: %w", path, os.ErrNotExist)
	}

	m.files[filepath.Clean(path)] = append([]byte(nil), data...)

	return nil
}

func (m *MockFileSystem) PathExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clean := filepath.Clean(path)
	if _, ok := m.files[clean]; ok {
		return true, nil
	}

	return m.dirs[clean], nil
}

func (m *MockFileSystem) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clean := filepath.Clean(path)
	delete(m.files, clean)

	for p := range m.files {
		if strings.HasPrefix(p, clean+"/") {
			return fmt.Errorf("failed to remove %s: directory not empty", path)
		}
	}

	delete(m.dirs, clean)

	return nil
}

func (m *MockFileSystem) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.RenameFunc != nil {
		if err := m.RenameFunc(ctx, oldPath, newPath); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[filepath.Clean(oldPath)]
	if !ok {
		return fmt.Errorf("failed to rename file %s to %s: %w", oldPath, newPath, os.ErrNotExist)
	}

	delete(m.files, filepath.Clean(oldPath))
	m.files[filepath.Clean(newPath)] = data

	return nil
}
