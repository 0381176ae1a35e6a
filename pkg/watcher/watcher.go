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

// Package watcher delivers the content of files whenever they are written
// or replaced.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/site-manager/pkg/metrics"
	"github.com/united-manufacturing-hub/site-manager/pkg/service/filesystem"
)

// ErrWatcherAlreadyRunning indicates Run was called twice
var ErrWatcherAlreadyRunning = errors.New("watcher is already running")

// Handler receives the new content of a watched file. It is called from
// the watcher goroutine and must not block for long.
type Handler func(ctx context.Context, path string, data []byte)

type watchedFile struct {
	handler Handler
	initial bool
}

// FileWatcher monitors individual files. The parent directories are
// watched so that files replaced by rename are picked up.
type FileWatcher struct {
	fsService filesystem.Service

	mu      sync.Mutex
	running bool
	files   map[string]watchedFile

	logger *zap.SugaredLogger
}

// NewFileWatcher creates a watcher without any files.
func NewFileWatcher(fsService filesystem.Service, logger *zap.SugaredLogger) *FileWatcher {
	return &FileWatcher{
		fsService: fsService,
		files:     make(map[string]watchedFile),
		logger:    logger,
	}
}

// Watch registers h for path. With initial set, an existing file is
// delivered once when Run starts. Watch must be called before Run.
func (fw *FileWatcher) Watch(path string, initial bool, h Handler) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.files[filepath.Clean(path)] = watchedFile{handler: h, initial: initial}
}

// Paths lists the watched files.
func (fw *FileWatcher) Paths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	paths := make([]string, 0, len(fw.files))
	for p := range fw.files {
		paths = append(paths, p)
	}

	return paths
}

// Run watches until ctx is done.
func (fw *FileWatcher) Run(ctx context.Context) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()

		return ErrWatcherAlreadyRunning
	}

	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
	}()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	dirs := make(map[string]bool)
	for _, path := range fw.Paths() {
		dirs[filepath.Dir(path)] = true
	}

	for dir := range dirs {
		if err := fw.fsService.EnsureDirectory(ctx, dir); err != nil {
			return fmt.Errorf("failed to create watched directory %s: %w", dir, err)
		}

		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	fw.deliverInitial(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}

			fw.handleEvent(ctx, event)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			metrics.IncErrorCount(metrics.ComponentFileWatcher, "fsnotify")
			fw.logger.Warnf("Watcher error: %v", err)
		}
	}
}

func (fw *FileWatcher) deliverInitial(ctx context.Context) {
	for _, path := range fw.Paths() {
		fw.mu.Lock()
		wf := fw.files[path]
		fw.mu.Unlock()

		if !wf.initial {
			continue
		}

		exists, err := fw.fsService.PathExists(ctx, path)
		if err != nil || !exists {
			continue
		}

		fw.deliver(ctx, path, wf.handler)
	}
}

func (fw *FileWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	path := filepath.Clean(event.Name)

	fw.mu.Lock()
	wf, ok := fw.files[path]
	fw.mu.Unlock()

	if !ok {
		return
	}

	fw.deliver(ctx, path, wf.handler)
}

func (fw *FileWatcher) deliver(ctx context.Context, path string, h Handler) {
	data, err := fw.fsService.ReadFile(ctx, path)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentFileWatcher, filepath.Base(path))
		fw.logger.Warnf("Failed to read %s: %v", path, err)

		return
	}

	// Writers truncate before writing, the content follows with the next event.
	if len(data) == 0 {
		fw.logger.Debugf("Skipping empty %s", path)

		return
	}

	h(ctx, path, data)
}
