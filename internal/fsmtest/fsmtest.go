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

// Package fsmtest contains helpers shared by the state machine tests.
package fsmtest

import (
	"context"
	"sync"

	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
	"github.com/united-manufacturing-hub/site-manager/pkg/statereport"
)

// RecordingSink keeps every published document in memory.
type RecordingSink struct {
	mu   sync.Mutex
	docs map[string][][]byte

	// Err, when set, is returned by Publish and nothing is recorded.
	Err error
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{docs: make(map[string][][]byte)}
}

func (s *RecordingSink) Publish(_ context.Context, group string, document []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	s.docs[group] = append(s.docs[group], append([]byte(nil), document...))

	return nil
}

// Count returns how many documents were published for group.
func (s *RecordingSink) Count(group string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.docs[group])
}

// Last returns the latest document of group, nil if none.
func (s *RecordingSink) Last(group string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.docs[group]
	if len(docs) == 0 {
		return nil
	}

	return docs[len(docs)-1]
}

// LastSpec decodes the latest document of group.
func (s *RecordingSink) LastSpec(group string) (managed.Specification, error) {
	return managed.Unmarshal(s.Last(group))
}

// Report assembles a state report from child entries.
func Report(children ...statereport.Child) statereport.Report {
	return statereport.Report{Children: children}
}

// Running is a responsive child that has not exited.
func Running(name string) statereport.Child {
	return statereport.Child{Name: name}
}

// Exited is a child that exited with code.
func Exited(name string, code int) statereport.Child {
	return statereport.Child{Name: name, Exited: &code}
}

// Unresponsive is a child that skipped too many heartbeats.
func Unresponsive(name string) statereport.Child {
	return statereport.Child{Name: name, SkippedHeartbeats: 3}
}

// WithVersion sets the reported incarnation.
func WithVersion(c statereport.Child, version uint) statereport.Child {
	c.Version = &version

	return c
}

// RequestingRAM marks the child as asking for more RAM.
func RequestingRAM(c statereport.Child) statereport.Child {
	requested := uint64(1)
	c.RAM = &statereport.Resource{Requested: &requested}

	return c
}

// RequestingCaps marks the child as asking for more capabilities.
func RequestingCaps(c statereport.Child) statereport.Child {
	requested := uint64(1)
	c.Caps = &statereport.Resource{Requested: &requested}

	return c
}

// Queue is a timer.Executor that holds posted functions until the test
// runs them, standing in for the coordinator loop.
type Queue struct {
	mu      sync.Mutex
	pending []func(ctx context.Context)
}

func (q *Queue) Post(fn func(ctx context.Context)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, fn)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// RunOne runs the oldest posted function. It returns false if none is queued.
func (q *Queue) RunOne(ctx context.Context) bool {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()

		return false
	}

	fn := q.pending[0]
	q.pending = q.pending[1:]
	q.mu.Unlock()

	fn(ctx)

	return true
}

// RunAll runs posted functions, including those posted while running,
// until the queue is empty.
func (q *Queue) RunAll(ctx context.Context) int {
	n := 0
	for q.RunOne(ctx) {
		n++
	}

	return n
}
