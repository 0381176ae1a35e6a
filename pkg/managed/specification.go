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

package managed

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultParentProvides lists the services every group may route to its parent.
var DefaultParentProvides = []string{
	"ROM", "CPU", "PD", "RM", "LOG", "Timer", "Rtc", "Nic", "File_system",
}

// Specification is the declarative document published for one group.
// Field order is the serialization order.
type Specification struct {
	Verbose        bool           `yaml:"verbose"`
	Report         ReportSettings `yaml:"report"`
	ParentProvides []string       `yaml:"parent-provides"`
	Heartbeat      *Heartbeat     `yaml:"heartbeat,omitempty"`
	DefaultRoute   string         `yaml:"default-route,omitempty"`
	Start          []Start        `yaml:"start"`
}

// ReportSettings tell the external supervisor what to put in state reports.
type ReportSettings struct {
	InitRAM   bool   `yaml:"init_ram"`
	InitCaps  bool   `yaml:"init_caps"`
	ChildRAM  bool   `yaml:"child_ram"`
	ChildCaps bool   `yaml:"child_caps"`
	DelayMs   uint   `yaml:"delay_ms"`
	Buffer    string `yaml:"buffer"`
}

type Heartbeat struct {
	RateMs uint `yaml:"rate_ms"`
}

// Start describes one child.
type Start struct {
	Name      string   `yaml:"name"`
	Version   uint     `yaml:"version,omitempty"`
	Priority  int      `yaml:"priority"`
	Caps      uint64   `yaml:"caps"`
	RAM       uint64   `yaml:"ram"`
	Binary    string   `yaml:"binary,omitempty"`
	Heartbeat bool     `yaml:"heartbeat,omitempty"`
	Provides  []string `yaml:"provides,omitempty"`
	Config    *Node    `yaml:"config,omitempty"`
	Routes    []Route  `yaml:"route,omitempty"`
}

// Route connects a service request of a child to a provider. Target is
// "parent" or "child:<name>".
type Route struct {
	Service     string `yaml:"service"`
	Label       string `yaml:"label,omitempty"`
	Target      string `yaml:"target"`
	TargetLabel string `yaml:"target_label,omitempty"`
}

// ParentRoute routes service to the parent, optionally rewriting the label.
func ParentRoute(service, label, targetLabel string) Route {
	return Route{Service: service, Label: label, Target: "parent", TargetLabel: targetLabel}
}

// ChildRoute routes service to a sibling.
func ChildRoute(service, label, child string) Route {
	return Route{Service: service, Label: label, Target: "child:" + child}
}

// Node is a generic configuration tree. Attributes are serialized sorted by key.
type Node struct {
	Type       string            `yaml:"type"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Children   []Node            `yaml:"children,omitempty"`
}

// NewNode creates a node from alternating key/value attribute pairs.
func NewNode(typ string, kv ...string) Node {
	n := Node{Type: typ}
	for i := 0; i+1 < len(kv); i += 2 {
		if n.Attributes == nil {
			n.Attributes = make(map[string]string, len(kv)/2)
		}

		n.Attributes[kv[i]] = kv[i+1]
	}

	return n
}

// With returns n with children appended.
func (n Node) With(children ...Node) Node {
	n.Children = append(append([]Node(nil), n.Children...), children...)

	return n
}

// Builder collects one full specification. Every generation starts from a
// fresh builder.
type Builder struct {
	spec Specification
}

func newBuilder() *Builder {
	return &Builder{spec: Specification{
		Report: ReportSettings{
			InitRAM:   true,
			InitCaps:  true,
			ChildRAM:  true,
			ChildCaps: true,
			DelayMs:   5000,
			Buffer:    "64K",
		},
		ParentProvides: append([]string(nil), DefaultParentProvides...),
		DefaultRoute:   "parent",
		Start:          []Start{},
	}}
}

// SetHeartbeat enables heartbeat monitoring at the given rate.
func (b *Builder) SetHeartbeat(rateMs uint) {
	b.spec.Heartbeat = &Heartbeat{RateMs: rateMs}
}

// SetVerbose toggles verbose output of the external supervisor.
func (b *Builder) SetVerbose(verbose bool) {
	b.spec.Verbose = verbose
}

// SetDefaultRoute sets the fallback route target, "" removes it.
func (b *Builder) SetDefaultRoute(target string) {
	b.spec.DefaultRoute = target
}

// AddStart appends a child.
func (b *Builder) AddStart(s Start) {
	b.spec.Start = append(b.spec.Start, s)
}

// Specification returns the collected document.
func (b *Builder) Specification() Specification {
	return b.spec
}

// Marshal serializes spec. Equal specifications yield equal bytes.
func Marshal(spec Specification) ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(spec); err != nil {
		return nil, fmt.Errorf("failed to encode specification: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode specification: %w", err)
	}

	return buf.Bytes(), nil
}

// Unmarshal parses a published specification.
func Unmarshal(data []byte) (Specification, error) {
	var spec Specification
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Specification{}, fmt.Errorf("failed to decode specification: %w", err)
	}

	return spec, nil
}

// FindStart looks up a start entry by name.
func (s Specification) FindStart(name string) (Start, bool) {
	for _, st := range s.Start {
		if st.Name == name {
			return st, true
		}
	}

	return Start{}, false
}
