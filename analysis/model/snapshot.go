// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Snapshot is a serializable form of a Program
type Snapshot struct {
	Functions   []SnapshotFunction `yaml:"functions"`
	Nodes       []NodeID           `yaml:"nodes"`
	Containment [][2]NodeID        `yaml:"containment,flow"`
	Calls       []SnapshotEdge     `yaml:"calls"`
	DataEdges   []SnapshotEdge     `yaml:"data-edges"`
}

// SnapshotFunction is a function in a Snapshot
type SnapshotFunction struct {
	ID    FunctionID `yaml:"id"`
	Entry NodeID     `yaml:"entry,omitempty"`
}

// SnapshotEdge is a call or data edge in a Snapshot
type SnapshotEdge struct {
	Kind   string   `yaml:"kind,omitempty"`
	Source string   `yaml:"source"`
	Target string   `yaml:"target"`
	Blocks []NodeID `yaml:"blocks,flow"`
}

// Snapshot returns the serializable form of the program
func (p *Program) Snapshot() Snapshot {
	s := Snapshot{Nodes: p.Nodes()}
	for _, id := range p.funcOrder {
		s.Functions = append(s.Functions, SnapshotFunction{ID: id, Entry: p.functions[id].Entry})
	}
	for _, n := range p.nodes {
		for _, c := range p.children[n] {
			s.Containment = append(s.Containment, [2]NodeID{n, c})
		}
	}
	for _, e := range p.CallEdges() {
		s.Calls = append(s.Calls, SnapshotEdge{Source: string(e.Caller), Target: string(e.Callee), Blocks: e.Sites})
	}
	for _, e := range p.DataEdges() {
		s.DataEdges = append(s.DataEdges, SnapshotEdge{
			Kind:   e.Kind.String(),
			Source: e.Source,
			Target: e.Target,
			Blocks: e.Blocks,
		})
	}
	return s
}

// FromSnapshot rebuilds a program from its serializable form
func FromSnapshot(s Snapshot) (*Program, error) {
	b := NewBuilder()
	for _, n := range s.Nodes {
		b.AddNode(n)
	}
	for _, f := range s.Functions {
		b.AddFunction(f.ID)
		if f.Entry != "" {
			b.SetEntry(f.ID, f.Entry)
		}
	}
	for _, c := range s.Containment {
		b.AddContainment(c[0], c[1])
	}
	for _, e := range s.Calls {
		b.AddCall(FunctionID(e.Source), FunctionID(e.Target), e.Blocks...)
	}
	for _, e := range s.DataEdges {
		kind, err := ParseEdgeKind(e.Kind)
		if err != nil {
			return nil, err
		}
		if kind == Call {
			return nil, fmt.Errorf("data edge %s -> %s has kind call: %w", e.Source, e.Target, ErrInvalidModel)
		}
		b.AddDataEdge(kind, e.Source, e.Target, e.Blocks...)
	}
	return b.Build()
}

// MarshalYAML encodes the program as its snapshot
func (p *Program) MarshalYAML() (interface{}, error) {
	return p.Snapshot(), nil
}

// DecodeYAML reads a program from its YAML snapshot encoding
func DecodeYAML(b []byte) (*Program, error) {
	var s Snapshot
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("could not decode program snapshot: %w", err)
	}
	return FromSnapshot(s)
}
