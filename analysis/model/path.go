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
	"strings"
)

// FunctionID identifies a function of the program model
type FunctionID string

// NodeID identifies a control-flow node of the program model
type NodeID string

// EdgeKind is the kind of relation a CandidateEdge abstracts. The set of kinds is closed.
type EdgeKind int

const (
	// Call is a call edge between two functions ("call")
	Call EdgeKind = iota + 1
	// Write is a function writing to a variable ("write")
	Write
	// DataFlow is a variable flowing into another variable ("varWrite")
	DataFlow
	// Sink is a variable reaching an influence point of a function ("varInfFunc")
	Sink
)

// AllEdgeKinds lists every edge kind, in declaration order
var AllEdgeKinds = []EdgeKind{Call, Write, DataFlow, Sink}

func (k EdgeKind) String() string {
	switch k {
	case Call:
		return "call"
	case Write:
		return "write"
	case DataFlow:
		return "varWrite"
	case Sink:
		return "varInfFunc"
	default:
		return fmt.Sprintf("EdgeKind(%d)", int(k))
	}
}

// IsValid returns true if k is one of the declared edge kinds
func (k EdgeKind) IsValid() bool {
	return k >= Call && k <= Sink
}

// ParseEdgeKind returns the edge kind whose relation name is s
func ParseEdgeKind(s string) (EdgeKind, error) {
	for _, k := range AllEdgeKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown edge kind %q: %w", s, ErrInvalidArgument)
}

// A CandidateEdge is one element of a candidate path. The Witnesses are all the control-flow nodes at which the
// abstract edge may physically occur.
type CandidateEdge struct {
	Kind      EdgeKind
	Source    string
	Target    string
	Witnesses []NodeID
}

func (e CandidateEdge) String() string {
	return fmt.Sprintf("%s --%s--> %s", e.Source, e.Kind, e.Target)
}

// A CandidatePath is a sequence of edges proposed by a call-insensitive path query, in traversal order.
type CandidatePath struct {
	ID    string
	Edges []CandidateEdge
}

// Validate returns an error wrapping ErrInvalidArgument if the path is empty, has an edge with an invalid kind,
// or has an edge without witnesses.
func (p CandidatePath) Validate() error {
	if len(p.Edges) == 0 {
		return fmt.Errorf("path %q is empty: %w", p.ID, ErrInvalidArgument)
	}
	for i, e := range p.Edges {
		if !e.Kind.IsValid() {
			return fmt.Errorf("path %q, edge %d has invalid kind %s: %w", p.ID, i, e.Kind, ErrInvalidArgument)
		}
		if len(e.Witnesses) == 0 {
			return fmt.Errorf("path %q, edge %d (%s) has no location witness: %w", p.ID, i, e, ErrInvalidArgument)
		}
	}
	return nil
}

// StartsWithCall returns true if the first edge of the path is a call edge
func (p CandidatePath) StartsWithCall() bool {
	return len(p.Edges) > 0 && p.Edges[0].Kind == Call
}

// String prints the path as a chain "a --call--> b --write--> c"
func (p CandidatePath) String() string {
	if len(p.Edges) == 0 {
		return "<empty>"
	}
	var b strings.Builder
	b.WriteString(p.Edges[0].Source)
	for _, e := range p.Edges {
		fmt.Fprintf(&b, " --%s--> %s", e.Kind, e.Target)
	}
	return b.String()
}
