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

	"github.com/rexflow/pathcheck/internal/funcutil"
	"golang.org/x/exp/slices"
)

// Function is a function of the program model. Entry is the root of the containment hierarchy of its body; it is
// empty for functions without a body (e.g. external functions).
type Function struct {
	ID    FunctionID
	Entry NodeID
}

// CallEdge is a call-graph edge realized by one or more call-site nodes inside the caller
type CallEdge struct {
	Caller FunctionID
	Callee FunctionID
	Sites  []NodeID
}

// DataEdge is a write, varWrite or varInfFunc relation between two entities of the model, with the control-flow
// nodes where it occurs.
type DataEdge struct {
	Kind   EdgeKind
	Source string
	Target string
	Blocks []NodeID
}

type edgeKey struct {
	kind   EdgeKind
	source string
	target string
}

// Program is the interprocedural model: functions, control-flow nodes, the containment hierarchy, the call graph
// and the data edges. A Program is immutable once built by a Builder and safe for concurrent reads.
type Program struct {
	functions map[FunctionID]*Function
	funcOrder []FunctionID

	// nodes is the set of control-flow nodes, in insertion order
	nodes []NodeID

	// children maps a node to the nodes it directly contains
	children map[NodeID][]NodeID

	// owner maps a node to the function whose body contains it
	owner map[NodeID]FunctionID

	// calls maps a caller to its outgoing call edges, ordered by callee
	calls map[FunctionID][]*CallEdge

	dataEdges map[edgeKey]*DataEdge
	dataOrder []edgeKey
}

// Function returns the function with the given id
func (p *Program) Function(id FunctionID) (*Function, bool) {
	f, ok := p.functions[id]
	return f, ok
}

// Functions returns the ids of all functions, sorted
func (p *Program) Functions() []FunctionID {
	return slices.Clone(p.funcOrder)
}

// Nodes returns the ids of all control-flow nodes
func (p *Program) Nodes() []NodeID {
	return slices.Clone(p.nodes)
}

// HasNode returns true if id is a control-flow node of the program
func (p *Program) HasNode(id NodeID) bool {
	_, ok := p.children[id]
	return ok
}

// Children returns the nodes directly contained in id
func (p *Program) Children(id NodeID) []NodeID {
	return p.children[id]
}

// Owner returns the function whose body contains the node
func (p *Program) Owner(id NodeID) (FunctionID, bool) {
	f, ok := p.owner[id]
	return f, ok
}

// Callees returns the functions directly called by f, sorted
func (p *Program) Callees(f FunctionID) []FunctionID {
	return funcutil.Map(p.calls[f], func(e *CallEdge) FunctionID { return e.Callee })
}

// CallEdges returns all call edges of the program, ordered by caller then callee
func (p *Program) CallEdges() []*CallEdge {
	var res []*CallEdge
	for _, f := range p.funcOrder {
		res = append(res, p.calls[f]...)
	}
	return res
}

// CallSites returns the call sites of the direct call edge caller -> callee, or nil if there is no such edge
func (p *Program) CallSites(caller, callee FunctionID) []NodeID {
	for _, e := range p.calls[caller] {
		if e.Callee == callee {
			return e.Sites
		}
	}
	return nil
}

// DataEdges returns all the data edges of the program in insertion order
func (p *Program) DataEdges() []*DataEdge {
	return funcutil.Map(p.dataOrder, func(k edgeKey) *DataEdge { return p.dataEdges[k] })
}

// Witnesses returns the control-flow nodes at which the relation source --kind--> target occurs. For call edges,
// those are the call sites; for the other kinds, the blocks of the data edge.
func (p *Program) Witnesses(kind EdgeKind, source, target string) ([]NodeID, error) {
	if kind == Call {
		if sites := p.CallSites(FunctionID(source), FunctionID(target)); sites != nil {
			return sites, nil
		}
	} else if e, ok := p.dataEdges[edgeKey{kind, source, target}]; ok {
		return e.Blocks, nil
	}
	return nil, fmt.Errorf("relation %s --%s--> %s: %w", source, kind, target, ErrNotFound)
}

// A Builder accumulates the facts of a program. Facts can be added in any order; references are checked by Build.
type Builder struct {
	functions   map[FunctionID]*Function
	funcOrder   []FunctionID
	nodes       map[NodeID]bool
	nodeOrder   []NodeID
	containment [][2]NodeID
	calls       map[[2]FunctionID]*CallEdge
	callOrder   [][2]FunctionID
	dataEdges   map[edgeKey]*DataEdge
	dataOrder   []edgeKey
}

// NewBuilder returns an empty program builder
func NewBuilder() *Builder {
	return &Builder{
		functions: map[FunctionID]*Function{},
		nodes:     map[NodeID]bool{},
		calls:     map[[2]FunctionID]*CallEdge{},
		dataEdges: map[edgeKey]*DataEdge{},
	}
}

// AddFunction declares a function. Declaring the same function twice is a no-op.
func (b *Builder) AddFunction(id FunctionID) *Builder {
	if _, ok := b.functions[id]; !ok {
		b.functions[id] = &Function{ID: id}
		b.funcOrder = append(b.funcOrder, id)
	}
	return b
}

// AddNode declares a control-flow node. Declaring the same node twice is a no-op.
func (b *Builder) AddNode(id NodeID) *Builder {
	if !b.nodes[id] {
		b.nodes[id] = true
		b.nodeOrder = append(b.nodeOrder, id)
	}
	return b
}

// SetEntry links a function to the entry node of its body (the functionCFGLink relation)
func (b *Builder) SetEntry(f FunctionID, entry NodeID) *Builder {
	b.AddFunction(f)
	b.functions[f].Entry = entry
	return b
}

// AddContainment records that parent directly contains child
func (b *Builder) AddContainment(parent, child NodeID) *Builder {
	b.containment = append(b.containment, [2]NodeID{parent, child})
	return b
}

// AddCall records a call edge caller -> callee realized at the given sites. Sites of repeated edges are merged.
func (b *Builder) AddCall(caller, callee FunctionID, sites ...NodeID) *Builder {
	key := [2]FunctionID{caller, callee}
	e, ok := b.calls[key]
	if !ok {
		e = &CallEdge{Caller: caller, Callee: callee}
		b.calls[key] = e
		b.callOrder = append(b.callOrder, key)
	}
	e.Sites = funcutil.Dedup(append(e.Sites, sites...))
	return b
}

// AddDataEdge records a data edge source --kind--> target occurring at blocks. Blocks of repeated edges are merged.
func (b *Builder) AddDataEdge(kind EdgeKind, source, target string, blocks ...NodeID) *Builder {
	key := edgeKey{kind, source, target}
	e, ok := b.dataEdges[key]
	if !ok {
		e = &DataEdge{Kind: kind, Source: source, Target: target}
		b.dataEdges[key] = e
		b.dataOrder = append(b.dataOrder, key)
	}
	e.Blocks = funcutil.Dedup(append(e.Blocks, blocks...))
	return b
}

// Build checks every reference and returns the immutable program. Errors wrap ErrNotFound for dangling
// references and ErrInvalidModel when a node is reachable from the entries of two functions.
//
//gocyclo:ignore
func (b *Builder) Build() (*Program, error) {
	p := &Program{
		functions: make(map[FunctionID]*Function, len(b.functions)),
		funcOrder: funcutil.SetToOrderedSlice(funcutil.SetOf(b.funcOrder)),
		nodes:     slices.Clone(b.nodeOrder),
		children:  make(map[NodeID][]NodeID, len(b.nodes)),
		owner:     make(map[NodeID]FunctionID, len(b.nodes)),
		calls:     map[FunctionID][]*CallEdge{},
		dataEdges: make(map[edgeKey]*DataEdge, len(b.dataEdges)),
		dataOrder: slices.Clone(b.dataOrder),
	}
	for _, n := range b.nodeOrder {
		p.children[n] = nil
	}
	for _, c := range b.containment {
		for _, n := range c {
			if !b.nodes[n] {
				return nil, fmt.Errorf("containment %s -> %s references node %s: %w", c[0], c[1], n, ErrNotFound)
			}
		}
		if !funcutil.Contains(p.children[c[0]], c[1]) {
			p.children[c[0]] = append(p.children[c[0]], c[1])
		}
	}
	for id, f := range b.functions {
		if f.Entry != "" && !b.nodes[f.Entry] {
			return nil, fmt.Errorf("entry %s of function %s: %w", f.Entry, id, ErrNotFound)
		}
		fc := *f
		p.functions[id] = &fc
	}
	// Every node reachable from a function's entry by containment belongs to that function
	for _, id := range p.funcOrder {
		entry := p.functions[id].Entry
		if entry == "" {
			continue
		}
		queue := []NodeID{entry}
		visited := map[NodeID]bool{entry: true}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if other, ok := p.owner[cur]; ok && other != id {
				return nil, fmt.Errorf("node %s is in the bodies of %s and %s: %w", cur, other, id, ErrInvalidModel)
			}
			p.owner[cur] = id
			for _, child := range p.children[cur] {
				if !visited[child] {
					visited[child] = true
					queue = append(queue, child)
				}
			}
		}
	}
	for _, key := range b.callOrder {
		e := b.calls[key]
		for _, f := range key {
			if _, ok := p.functions[f]; !ok {
				return nil, fmt.Errorf("call %s -> %s references function %s: %w", key[0], key[1], f, ErrNotFound)
			}
		}
		for _, s := range e.Sites {
			if !b.nodes[s] {
				return nil, fmt.Errorf("call %s -> %s has call site %s: %w", key[0], key[1], s, ErrNotFound)
			}
		}
		p.calls[e.Caller] = append(p.calls[e.Caller], &CallEdge{
			Caller: e.Caller,
			Callee: e.Callee,
			Sites:  slices.Clone(e.Sites),
		})
	}
	for _, edges := range p.calls {
		slices.SortFunc(edges, func(a, b *CallEdge) bool { return a.Callee < b.Callee })
	}
	for _, key := range b.dataOrder {
		e := b.dataEdges[key]
		for _, n := range e.Blocks {
			if !b.nodes[n] {
				return nil, fmt.Errorf("%s references block %s: %w", edgeString(e), n, ErrNotFound)
			}
		}
		p.dataEdges[key] = &DataEdge{Kind: e.Kind, Source: e.Source, Target: e.Target, Blocks: slices.Clone(e.Blocks)}
	}
	return p, nil
}

func edgeString(e *DataEdge) string {
	return fmt.Sprintf("%s --%s--> %s", e.Source, e.Kind, e.Target)
}
