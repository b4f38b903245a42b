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

package graphstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rexflow/pathcheck/analysis/model"
	"github.com/rexflow/pathcheck/internal/funcutil"
	"github.com/rexflow/pathcheck/internal/graphutil"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/topo"
)

// MemStore is a GraphStore over an in-memory program. Reachability queries run on a gonum view of the call graph
// and terminate on recursive call graphs. Descendant sets and shortest-path trees are memoized.
type MemStore struct {
	prog      *model.Program
	callGraph *graphutil.LabeledGraph
	recursion [][]model.FunctionID

	mu          sync.RWMutex
	descendants map[model.NodeID]map[model.NodeID]bool
	shortest    map[model.FunctionID]path.Shortest
}

// NewMemStore returns a store answering queries over prog
func NewMemStore(prog *model.Program) *MemStore {
	labels := funcutil.Map(prog.Functions(), func(f model.FunctionID) string { return string(f) })
	g := graphutil.NewLabeledGraph(labels, func(l string) []string {
		return funcutil.Map(prog.Callees(model.FunctionID(l)), func(f model.FunctionID) string { return string(f) })
	})
	var recursion [][]model.FunctionID
	if !graphutil.IsAcyclic(g) {
		for _, group := range graphutil.FindRecursion(g) {
			recursion = append(recursion, funcutil.Map(group, func(l string) model.FunctionID { return model.FunctionID(l) }))
		}
	}
	return &MemStore{
		prog:        prog,
		callGraph:   g,
		recursion:   recursion,
		descendants: map[model.NodeID]map[model.NodeID]bool{},
		shortest:    map[model.FunctionID]path.Shortest{},
	}
}

// Recursion returns the groups of mutually recursive functions of the call graph
func (s *MemStore) Recursion() [][]model.FunctionID {
	return s.recursion
}

// RequireAcyclic returns an error wrapping ErrRecursive if the call graph has recursion
func (s *MemStore) RequireAcyclic() error {
	if len(s.recursion) == 0 {
		return nil
	}
	groups := funcutil.Map(s.recursion, func(g []model.FunctionID) string {
		return "{" + strings.Join(funcutil.Map(g, func(f model.FunctionID) string { return string(f) }), ", ") + "}"
	})
	return fmt.Errorf("%w: %s", ErrRecursive, strings.Join(groups, " "))
}

// EnclosingFunction implements GraphStore
func (s *MemStore) EnclosingFunction(ctx context.Context, node model.NodeID) (model.FunctionID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !s.prog.HasNode(node) {
		return "", fmt.Errorf("control-flow node %s: %w", node, model.ErrNotFound)
	}
	f, ok := s.prog.Owner(node)
	if !ok {
		return "", fmt.Errorf("enclosing function of %s: %w", node, model.ErrNotFound)
	}
	return f, nil
}

// CallsTransitively implements GraphStore
func (s *MemStore) CallsTransitively(ctx context.Context, f1, f2 model.FunctionID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	from, to, err := s.functionNodes(f1, f2)
	if err != nil {
		return false, err
	}
	if f1 == f2 {
		return true, nil
	}
	return topo.PathExistsIn(s.callGraph, s.callGraph.Node(from), s.callGraph.Node(to)), nil
}

// TransitiveCallSites implements GraphStore. The witness path is a shortest call-graph path from src to dst. The
// choice among paths of equal length is stable for a given program but otherwise unspecified. Other paths are not
// considered, which may miss call sites that begin another path.
func (s *MemStore) TransitiveCallSites(ctx context.Context, src, dst model.FunctionID) ([]model.NodeID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, to, err := s.functionNodes(src, dst)
	if err != nil {
		return nil, err
	}
	if src == dst {
		return nil, nil
	}
	witness, _ := s.shortestFrom(src).To(to)
	if len(witness) < 2 {
		return nil, nil
	}
	hop := model.FunctionID(witness[1].(graphutil.LNode).Label)
	var sites []model.NodeID
	for _, site := range s.prog.CallSites(src, hop) {
		if owner, ok := s.prog.Owner(site); ok && owner == src {
			sites = append(sites, site)
		}
	}
	return sites, nil
}

// ContainmentChainExists implements GraphStore. The chain is checked step by step: the frontier holds the nodes of
// the current step that can be chosen consistently with all previous steps.
func (s *MemStore) ContainmentChainExists(ctx context.Context, steps [][]model.NodeID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, step := range steps {
		for _, n := range step {
			if !s.prog.HasNode(n) {
				return false, fmt.Errorf("control-flow node %s: %w", n, model.ErrNotFound)
			}
		}
	}
	if len(steps) <= 1 {
		return true, nil
	}
	frontier := funcutil.SetOf(steps[0])
	for _, step := range steps[1:] {
		next := map[model.NodeID]bool{}
		for _, b := range step {
			for a := range frontier {
				if s.reachableByContainment(a)[b] {
					next[b] = true
					break
				}
			}
		}
		if len(next) == 0 {
			return false, nil
		}
		frontier = next
	}
	return true, nil
}

func (s *MemStore) functionNodes(f1, f2 model.FunctionID) (int64, int64, error) {
	from, ok := s.callGraph.ID(string(f1))
	if !ok {
		return 0, 0, fmt.Errorf("function %s: %w", f1, model.ErrNotFound)
	}
	to, ok := s.callGraph.ID(string(f2))
	if !ok {
		return 0, 0, fmt.Errorf("function %s: %w", f2, model.ErrNotFound)
	}
	return from, to, nil
}

func (s *MemStore) shortestFrom(src model.FunctionID) path.Shortest {
	s.mu.RLock()
	sp, ok := s.shortest[src]
	s.mu.RUnlock()
	if ok {
		return sp
	}
	sp = path.DijkstraFrom(s.callGraph.LabelNode(string(src)), s.callGraph)
	s.mu.Lock()
	s.shortest[src] = sp
	s.mu.Unlock()
	return sp
}

// reachableByContainment returns the set of nodes reachable from n by zero or more containment hops
func (s *MemStore) reachableByContainment(n model.NodeID) map[model.NodeID]bool {
	s.mu.RLock()
	desc, ok := s.descendants[n]
	s.mu.RUnlock()
	if ok {
		return desc
	}
	desc = map[model.NodeID]bool{n: true}
	queue := []model.NodeID{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range s.prog.Children(cur) {
			if !desc[child] {
				desc[child] = true
				queue = append(queue, child)
			}
		}
	}
	s.mu.Lock()
	s.descendants[n] = desc
	s.mu.Unlock()
	return desc
}
