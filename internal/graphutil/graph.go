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

package graphutil

import (
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
)

// LabeledGraph is a directed graph over string labels (e.g. function ids of a call graph) to work with existing
// graph libraries. It implements Gonum's graph.Directed and yourbasic's graph.Iterator. Node ids are the indices of
// the labels in sorted order, which makes every traversal deterministic.
type LabeledGraph struct {
	// Labels are all the node labels, sorted. The id of Labels[i] is i.
	Labels []string

	// ids maps from labels to node ids
	ids map[string]int64

	// succs is an adjacency list: succs[x] are the successors of x, sorted by id
	succs [][]int64

	// preds is the reverse adjacency list
	preds [][]int64
}

// NewLabeledGraph returns the graph whose nodes are labels and whose edges are given by successors. Successors
// that are not in labels are ignored.
func NewLabeledGraph(labels []string, successors func(string) []string) *LabeledGraph {
	sorted := slices.Clone(labels)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	g := &LabeledGraph{
		Labels: sorted,
		ids:    make(map[string]int64, len(sorted)),
		succs:  make([][]int64, len(sorted)),
		preds:  make([][]int64, len(sorted)),
	}
	for i, l := range sorted {
		g.ids[l] = int64(i)
	}
	for i, l := range sorted {
		for _, s := range successors(l) {
			if j, ok := g.ids[s]; ok && !slices.Contains(g.succs[i], j) {
				g.succs[i] = append(g.succs[i], j)
				g.preds[j] = append(g.preds[j], int64(i))
			}
		}
		slices.Sort(g.succs[i])
	}
	for j := range g.preds {
		slices.Sort(g.preds[j])
	}
	return g
}

// ID returns the id of the node labeled l
func (g *LabeledGraph) ID(l string) (int64, bool) {
	id, ok := g.ids[l]
	return id, ok
}

// LabelNode returns the node labeled l, or nil if there is none
func (g *LabeledGraph) LabelNode(l string) graph.Node {
	if id, ok := g.ids[l]; ok {
		return LNode{id: id, Label: l}
	}
	return nil
}

// Order implements the order of the yourbasic graph.Iterator interface
func (g *LabeledGraph) Order() int {
	return len(g.Labels)
}

// Visit implements the yourbasic graph.Iterator interface
func (g *LabeledGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if v < 0 || v >= len(g.succs) {
		return false
	}
	for _, w := range g.succs[v] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (g *LabeledGraph) Node(id int64) graph.Node {
	if id < 0 || id >= int64(len(g.Labels)) {
		return nil
	}
	return LNode{id: id, Label: g.Labels[id]}
}

// Nodes returns the set of nodes in the graph
func (g *LabeledGraph) Nodes() graph.Nodes {
	ids := make([]int64, len(g.Labels))
	for i := range ids {
		ids[i] = int64(i)
	}
	return g.nodeSet(ids)
}

// From returns the set of nodes directly reachable from the id
func (g *LabeledGraph) From(id int64) graph.Nodes {
	if id < 0 || id >= int64(len(g.succs)) {
		return graph.Empty
	}
	return g.nodeSet(g.succs[id])
}

// To returns the set of nodes that directly reach the id
func (g *LabeledGraph) To(id int64) graph.Nodes {
	if id < 0 || id >= int64(len(g.preds)) {
		return graph.Empty
	}
	return g.nodeSet(g.preds[id])
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (g *LabeledGraph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo returns whether there is a directed edge from uid to vid
func (g *LabeledGraph) HasEdgeFromTo(uid, vid int64) bool {
	if uid < 0 || uid >= int64(len(g.succs)) {
		return false
	}
	_, found := slices.BinarySearch(g.succs[uid], vid)
	return found
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (g *LabeledGraph) Edge(uid, vid int64) graph.Edge {
	if !g.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return LEdge{from: g.Node(uid).(LNode), to: g.Node(vid).(LNode)}
}

func (g *LabeledGraph) nodeSet(ids []int64) graph.Nodes {
	if len(ids) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = LNode{id: id, Label: g.Labels[id]}
	}
	return iterator.NewOrderedNodes(nodes)
}

// *************** Nodes and edges **********************

// LNode is a labeled node that implements the graph.Node interface
type LNode struct {
	id    int64
	Label string
}

// ID returns the id of the node
func (n LNode) ID() int64 {
	return n.id
}

func (n LNode) String() string {
	return n.Label
}

// LEdge implements the graph.Edge interface
type LEdge struct {
	from LNode
	to   LNode
}

// From returns the origin of the edge
func (e LEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e LEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e LEdge) ReversedEdge() graph.Edge {
	return LEdge{from: e.to, to: e.from}
}
