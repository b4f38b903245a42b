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
	"sort"

	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

// IsAcyclic returns true if the graph has no directed cycle (self loops included)
func IsAcyclic(g *LabeledGraph) bool {
	return graph.Acyclic(g)
}

// FindRecursion returns the groups of mutually recursive nodes of g: every strongly connected component with at
// least two nodes, and every node with a self loop. Each group is sorted, and groups are sorted by their first label.
func FindRecursion(g *LabeledGraph) [][]string {
	var groups [][]string
	for _, component := range graph.StrongComponents(g) {
		if len(component) == 1 && !g.HasEdgeFromTo(int64(component[0]), int64(component[0])) {
			continue
		}
		labels := make([]string, len(component))
		for i, v := range component {
			labels[i] = g.Labels[v]
		}
		slices.Sort(labels)
		groups = append(groups, labels)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}
