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

// Package graphstore defines the queries the path validator needs from the interprocedural model, and implements
// them over an in-memory program.
package graphstore

import (
	"context"
	"errors"

	"github.com/rexflow/pathcheck/analysis/model"
)

// ErrRecursive is returned when a store requires an acyclic call graph and the model has recursion
var ErrRecursive = errors.New("recursive call graph")

// A GraphStore answers read-only queries over the interprocedural model. Implementations must be safe for
// concurrent use; the validator never mutates the store.
type GraphStore interface {
	// EnclosingFunction returns the function whose body contains the node. The error wraps model.ErrNotFound if
	// the node does not exist or has no enclosing function.
	EnclosingFunction(ctx context.Context, node model.NodeID) (model.FunctionID, error)

	// CallsTransitively returns true iff the call graph has a path f1 -> ... -> f2 of length >= 0.
	CallsTransitively(ctx context.Context, f1, f2 model.FunctionID) (bool, error)

	// TransitiveCallSites returns the call-site nodes, inside src's own body, that begin a call-graph path from src
	// to dst. When several call-graph paths exist, only one witness path is chosen and the call sites of its first
	// hop are returned. The result is empty if dst is not reachable from src.
	TransitiveCallSites(ctx context.Context, src, dst model.FunctionID) ([]model.NodeID, error)

	// ContainmentChainExists returns true iff there is a choice of one node per step such that each chosen node is
	// the previous chosen node or one of its descendants in the containment hierarchy. Zero or one step is
	// vacuously true.
	ContainmentChainExists(ctx context.Context, steps [][]model.NodeID) (bool, error)
}
