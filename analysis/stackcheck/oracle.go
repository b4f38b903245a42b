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

package stackcheck

import (
	"context"
	"sync"

	"github.com/rexflow/pathcheck/analysis/graphstore"
	"github.com/rexflow/pathcheck/analysis/model"
)

// Relation classifies a function against the function of the frame on top of the stack
type Relation int

const (
	// Unrelated means the top function does not call the candidate, even transitively
	Unrelated Relation = iota
	// Same means the candidate is the top function
	Same
	// Callee means the top function calls the candidate transitively
	Callee
)

func (r Relation) String() string {
	switch r {
	case Same:
		return "same"
	case Callee:
		return "callee"
	default:
		return "unrelated"
	}
}

type funcPair struct {
	from model.FunctionID
	to   model.FunctionID
}

// Oracle answers call-graph questions for the validator by delegating to a GraphStore. When memoization is on,
// classifications and call sites are cached for the lifetime of the oracle, which can be shared by concurrent
// validations.
type Oracle struct {
	store   graphstore.GraphStore
	memoize bool

	mu        sync.RWMutex
	relations map[funcPair]Relation
	callSites map[funcPair][]model.NodeID
}

// NewOracle returns an oracle querying store
func NewOracle(store graphstore.GraphStore, memoize bool) *Oracle {
	return &Oracle{
		store:     store,
		memoize:   memoize,
		relations: map[funcPair]Relation{},
		callSites: map[funcPair][]model.NodeID{},
	}
}

// Relation classifies candidate against top
func (o *Oracle) Relation(ctx context.Context, top, candidate model.FunctionID) (Relation, error) {
	if top == candidate {
		return Same, nil
	}
	key := funcPair{top, candidate}
	if o.memoize {
		o.mu.RLock()
		r, ok := o.relations[key]
		o.mu.RUnlock()
		if ok {
			return r, nil
		}
	}
	calls, err := o.store.CallsTransitively(ctx, top, candidate)
	if err != nil {
		return Unrelated, err
	}
	r := Unrelated
	if calls {
		r = Callee
	}
	if o.memoize {
		o.mu.Lock()
		o.relations[key] = r
		o.mu.Unlock()
	}
	return r, nil
}

// CallSites returns the call sites in caller's body where the descent into callee starts. The returned slice must
// not be modified.
func (o *Oracle) CallSites(ctx context.Context, caller, callee model.FunctionID) ([]model.NodeID, error) {
	key := funcPair{caller, callee}
	if o.memoize {
		o.mu.RLock()
		sites, ok := o.callSites[key]
		o.mu.RUnlock()
		if ok {
			return sites, nil
		}
	}
	sites, err := o.store.TransitiveCallSites(ctx, caller, callee)
	if err != nil {
		return nil, err
	}
	if o.memoize {
		o.mu.Lock()
		o.callSites[key] = sites
		o.mu.Unlock()
	}
	return sites, nil
}
