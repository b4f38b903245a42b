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
	"errors"
	"fmt"

	"github.com/rexflow/pathcheck/analysis/config"
	"github.com/rexflow/pathcheck/analysis/graphstore"
	"github.com/rexflow/pathcheck/analysis/model"
	"github.com/rexflow/pathcheck/internal/funcutil"
	"golang.org/x/exp/slices"
)

// A Validator decides whether candidate paths are realizable under call-stack discipline. A Validator only reads
// its store and can validate several paths concurrently.
type Validator struct {
	store  graphstore.GraphStore
	oracle *Oracle
	config *config.Config
	logger *config.LogGroup
}

// New returns a validator querying store. A nil cfg means the default config, and a nil logger discards all
// messages.
func New(store graphstore.GraphStore, cfg *config.Config, logger *config.LogGroup) *Validator {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = config.Discard()
	}
	return &Validator{
		store:  store,
		oracle: NewOracle(store, !cfg.NoMemoize),
		config: cfg,
		logger: logger,
	}
}

// Validate returns Accepted if some choice of witnesses for the edges of path is consistent with a single call
// stack, Rejected if there is none, and Errored if the path is malformed, references unknown ids, or the search
// failed.
func (v *Validator) Validate(ctx context.Context, path model.CandidatePath) Result {
	r := &run{ctx: ctx, v: v, path: path}
	if err := path.Validate(); err != nil {
		return errored(path.ID, err, r.stats)
	}
	if err := r.resolveGroups(); err != nil {
		return errored(path.ID, err, r.stats)
	}
	ok, err := r.search(0, &state{})
	if err != nil {
		if errors.Is(err, ErrInternal) {
			v.logger.Errorf("path %s: %v", path.ID, err)
		}
		return errored(path.ID, err, r.stats)
	}
	if !ok {
		v.logger.Debugf("path %s rejected after %d branches: %s", path.ID, r.stats.Branches, path)
		return Result{PathID: path.ID, Verdict: Rejected, Stats: r.stats}
	}
	v.logger.Debugf("path %s accepted: %s", path.ID, path)
	return Result{PathID: path.ID, Verdict: Accepted, Stats: r.stats}
}

// state is the state of one branch of the search. Each branch owns its state.
type state struct {
	stack       []*frame
	constraints [][][]model.NodeID
	// returnedToRoot is set once a pop leaves only the bottom frame
	returnedToRoot bool
	visited        []model.FunctionID
}

func (s *state) clone() *state {
	stack := make([]*frame, len(s.stack))
	for i, f := range s.stack {
		stack[i] = f.clone()
	}
	return &state{
		stack:          stack,
		constraints:    slices.Clone(s.constraints),
		returnedToRoot: s.returnedToRoot,
		visited:        slices.Clone(s.visited),
	}
}

func (s *state) top() *frame {
	return s.stack[len(s.stack)-1]
}

func (s *state) visit(f model.FunctionID) {
	if !slices.Contains(s.visited, f) {
		s.visited = append(s.visited, f)
	}
}

// run holds the data of a single call to Validate
type run struct {
	ctx  context.Context
	v    *Validator
	path model.CandidatePath
	// groups[i] are the witnesses of the i-th edge grouped by enclosing function
	groups [][]funcutil.Group[model.FunctionID, model.NodeID]
	stats  Stats
}

func (r *run) resolveGroups() error {
	r.groups = make([][]funcutil.Group[model.FunctionID, model.NodeID], len(r.path.Edges))
	for i, edge := range r.path.Edges {
		groups, err := funcutil.GroupBy(funcutil.Dedup(edge.Witnesses),
			func(n model.NodeID) (model.FunctionID, error) { return r.v.store.EnclosingFunction(r.ctx, n) })
		if err != nil {
			return fmt.Errorf("edge %d (%s): %w", i, edge, err)
		}
		r.groups[i] = groups
	}
	return nil
}

// search tries every witness group of edge i on a copy of st, and returns true as soon as one of them leads to an
// accepted end state
func (r *run) search(i int, st *state) (bool, error) {
	if err := r.ctx.Err(); err != nil {
		return false, err
	}
	if i == len(r.groups) {
		return r.finish(st)
	}
	for _, group := range r.groups[i] {
		r.stats.Branches++
		if r.v.config.ExceedsMaxBranches(r.stats.Branches) {
			return false, fmt.Errorf("%w (%d)", ErrBranchLimit, r.v.config.MaxBranches)
		}
		next := st.clone()
		ok, err := r.step(next, group.Key, group.Elems)
		if err != nil {
			return false, err
		}
		if !ok {
			r.v.logger.Tracef("path %s: edge %d in %s is disjoint from the stack", r.path.ID, i, group.Key)
			continue
		}
		ok, err = r.search(i+1, next)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// step moves the stack of st to function fn, where the path is at one of locations. It returns false if no frame
// of the stack can lead to fn.
func (r *run) step(st *state, fn model.FunctionID, locations []model.NodeID) (bool, error) {
	st.visit(fn)
	if len(st.stack) == 0 {
		r.push(st, newFrame(fn, locations))
		return true, nil
	}
	popped := false
	for len(st.stack) > 0 {
		top := st.top()
		rel, err := r.v.oracle.Relation(r.ctx, top.function, fn)
		if err != nil {
			return false, err
		}
		r.v.logger.Tracef("path %s: %s is %s of %s (depth %d)", r.path.ID, fn, rel, top.function, len(st.stack))
		if popped && len(st.stack) == 1 {
			st.returnedToRoot = true
		}
		switch rel {
		case Same:
			top.addStep(locations)
			return true, nil
		case Callee:
			sites, err := r.v.oracle.CallSites(r.ctx, top.function, fn)
			if err != nil {
				return false, err
			}
			top.addStep(sites)
			r.push(st, newFrame(fn, locations))
			return true, nil
		}
		r.pop(st)
		popped = true
	}
	return false, nil
}

func (r *run) push(st *state, f *frame) {
	st.stack = append(st.stack, f)
	r.stats.FramesPushed++
}

func (r *run) pop(st *state) {
	f := st.top()
	st.stack = st.stack[:len(st.stack)-1]
	r.stats.FramesPopped++
	if !f.isTrivial() {
		st.constraints = append(st.constraints, f.buildConstraint())
	}
}

// finish closes every frame still open in st and checks the constraints of the branch
func (r *run) finish(st *state) (bool, error) {
	if r.path.StartsWithCall() && !st.returnedToRoot {
		r.v.logger.Tracef("path %s: never returns to %s, the leading call is not needed",
			r.path.ID, st.stack[0].function)
		return false, nil
	}
	for len(st.stack) > 0 {
		r.pop(st)
	}
	if len(st.constraints) == 0 && len(st.visited) > 1 {
		return false, fmt.Errorf("%w: path %s visits %d functions but closes no frame",
			ErrInternal, r.path.ID, len(st.visited))
	}
	for _, c := range st.constraints {
		if len(c) <= 1 {
			continue
		}
		r.stats.ConstraintsEvaluated++
		ok, err := r.v.store.ContainmentChainExists(r.ctx, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
