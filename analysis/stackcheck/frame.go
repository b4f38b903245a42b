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
	"fmt"

	"github.com/rexflow/pathcheck/analysis/model"
	"golang.org/x/exp/slices"
)

// A frame is a simulated activation of function. Each step is the set of nodes where the path may be inside that
// activation; steps are in path order.
type frame struct {
	function model.FunctionID
	steps    [][]model.NodeID
}

func newFrame(function model.FunctionID, locations []model.NodeID) *frame {
	return &frame{function: function, steps: [][]model.NodeID{locations}}
}

func (f *frame) addStep(locations []model.NodeID) {
	f.steps = append(f.steps, locations)
}

// isTrivial returns true when the frame has a single step, i.e. there is no order to check
func (f *frame) isTrivial() bool {
	return len(f.steps) <= 1
}

// buildConstraint returns the steps of the frame, to be checked for a containment chain
func (f *frame) buildConstraint() [][]model.NodeID {
	return slices.Clone(f.steps)
}

// clone returns a copy of the frame that can be extended without affecting f. Step sets are never mutated and are
// shared.
func (f *frame) clone() *frame {
	return &frame{function: f.function, steps: slices.Clone(f.steps)}
}

func (f *frame) String() string {
	return fmt.Sprintf("%s%v", f.function, f.steps)
}
