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

	"github.com/rexflow/pathcheck/analysis/model"
)

var (
	// ErrInvalidArgument is returned for malformed candidate paths
	ErrInvalidArgument = model.ErrInvalidArgument

	// ErrNotFound is returned when a candidate path references ids that are not in the model
	ErrNotFound = model.ErrNotFound

	// ErrInternal is returned when the validator reaches a state that should be impossible, or gives up
	ErrInternal = errors.New("internal error")

	// ErrBranchLimit is returned when the search explores more branches than allowed. It wraps ErrInternal.
	ErrBranchLimit = fmt.Errorf("%w: branch limit exceeded", ErrInternal)
)

// Verdict is the outcome of the validation of one path
type Verdict int

const (
	// Accepted paths are realizable under call-stack discipline
	Accepted Verdict = iota + 1
	// Rejected paths are not realizable. This is a normal outcome, not an error.
	Rejected
	// Errored paths could not be validated; see Result.Err
	Errored
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Errored:
		return "error"
	default:
		return "unknown"
	}
}

// Stats counts the work done for one path
type Stats struct {
	// Branches is the number of witness groups tried
	Branches int
	// FramesPushed is the number of frames created
	FramesPushed int
	// FramesPopped is the number of frames closed, including the final flush
	FramesPopped int
	// ConstraintsEvaluated is the number of containment chain queries run
	ConstraintsEvaluated int
}

// Result is the result of validating a candidate path
type Result struct {
	PathID  string
	Verdict Verdict
	// Err is non-nil iff Verdict is Errored
	Err   error
	Stats Stats
}

// Kind returns the name of the kind of err: InvalidArgument, NotFound, Canceled or Internal. It returns the empty
// string for a nil error.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "InvalidArgument"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	default:
		return "Internal"
	}
}

func errored(id string, err error, stats Stats) Result {
	return Result{PathID: id, Verdict: Errored, Err: err, Stats: stats}
}
