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

	"github.com/rexflow/pathcheck/analysis/model"
	"golang.org/x/sync/errgroup"
)

// ValidateAll validates paths with at most parallelism concurrent validations. The i-th result is the result of
// the i-th path. Once ctx is done, the paths that have not started are Errored with the context's error.
func (v *Validator) ValidateAll(ctx context.Context, paths []model.CandidatePath, parallelism int) []Result {
	if parallelism <= 0 {
		parallelism = 1
	}
	results := make([]Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, path := range paths {
		i, path := i, path
		if err := gctx.Err(); err != nil {
			results[i] = errored(path.ID, err, Stats{})
			continue
		}
		g.Go(func() error {
			results[i] = v.Validate(gctx, path)
			return nil
		})
	}
	// validation failures are recorded in the results, the group never fails
	_ = g.Wait()
	return results
}
