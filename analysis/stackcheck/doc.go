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

/*
Package stackcheck checks that a candidate interprocedural path is realizable under call-stack discipline: a
return from a callee resumes at the call site that invoked it.

A candidate path is a sequence of call, write, varWrite and varInfFunc edges found by a call-insensitive query. Each
edge carries the control-flow nodes at which it may occur. The validator simulates the call stack along the path,
one frame per open activation. Entering a callee records, in the caller's frame, the call sites where the descent
starts. Leaving a function closes its frame, and every frame that saw more than one step becomes a constraint: its
steps must form a chain in the containment hierarchy of the function body. A path is accepted when some grouping of
the witnesses by function satisfies all its constraints.

When several call-graph paths lead from a caller to a callee, only the call sites of the shortest one are recorded.
This can reject realizable paths that go through another call site.

A path starting with a call edge is rejected unless control returns to the first function at some point: otherwise
the call does not contribute to the data flow, and the path without it describes the same flow.

Typical usage:

	store := graphstore.NewMemStore(program)
	v := stackcheck.New(store, cfg, logger)
	results := v.ValidateAll(ctx, paths, cfg.Parallelism)
*/
package stackcheck
