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

package stackcheck_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rexflow/pathcheck/analysis/config"
	"github.com/rexflow/pathcheck/analysis/graphstore"
	"github.com/rexflow/pathcheck/analysis/model"
	"github.com/rexflow/pathcheck/analysis/stackcheck"
)

// body adds the chain fn:0 > fn:1 > ... > fn:n-1 as the body of fn
func body(b *model.Builder, fn model.FunctionID, n int) {
	for i := 0; i < n; i++ {
		b.AddNode(node(fn, i))
		if i > 0 {
			b.AddContainment(node(fn, i-1), node(fn, i))
		}
	}
	b.SetEntry(fn, node(fn, 0))
}

func node(fn model.FunctionID, i int) model.NodeID {
	return model.NodeID(fmt.Sprintf("%s:%d", fn, i))
}

// newStore returns the store of the program:
//
//	main   : main:0 > main:1 > main:2 > main:3 > main:4, calls update at main:1 and main:3
//	update : update:0 > update:1, calls compute at update:1
//	compute: compute:0 > compute:1 > compute:2
//	e, f   : two unrelated functions
func newStore(t *testing.T) *graphstore.MemStore {
	b := model.NewBuilder()
	body(b, "main", 5)
	body(b, "update", 2)
	body(b, "compute", 3)
	body(b, "e", 2)
	body(b, "f", 2)
	b.AddCall("main", "update", "main:1", "main:3")
	b.AddCall("update", "compute", "update:1")
	p, err := b.Build()
	if err != nil {
		t.Fatalf("could not build program: %v", err)
	}
	return graphstore.NewMemStore(p)
}

func edge(kind model.EdgeKind, src, dst string, witnesses ...model.NodeID) model.CandidateEdge {
	return model.CandidateEdge{Kind: kind, Source: src, Target: dst, Witnesses: witnesses}
}

func path(id string, edges ...model.CandidateEdge) model.CandidatePath {
	return model.CandidatePath{ID: id, Edges: edges}
}

// leakPath writes state in compute when update is called at main:3, and reads it at sink
func leakPath(sink model.NodeID) model.CandidatePath {
	return path("leak-"+string(sink),
		edge(model.Call, "main", "update", "main:3"),
		edge(model.Call, "update", "compute", "update:1"),
		edge(model.Write, "compute", "state", "compute:1"),
		edge(model.Sink, "state", "main", sink))
}

func TestValidate(t *testing.T) {
	v := stackcheck.New(newStore(t), nil, nil)
	tests := []struct {
		name string
		path model.CandidatePath
		want stackcheck.Verdict
	}{
		// main:2 is only reachable after returning from the call at main:1
		{"return to the other call site", leakPath("main:2"), stackcheck.Rejected},
		{"return to the calling site", leakPath("main:4"), stackcheck.Accepted},
		{"return with ambiguous call site",
			path("ambiguous",
				edge(model.Call, "main", "update", "main:1", "main:3"),
				edge(model.Write, "update", "state", "update:1"),
				edge(model.Sink, "state", "main", "main:2")),
			stackcheck.Accepted},
		{"leading call never returns",
			path("prefix",
				edge(model.Call, "update", "compute", "update:1"),
				edge(model.Write, "compute", "state", "compute:1"),
				edge(model.Sink, "state", "compute", "compute:2")),
			stackcheck.Rejected},
		{"suffix of leading call",
			path("suffix",
				edge(model.Write, "compute", "state", "compute:1"),
				edge(model.Sink, "state", "compute", "compute:2")),
			stackcheck.Accepted},
		{"single function in reverse order",
			path("reverse",
				edge(model.Write, "compute", "state", "compute:2"),
				edge(model.Sink, "state", "compute", "compute:1")),
			stackcheck.Rejected},
		{"single function, single step",
			path("single", edge(model.Sink, "state", "compute", "compute:1")),
			stackcheck.Accepted},
		{"disjoint functions",
			path("disjoint",
				edge(model.Write, "e", "state", "e:1"),
				edge(model.Sink, "state", "f", "f:1")),
			stackcheck.Rejected},
		{"callee without return",
			path("descend",
				edge(model.Write, "main", "state", "main:0"),
				edge(model.DataFlow, "state", "compute", "compute:1")),
			stackcheck.Accepted},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := v.Validate(context.Background(), test.path)
			if res.Err != nil {
				t.Fatalf("unexpected error: %v", res.Err)
			}
			if res.Verdict != test.want {
				t.Errorf("path %s should be %s, got %s", test.path, test.want, res.Verdict)
			}
		})
	}
}

// siblingStore returns the store of the program:
//
//	a: a:0 > a:1 > a:2 > a:3, calls c at a:0, b at a:1 and c at a:3
//	b: b:0 > b:1, calls d at b:1
//	c, d: two leaves
func siblingStore(t *testing.T) *graphstore.MemStore {
	b := model.NewBuilder()
	body(b, "a", 4)
	body(b, "b", 2)
	body(b, "c", 2)
	body(b, "d", 2)
	b.AddCall("a", "b", "a:1")
	b.AddCall("a", "c", "a:0", "a:3")
	b.AddCall("b", "d", "b:1")
	p, err := b.Build()
	if err != nil {
		t.Fatalf("could not build program: %v", err)
	}
	return graphstore.NewMemStore(p)
}

func TestValidateSiblingCallees(t *testing.T) {
	v := stackcheck.New(siblingStore(t), nil, nil)
	tests := []struct {
		name string
		path model.CandidatePath
		want stackcheck.Verdict
	}{
		// b returns to a, which then calls c
		{"return to the root then call a sibling",
			path("sibling",
				edge(model.Call, "a", "b", "a:1"),
				edge(model.Write, "b", "x", "b:1"),
				edge(model.Sink, "x", "c", "c:1")),
			stackcheck.Accepted},
		{"sibling called before the leading call",
			path("sibling-before",
				edge(model.Call, "a", "b", "a:1"),
				edge(model.Write, "b", "x", "b:1"),
				edge(model.Sink, "x", "c", "c:1"),
				edge(model.Sink, "x", "a", "a:0")),
			stackcheck.Rejected},
		// the flow stays below b, so the call from a is not needed
		{"leading call frame never left",
			path("nested",
				edge(model.Call, "a", "b", "a:1"),
				edge(model.Write, "b", "x", "b:1"),
				edge(model.Sink, "x", "d", "d:1")),
			stackcheck.Rejected},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := v.Validate(context.Background(), test.path)
			if res.Err != nil {
				t.Fatalf("unexpected error: %v", res.Err)
			}
			if res.Verdict != test.want {
				t.Errorf("path %s should be %s, got %s", test.path, test.want, res.Verdict)
			}
		})
	}
}

func TestValidateTriesEveryGroup(t *testing.T) {
	v := stackcheck.New(newStore(t), nil, nil)
	// the witness in e is disjoint from the stack, the one in main is accepted
	p := path("or",
		edge(model.Call, "main", "update", "main:3"),
		edge(model.Write, "update", "state", "update:1"),
		edge(model.Sink, "state", "main", "e:1", "main:4"))
	res := v.Validate(context.Background(), p)
	if res.Verdict != stackcheck.Accepted {
		t.Fatalf("path should be accepted, got %s (%v)", res.Verdict, res.Err)
	}
	if res.Stats.Branches != 4 {
		t.Errorf("expected 4 branches, got %d", res.Stats.Branches)
	}

	cfg := config.NewDefault()
	cfg.MaxBranches = 3
	limited := stackcheck.New(newStore(t), cfg, nil)
	res = limited.Validate(context.Background(), p)
	if res.Verdict != stackcheck.Errored || !errors.Is(res.Err, stackcheck.ErrBranchLimit) {
		t.Fatalf("expected branch limit error, got %s (%v)", res.Verdict, res.Err)
	}
	if !errors.Is(res.Err, stackcheck.ErrInternal) || stackcheck.Kind(res.Err) != "Internal" {
		t.Errorf("branch limit should be an internal error, got %v", res.Err)
	}
}

func TestValidateErrors(t *testing.T) {
	v := stackcheck.New(newStore(t), nil, nil)
	tests := []struct {
		name string
		path model.CandidatePath
		want error
		kind string
	}{
		{"empty path", path("empty"), stackcheck.ErrInvalidArgument, "InvalidArgument"},
		{"no witness", path("nowitness", edge(model.Write, "main", "x")), stackcheck.ErrInvalidArgument,
			"InvalidArgument"},
		{"dangling witness", path("dangling", edge(model.Write, "main", "x", "main:9")), stackcheck.ErrNotFound,
			"NotFound"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := v.Validate(context.Background(), test.path)
			if res.Verdict != stackcheck.Errored {
				t.Fatalf("expected an error, got %s", res.Verdict)
			}
			if !errors.Is(res.Err, test.want) {
				t.Errorf("expected %v, got %v", test.want, res.Err)
			}
			if k := stackcheck.Kind(res.Err); k != test.kind {
				t.Errorf("expected kind %s, got %s", test.kind, k)
			}
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	v := stackcheck.New(newStore(t), nil, nil)
	for _, p := range []model.CandidatePath{leakPath("main:2"), leakPath("main:4")} {
		first := v.Validate(context.Background(), p)
		second := v.Validate(context.Background(), p)
		if first.Verdict != second.Verdict || first.Stats != second.Stats {
			t.Errorf("path %s: first run %v, second run %v", p.ID, first, second)
		}
	}
}

func TestValidateCancelled(t *testing.T) {
	v := stackcheck.New(newStore(t), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := v.Validate(ctx, leakPath("main:4"))
	if !errors.Is(res.Err, context.Canceled) || stackcheck.Kind(res.Err) != "Canceled" {
		t.Errorf("expected a cancellation, got %s (%v)", res.Verdict, res.Err)
	}
}

func TestValidateFixture(t *testing.T) {
	prog, err := model.LoadTA("../model/testdata/callsites.ta")
	if err != nil {
		t.Fatalf("could not load model: %v", err)
	}
	witnesses := func(kind model.EdgeKind, src, dst string) model.CandidateEdge {
		w, err := prog.Witnesses(kind, src, dst)
		if err != nil {
			t.Fatalf("no witnesses for %s --%s--> %s: %v", src, kind, dst, err)
		}
		return edge(kind, src, dst, w...)
	}
	p := path("fixture",
		witnesses(model.Call, "main", "update"),
		witnesses(model.Call, "update", "compute"),
		witnesses(model.Write, "compute", "state"),
		witnesses(model.Sink, "state", "main"))

	logger := config.NewLogGroupAt(config.TraceLevel, &testWriter{t: t})
	v := stackcheck.New(graphstore.NewMemStore(prog), nil, logger)
	res := v.Validate(context.Background(), p)
	if res.Verdict != stackcheck.Accepted {
		t.Errorf("path %s should be accepted, got %s (%v)", p, res.Verdict, res.Err)
	}
	if res.Stats.FramesPushed != 3 || res.Stats.FramesPopped != 3 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
