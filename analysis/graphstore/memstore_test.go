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

package graphstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rexflow/pathcheck/analysis/graphstore"
	"github.com/rexflow/pathcheck/analysis/model"
	"golang.org/x/exp/slices"
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

func newStore(t *testing.T) *graphstore.MemStore {
	b := model.NewBuilder()
	body(b, "main", 4)
	body(b, "helper", 2)
	body(b, "leaf", 1)
	b.AddNode("orphan")
	b.AddCall("main", "helper", "main:1", "helper:1")
	b.AddCall("main", "leaf", "main:3")
	b.AddCall("helper", "leaf", "helper:1")
	p, err := b.Build()
	if err != nil {
		t.Fatalf("could not build program: %v", err)
	}
	return graphstore.NewMemStore(p)
}

func TestEnclosingFunction(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for n, want := range map[model.NodeID]model.FunctionID{
		"main:2":   "main",
		"helper:0": "helper",
		"leaf:0":   "leaf",
	} {
		got, err := s.EnclosingFunction(ctx, n)
		if err != nil {
			t.Errorf("enclosing function of %s: unexpected error %v", n, err)
		}
		if got != want {
			t.Errorf("enclosing function of %s should be %s, got %s", n, want, got)
		}
	}
	for _, n := range []model.NodeID{"orphan", "missing"} {
		if _, err := s.EnclosingFunction(ctx, n); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("enclosing function of %s should not be found, got %v", n, err)
		}
	}
}

func TestCallsTransitively(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tests := []struct {
		f1, f2 model.FunctionID
		want   bool
	}{
		{"main", "main", true},
		{"main", "helper", true},
		{"main", "leaf", true},
		{"helper", "leaf", true},
		{"leaf", "main", false},
		{"helper", "main", false},
	}
	for _, test := range tests {
		got, err := s.CallsTransitively(ctx, test.f1, test.f2)
		if err != nil {
			t.Errorf("%s -> %s: unexpected error %v", test.f1, test.f2, err)
		}
		if got != test.want {
			t.Errorf("%s calls %s transitively should be %t", test.f1, test.f2, test.want)
		}
	}
	if _, err := s.CallsTransitively(ctx, "main", "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown function should not be found, got %v", err)
	}
}

func TestTransitiveCallSites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tests := []struct {
		src, dst model.FunctionID
		want     []model.NodeID
	}{
		// helper:1 is listed as a site of main -> helper but is not in main's body
		{"main", "helper", []model.NodeID{"main:1"}},
		// the direct call is shorter than main -> helper -> leaf
		{"main", "leaf", []model.NodeID{"main:3"}},
		{"helper", "leaf", []model.NodeID{"helper:1"}},
		{"leaf", "main", nil},
		{"main", "main", nil},
	}
	for _, test := range tests {
		got, err := s.TransitiveCallSites(ctx, test.src, test.dst)
		if err != nil {
			t.Errorf("%s -> %s: unexpected error %v", test.src, test.dst, err)
		}
		if !slices.Equal(got, test.want) {
			t.Errorf("call sites from %s to %s should be %v, got %v", test.src, test.dst, test.want, got)
		}
	}
}

func TestTransitiveCallSitesEqualLengthPaths(t *testing.T) {
	// top reaches bottom through left (at top:1) and through right (at top:2)
	diamond := func() *graphstore.MemStore {
		b := model.NewBuilder()
		body(b, "top", 3)
		body(b, "left", 1)
		body(b, "right", 1)
		body(b, "bottom", 1)
		b.AddCall("top", "left", "top:1")
		b.AddCall("top", "right", "top:2")
		b.AddCall("left", "bottom", "left:0")
		b.AddCall("right", "bottom", "right:0")
		p, err := b.Build()
		if err != nil {
			t.Fatalf("could not build program: %v", err)
		}
		return graphstore.NewMemStore(p)
	}
	ctx := context.Background()
	first, err := diamond().TransitiveCallSites(ctx, "top", "bottom")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(first) != 1 || (first[0] != "top:1" && first[0] != "top:2") {
		t.Fatalf("expected the site of a single witness path, got %v", first)
	}
	for i := 0; i < 5; i++ {
		got, err := diamond().TransitiveCallSites(ctx, "top", "bottom")
		if err != nil || !slices.Equal(got, first) {
			t.Errorf("witness path should not change between stores: %v then %v (%v)", first, got, err)
		}
	}
}

func TestContainmentChainExists(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tests := []struct {
		name  string
		steps [][]model.NodeID
		want  bool
	}{
		{"empty", nil, true},
		{"single empty step", [][]model.NodeID{{}}, true},
		{"descending", [][]model.NodeID{{"main:1"}, {"main:1", "main:3"}, {"main:2"}}, true},
		{"same node", [][]model.NodeID{{"main:2"}, {"main:2"}}, true},
		{"leaked", [][]model.NodeID{{"main:3"}, {"main:1", "main:3"}, {"main:2"}}, false},
		{"empty step", [][]model.NodeID{{"main:0"}, {}}, false},
		{"across bodies", [][]model.NodeID{{"main:0"}, {"helper:1"}}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := s.ContainmentChainExists(ctx, test.steps)
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if got != test.want {
				t.Errorf("chain %v should exist: %t", test.steps, test.want)
			}
		})
	}
	if _, err := s.ContainmentChainExists(ctx, [][]model.NodeID{{"main:0"}, {"missing"}}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown node should not be found, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.CallsTransitively(ctx, "main", "leaf"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := s.EnclosingFunction(ctx, "main:0"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRecursiveCallGraph(t *testing.T) {
	b := model.NewBuilder()
	body(b, "f", 2)
	body(b, "g", 2)
	body(b, "h", 2)
	b.AddCall("f", "g", "f:1")
	b.AddCall("g", "f", "g:1")
	b.AddCall("h", "h", "h:1")
	p, err := b.Build()
	if err != nil {
		t.Fatalf("could not build program: %v", err)
	}
	s := graphstore.NewMemStore(p)

	rec := s.Recursion()
	if len(rec) != 2 || !slices.Equal(rec[0], []model.FunctionID{"f", "g"}) ||
		!slices.Equal(rec[1], []model.FunctionID{"h"}) {
		t.Errorf("unexpected recursion groups %v", rec)
	}
	if err := s.RequireAcyclic(); !errors.Is(err, graphstore.ErrRecursive) {
		t.Errorf("expected ErrRecursive, got %v", err)
	}

	ctx := context.Background()
	if ok, _ := s.CallsTransitively(ctx, "g", "f"); !ok {
		t.Errorf("g should call f transitively")
	}
	if ok, _ := s.CallsTransitively(ctx, "f", "h"); ok {
		t.Errorf("f should not call h")
	}
	if sites, _ := s.TransitiveCallSites(ctx, "g", "f"); !slices.Equal(sites, []model.NodeID{"g:1"}) {
		t.Errorf("unexpected call sites %v", sites)
	}
}

func TestConcurrentQueries(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sites, err := s.TransitiveCallSites(ctx, "main", "leaf"); err != nil || len(sites) != 1 {
				t.Errorf("unexpected call sites %v (%v)", sites, err)
			}
			if ok, err := s.ContainmentChainExists(ctx, [][]model.NodeID{{"main:0"}, {"main:3"}}); err != nil || !ok {
				t.Errorf("chain should exist (%v)", err)
			}
		}()
	}
	wg.Wait()
	if err := s.RequireAcyclic(); err != nil {
		t.Errorf("call graph is acyclic, got %v", err)
	}
}
