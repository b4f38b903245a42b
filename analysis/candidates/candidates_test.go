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

package candidates_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rexflow/pathcheck/analysis/candidates"
	"github.com/rexflow/pathcheck/analysis/graphstore"
	"github.com/rexflow/pathcheck/analysis/model"
	"github.com/rexflow/pathcheck/analysis/stackcheck"
	"golang.org/x/exp/slices"
)

func loadProgram(t *testing.T) *model.Program {
	prog, err := model.LoadTA("../model/testdata/callsites.ta")
	if err != nil {
		t.Fatalf("could not load model: %v", err)
	}
	return prog
}

func TestLoad(t *testing.T) {
	prog := loadProgram(t)
	paths, err := candidates.Load("testdata/paths.yaml", prog)
	if err != nil {
		t.Fatalf("could not load paths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0].ID != "explicit" || paths[1].ID != "path-1" {
		t.Errorf("unexpected path ids %s, %s", paths[0].ID, paths[1].ID)
	}
	if s := paths[0].String(); s != "main --call--> update --call--> compute --write--> state --varInfFunc--> main" {
		t.Errorf("unexpected path %s", s)
	}
	resolved := paths[1].Edges[0].Witnesses
	if !slices.Equal(resolved, []model.NodeID{"main:CFG:1", "main:CFG:3"}) {
		t.Errorf("call witnesses should be the call sites, got %v", resolved)
	}

	// the explicit path returns to main:CFG:2 from the call at main:CFG:3
	v := stackcheck.New(graphstore.NewMemStore(prog), nil, nil)
	want := []stackcheck.Verdict{stackcheck.Rejected, stackcheck.Accepted}
	for i, res := range v.ValidateAll(context.Background(), paths, 2) {
		if res.Verdict != want[i] {
			t.Errorf("path %s should be %s, got %s (%v)", paths[i].ID, want[i], res.Verdict, res.Err)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := candidates.Load("testdata/unknown-relation.yaml", loadProgram(t)); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected a missing relation, got %v", err)
	}
	if _, err := candidates.Load("testdata/paths.yaml", nil); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected an unresolvable edge, got %v", err)
	}
	if _, err := candidates.Parse([]byte("paths:\n  - edges:\n      - kind: return\n"), nil); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected an invalid kind, got %v", err)
	}
	if _, err := candidates.Load("testdata/missing.yaml", nil); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}
