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

// Package candidates reads the candidate paths produced by a path enumeration query.
//
// A candidate path file is a yaml file of the form:
//
//	paths:
//	  - id: p1
//	    edges:
//	      - kind: call
//	        source: main
//	        target: update
//	        cfg-blocks: [ "main:CFG:3" ]
//	      - kind: varInfFunc
//	        source: state
//	        target: main
//
// Edges without cfg-blocks take the witnesses of the relation with the same kind, source and target in the
// program. Paths without an id are named after their position in the file.
package candidates

import (
	"fmt"
	"os"

	"github.com/rexflow/pathcheck/analysis/model"
	"gopkg.in/yaml.v3"
)

type fileSpec struct {
	Paths []pathSpec `yaml:"paths"`
}

type pathSpec struct {
	ID    string     `yaml:"id"`
	Edges []edgeSpec `yaml:"edges"`
}

type edgeSpec struct {
	Kind      string         `yaml:"kind"`
	Source    string         `yaml:"source"`
	Target    string         `yaml:"target"`
	CfgBlocks []model.NodeID `yaml:"cfg-blocks"`
}

// Load reads the candidate paths in filename. prog is used to resolve the witnesses of edges that do not list
// their cfg-blocks; it can be nil if every edge lists them.
func Load(filename string, prog *model.Program) ([]model.CandidatePath, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read candidate paths: %w", err)
	}
	paths, err := Parse(b, prog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return paths, nil
}

// Parse reads candidate paths from the contents of a yaml file
func Parse(b []byte, prog *model.Program) ([]model.CandidatePath, error) {
	var f fileSpec
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("could not unmarshal candidate paths: %w", err)
	}
	paths := make([]model.CandidatePath, 0, len(f.Paths))
	for i, ps := range f.Paths {
		p := model.CandidatePath{ID: ps.ID}
		if p.ID == "" {
			p.ID = fmt.Sprintf("path-%d", i)
		}
		for j, es := range ps.Edges {
			e, err := es.resolve(prog)
			if err != nil {
				return nil, fmt.Errorf("path %s, edge %d: %w", p.ID, j, err)
			}
			p.Edges = append(p.Edges, e)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (es edgeSpec) resolve(prog *model.Program) (model.CandidateEdge, error) {
	kind, err := model.ParseEdgeKind(es.Kind)
	if err != nil {
		return model.CandidateEdge{}, err
	}
	e := model.CandidateEdge{Kind: kind, Source: es.Source, Target: es.Target, Witnesses: es.CfgBlocks}
	if len(e.Witnesses) > 0 {
		return e, nil
	}
	if prog == nil {
		return e, fmt.Errorf("%s has no cfg-blocks and no model to resolve them: %w", e, model.ErrInvalidArgument)
	}
	e.Witnesses, err = prog.Witnesses(kind, es.Source, es.Target)
	return e, err
}
