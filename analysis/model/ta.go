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

package model

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entity and relation names of the TA fact files
const (
	TAFunction        = "cFunction"
	TACFGBlock        = "cCFGBlock"
	TAInstance        = "$INSTANCE"
	TAFunctionCFGLink = "functionCFGLink"
	TAContain         = "contain"
	TACFGBlocksAttr   = "cfgBlocks"
)

type taSection int

const (
	taOther taSection = iota
	taFactTuple
	taFactAttribute
)

type taRelation struct {
	rel    string
	source string
	target string
}

// taFacts holds the raw facts of a TA file before they are interpreted as a program
type taFacts struct {
	instances  map[string]string
	instOrder  []string
	relations  []taRelation
	relAttrs   map[taRelation]map[string][]string
	entityAttr map[string]map[string][]string
}

// LoadTA reads a program from a TA fact file
func LoadTA(filename string) (*Program, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open model file: %w", err)
	}
	defer f.Close()
	p, err := ReadTA(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

// ReadTA reads a program from the TA fact format: the FACT TUPLE section declares instances
// ($INSTANCE "id" type) and relations (rel "src" "dst"), the FACT ATTRIBUTE section attaches attributes to
// instances ("id" { k = "v" }) and relations ((rel "src" "dst") { cfgBlocks = ( "n1" "n2" ) }).
// Scheme sections and comments are skipped.
func ReadTA(r io.Reader) (*Program, error) {
	facts, err := scanTA(r)
	if err != nil {
		return nil, err
	}
	return facts.program()
}

func scanTA(r io.Reader) (*taFacts, error) {
	facts := &taFacts{
		instances:  map[string]string{},
		relAttrs:   map[taRelation]map[string][]string{},
		entityAttr: map[string]map[string][]string{},
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	section := taOther
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if s, ok := sectionTitle(line); ok {
			section = s
			continue
		}
		if section == taOther {
			continue
		}
		toks, err := tokenizeTA(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		switch section {
		case taFactTuple:
			err = facts.addTuple(toks)
		case taFactAttribute:
			err = facts.addAttributes(toks)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read TA facts: %w", err)
	}
	return facts, nil
}

func sectionTitle(line string) (taSection, bool) {
	if !strings.HasSuffix(line, ":") {
		return taOther, false
	}
	switch strings.Join(strings.Fields(strings.TrimSuffix(line, ":")), " ") {
	case "FACT TUPLE":
		return taFactTuple, true
	case "FACT ATTRIBUTE":
		return taFactAttribute, true
	case "SCHEME TUPLE", "SCHEME ATTRIBUTE":
		return taOther, true
	}
	return taOther, false
}

func (f *taFacts) addTuple(toks []string) error {
	if len(toks) != 3 {
		return fmt.Errorf("expected a tuple of 3 elements, got %q: %w", toks, ErrInvalidArgument)
	}
	if toks[0] == TAInstance {
		if _, ok := f.instances[toks[1]]; !ok {
			f.instOrder = append(f.instOrder, toks[1])
		}
		f.instances[toks[1]] = toks[2]
		return nil
	}
	f.relations = append(f.relations, taRelation{rel: toks[0], source: toks[1], target: toks[2]})
	return nil
}

func (f *taFacts) addAttributes(toks []string) error {
	var attrs map[string][]string
	rest := toks
	if len(toks) > 0 && toks[0] == "(" {
		if len(toks) < 5 || toks[4] != ")" {
			return fmt.Errorf("malformed relation attribute header %q: %w", toks, ErrInvalidArgument)
		}
		key := taRelation{rel: toks[1], source: toks[2], target: toks[3]}
		if f.relAttrs[key] == nil {
			f.relAttrs[key] = map[string][]string{}
		}
		attrs = f.relAttrs[key]
		rest = toks[5:]
	} else if len(toks) > 0 {
		if f.entityAttr[toks[0]] == nil {
			f.entityAttr[toks[0]] = map[string][]string{}
		}
		attrs = f.entityAttr[toks[0]]
		rest = toks[1:]
	}
	if len(rest) < 2 || rest[0] != "{" || rest[len(rest)-1] != "}" {
		return fmt.Errorf("attributes must be enclosed in braces, got %q: %w", toks, ErrInvalidArgument)
	}
	rest = rest[1 : len(rest)-1]
	for len(rest) > 0 {
		if len(rest) < 3 || rest[1] != "=" {
			return fmt.Errorf("malformed attribute near %q: %w", rest, ErrInvalidArgument)
		}
		name := rest[0]
		if rest[2] != "(" {
			attrs[name] = []string{rest[2]}
			rest = rest[3:]
			continue
		}
		end := 3
		for end < len(rest) && rest[end] != ")" {
			end++
		}
		if end == len(rest) {
			return fmt.Errorf("unterminated list for attribute %s: %w", name, ErrInvalidArgument)
		}
		attrs[name] = append([]string{}, rest[3:end]...)
		rest = rest[end+1:]
	}
	return nil
}

func (f *taFacts) program() (*Program, error) {
	b := NewBuilder()
	for _, id := range f.instOrder {
		switch f.instances[id] {
		case TAFunction:
			b.AddFunction(FunctionID(id))
		case TACFGBlock:
			b.AddNode(NodeID(id))
		}
	}
	for _, r := range f.relations {
		blocks := toNodeIDs(f.relAttrs[r][TACFGBlocksAttr])
		switch r.rel {
		case TAFunctionCFGLink:
			b.SetEntry(FunctionID(r.source), NodeID(r.target))
		case TAContain:
			if f.instances[r.source] == TACFGBlock && f.instances[r.target] == TACFGBlock {
				b.AddContainment(NodeID(r.source), NodeID(r.target))
			}
		case Call.String():
			// callees without an instance are external functions without a body
			b.AddFunction(FunctionID(r.source)).AddFunction(FunctionID(r.target))
			b.AddCall(FunctionID(r.source), FunctionID(r.target), blocks...)
		case Write.String(), DataFlow.String(), Sink.String():
			kind, _ := ParseEdgeKind(r.rel)
			b.AddDataEdge(kind, r.source, r.target, blocks...)
		}
	}
	return b.Build()
}

func toNodeIDs(xs []string) []NodeID {
	res := make([]NodeID, len(xs))
	for i, x := range xs {
		res[i] = NodeID(x)
	}
	return res
}

// tokenizeTA splits a TA line into tokens: quoted strings (unquoted), bare words, and the punctuation
// characters { } ( ) =
func tokenizeTA(line string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '{' || c == '}' || c == '(' || c == ')' || c == '=':
			toks = append(toks, string(c))
			i++
		case c == '"':
			j := i + 1
			var sb strings.Builder
			for j < len(line) && line[j] != '"' {
				if line[j] == '\\' && j+1 < len(line) {
					j++
				}
				sb.WriteByte(line[j])
				j++
			}
			if j == len(line) {
				return nil, fmt.Errorf("unterminated string: %w", ErrInvalidArgument)
			}
			toks = append(toks, sb.String())
			i = j + 1
		default:
			j := i
			for j < len(line) && !strings.ContainsRune(" \t{}()=\"", rune(line[j])) {
				j++
			}
			toks = append(toks, line[i:j])
			i = j
		}
	}
	return toks, nil
}
