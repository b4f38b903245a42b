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

// Package report prints the verdicts of a validation run.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rexflow/pathcheck/analysis/model"
	"github.com/rexflow/pathcheck/analysis/stackcheck"
	"github.com/rexflow/pathcheck/internal/formatutil"
)

// CsvFileName is the name of the csv report in the reports directory
const CsvFileName = "verdicts.csv"

// Totals counts results per verdict
type Totals struct {
	Accepted int
	Rejected int
	Errored  int
	// Internal counts the errored results that are internal errors
	Internal int
}

// Count returns the totals of results
func Count(results []stackcheck.Result) Totals {
	var t Totals
	for _, r := range results {
		switch r.Verdict {
		case stackcheck.Accepted:
			t.Accepted++
		case stackcheck.Rejected:
			t.Rejected++
		default:
			t.Errored++
			if stackcheck.Kind(r.Err) == "Internal" {
				t.Internal++
			}
		}
	}
	return t
}

// WriteCSV writes one row per path: id, verdict, error kind and message, and the path itself. results[i] must be
// the result of paths[i].
func WriteCSV(w io.Writer, paths []model.CandidatePath, results []stackcheck.Result) error {
	if len(paths) != len(results) {
		return fmt.Errorf("%d paths but %d results", len(paths), len(results))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "verdict", "error", "edges"}); err != nil {
		return err
	}
	for i, p := range paths {
		r := results[i]
		errMsg := ""
		if r.Err != nil {
			errMsg = stackcheck.Kind(r.Err) + ": " + r.Err.Error()
		}
		if err := cw.Write([]string{p.ID, r.Verdict.String(), errMsg, p.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the csv report in dir and returns the name of the file
func WriteCSVFile(dir string, paths []model.CandidatePath, results []stackcheck.Result) (string, error) {
	filename := filepath.Join(dir, CsvFileName)
	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("could not create report: %w", err)
	}
	defer f.Close()
	if err := WriteCSV(f, paths, results); err != nil {
		return "", fmt.Errorf("could not write report %s: %w", filename, err)
	}
	return filename, nil
}

// Summary prints the accepted paths, the errors, and the totals. Rejected paths are only listed when verbose is
// set.
func Summary(w io.Writer, paths []model.CandidatePath, results []stackcheck.Result, skipped int, verbose bool) {
	for i, p := range paths {
		r := results[i]
		switch r.Verdict {
		case stackcheck.Accepted:
			fmt.Fprintf(w, "%s %s: %s\n", formatutil.Green("accepted"), formatutil.Cyan(p.ID), p)
		case stackcheck.Rejected:
			if verbose {
				fmt.Fprintf(w, "%s %s: %s\n", formatutil.Faint("rejected"), p.ID, p)
			}
		default:
			fmt.Fprintf(w, "%s %s: %s\n", formatutil.Red("error"), p.ID, formatutil.Sanitize(r.Err.Error()))
		}
	}
	t := Count(results)
	fmt.Fprintf(w, "%s %d paths: %d accepted, %d rejected, %d errors",
		formatutil.Bold("Validated"), len(results), t.Accepted, t.Rejected, t.Errored)
	if skipped > 0 {
		fmt.Fprintf(w, " (%s)", formatutil.Yellow(fmt.Sprintf("%d excluded", skipped)))
	}
	fmt.Fprintln(w)
}
