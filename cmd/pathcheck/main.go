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

// pathcheck validates candidate interprocedural data-flow paths against the call stack discipline of a program
// model.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rexflow/pathcheck/analysis/candidates"
	"github.com/rexflow/pathcheck/analysis/config"
	"github.com/rexflow/pathcheck/analysis/graphstore"
	"github.com/rexflow/pathcheck/analysis/model"
	"github.com/rexflow/pathcheck/analysis/modelcache"
	"github.com/rexflow/pathcheck/analysis/report"
	"github.com/rexflow/pathcheck/analysis/stackcheck"
	"github.com/rexflow/pathcheck/internal/formatutil"
	"github.com/rexflow/pathcheck/internal/funcutil"
)

const usage = `Validate candidate data-flow paths under call-stack discipline.

Usage:
  pathcheck [options] -model model.ta -paths paths.yaml
  pathcheck [options] -config config.yaml

Use the -help flag to display the options.

Examples:
% pathcheck -model build/model.ta -paths build/paths.yaml -j 8
`

// exit codes
const (
	exitOk    = 0
	exitFail  = 1
	exitUsage = 2
)

type flags struct {
	configPath string
	modelPath  string
	pathsPath  string
	cacheDir   string
	csv        bool
	verbose    bool
	jobs       int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pathcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f flags
	fs.StringVar(&f.configPath, "config", "", "config file path")
	fs.StringVar(&f.modelPath, "model", "", "model fact file (overrides the config)")
	fs.StringVar(&f.pathsPath, "paths", "", "candidate paths file (overrides the config)")
	fs.StringVar(&f.cacheDir, "cache", "", "model cache directory (overrides the config)")
	fs.BoolVar(&f.csv, "csv", false, "write the verdicts to a csv file in the reports directory")
	fs.BoolVar(&f.verbose, "verbose", false, "verbose printing")
	fs.IntVar(&f.jobs, "j", 0, "number of paths validated in parallel (overrides the config)")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(stderr, "pathcheck: %s\n", err)
		return exitFail
	}
	if cfg.Model == "" || cfg.CandidatePaths == "" {
		fs.Usage()
		return exitUsage
	}
	logger := config.NewLogGroup(cfg)
	logger.SetAllOutput(stderr)

	if err := doMain(ctx, cfg, logger, stdout); err != nil {
		fmt.Fprintf(stderr, "pathcheck: %s\n", err)
		return exitFail
	}
	return exitOk
}

// loadConfig returns the config file, if any, with the command line flags applied. Paths of the config file are
// made relative to the current directory.
func loadConfig(f flags) (*config.Config, error) {
	cfg := config.NewDefault()
	if f.configPath != "" {
		var err error
		cfg, err = config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg.Model = cfg.RelPath(cfg.Model)
		cfg.CandidatePaths = cfg.RelPath(cfg.CandidatePaths)
		cfg.ModelCacheDir = cfg.RelPath(cfg.ModelCacheDir)
	}
	if f.modelPath != "" {
		cfg.Model = f.modelPath
	}
	if f.pathsPath != "" {
		cfg.CandidatePaths = f.pathsPath
	}
	if f.cacheDir != "" {
		cfg.ModelCacheDir = f.cacheDir
	}
	if f.jobs > 0 {
		cfg.Parallelism = f.jobs
	}
	if f.verbose && cfg.LogLevel < int(config.DebugLevel) {
		cfg.LogLevel = int(config.DebugLevel)
	}
	if f.csv && !cfg.ReportCsv {
		cfg.ReportCsv = true
		if cfg.ReportsDir == "" {
			dir, err := os.MkdirTemp(".", "*-report")
			if err != nil {
				return nil, fmt.Errorf("could not create reports directory: %w", err)
			}
			cfg.ReportsDir = dir
		}
	}
	return cfg, nil
}

func doMain(ctx context.Context, cfg *config.Config, logger *config.LogGroup, stdout io.Writer) error {
	logger.Infof(formatutil.Faint("Reading model %s"), cfg.Model)
	prog, err := loadModel(cfg, logger)
	if err != nil {
		return err
	}
	logger.Infof("Model has %d functions, %d control-flow nodes, %d call edges",
		len(prog.Functions()), len(prog.Nodes()), len(prog.CallEdges()))

	store := graphstore.NewMemStore(prog)
	if err := store.RequireAcyclic(); err != nil {
		if cfg.RequireAcyclic {
			return err
		}
		logger.Warnf("%v", err)
	}

	paths, err := candidates.Load(cfg.CandidatePaths, prog)
	if err != nil {
		return err
	}
	paths, skipped := excludePaths(cfg, prog, paths)
	logger.Infof("Validating %d candidate paths (%d excluded) with parallelism %d",
		len(paths), skipped, cfg.Parallelism)

	v := stackcheck.New(store, cfg, logger)
	results := v.ValidateAll(ctx, paths, cfg.Parallelism)

	report.Summary(stdout, paths, results, skipped, cfg.Verbose())
	if cfg.ReportCsv {
		filename, err := report.WriteCSVFile(cfg.ReportsDir, paths, results)
		if err != nil {
			return err
		}
		logger.Infof("Verdicts written to %s", filename)
	}
	if totals := report.Count(results); totals.Internal > 0 {
		return fmt.Errorf("%d paths failed with an internal error", totals.Internal)
	}
	return ctx.Err()
}

func loadModel(cfg *config.Config, logger *config.LogGroup) (*model.Program, error) {
	if cfg.ModelCacheDir == "" {
		return model.LoadTA(cfg.Model)
	}
	cache, err := modelcache.Open(cfg.ModelCacheDir, logger)
	if err != nil {
		return nil, err
	}
	defer cache.Close()
	prog, hit, err := cache.LoadOrParse(cfg.Model, func(b []byte) (*model.Program, error) {
		return model.ReadTA(bytes.NewReader(b))
	})
	if err != nil {
		return nil, err
	}
	if hit {
		logger.Infof("Model loaded from cache %s", cfg.ModelCacheDir)
	}
	return prog, nil
}

// excludePaths removes the paths with an endpoint that is an excluded function
func excludePaths(cfg *config.Config, prog *model.Program,
	paths []model.CandidatePath) ([]model.CandidatePath, int) {
	isExcluded := func(id string) bool {
		_, isFunc := prog.Function(model.FunctionID(id))
		return isFunc && cfg.IsExcludedFunction(id)
	}
	var kept []model.CandidatePath
	for _, p := range paths {
		if !funcutil.Exists(p.Edges, func(e model.CandidateEdge) bool {
			return isExcluded(e.Source) || isExcluded(e.Target)
		}) {
			kept = append(kept, p)
		}
	}
	return kept, len(paths) - len(kept)
}
