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

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains the inputs and the options of the path validation.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// Model is the path to the TA fact file holding the program model. Relative paths are relative to the config
	// file.
	Model string `yaml:"model"`

	// CandidatePaths is the path to the yaml file listing the candidate paths to validate. Relative paths are
	// relative to the config file.
	CandidatePaths string `yaml:"candidate-paths"`

	// ExcludeFunctions is a list of regexes. Candidate paths going through a function that matches any of them are
	// skipped.
	ExcludeFunctions []string `yaml:"exclude-functions"`

	excludeRegexes []*regexp.Regexp
}

// Options holds the parameters of the validation itself
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded does not specify a ReportsDir but sets ReportCsv to true, then ReportsDir will be created
	// in the folder of the config file.
	ReportsDir string `yaml:"reports-dir"`

	// ReportCsv specifies whether the verdicts should be written to a csv file in the reports directory
	ReportCsv bool `yaml:"report-csv"`

	// MaxBranches sets a limit on the number of branches the backtracking search explores for a single path.
	// If MaxBranches <= 0, then it is ignored.
	MaxBranches int `yaml:"max-branches"`

	// Parallelism is the number of candidate paths validated concurrently
	Parallelism int `yaml:"parallelism"`

	// RequireAcyclic makes loading a model fail when its call graph is recursive. When false, recursion is only
	// reported as a warning.
	RequireAcyclic bool `yaml:"require-acyclic"`

	// NoMemoize disables the memoization of call-graph queries across candidate paths
	NoMemoize bool `yaml:"no-memoize"`

	// ModelCacheDir is the directory of the parsed model cache. The cache is disabled when it is empty.
	ModelCacheDir string `yaml:"model-cache-dir"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:       "",
		Model:            "",
		CandidatePaths:   "",
		ExcludeFunctions: nil,
		Options: Options{
			ReportsDir:     "",
			ReportCsv:      false,
			MaxBranches:    DefaultMaxBranches,
			Parallelism:    DefaultParallelism,
			RequireAcyclic: false,
			NoMemoize:      false,
			ModelCacheDir:  "",
			LogLevel:       int(InfoLevel),
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.sourceFile = filename

	if cfg.ReportCsv {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Parse reads a configuration from the contents of a yaml file. Defaults are set for missing options.
func Parse(b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}

	for _, expr := range cfg.ExcludeFunctions {
		r, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude-functions regex %q: %w", expr, err)
		}
		cfg.excludeRegexes = append(cfg.excludeRegexes, r)
	}
	return cfg, nil
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file. Absolute paths are returned unchanged.
func (c Config) RelPath(filename string) string {
	if filename == "" || path.IsAbs(filename) || c.sourceFile == "" {
		return filename
	}
	return path.Join(path.Dir(c.sourceFile), filename)
}

// IsExcludedFunction returns true if the function id matches one of the exclude-functions regexes
func (c Config) IsExcludedFunction(id string) bool {
	for _, r := range c.excludeRegexes {
		if r.MatchString(id) {
			return true
		}
	}
	return false
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxBranches returns true if the input exceeds the maximum number of branches of the configuration.
// (if the configuration setting is <= 0, then this returns false)
func (c Config) ExceedsMaxBranches(n int) bool {
	if c.MaxBranches <= 0 {
		return false
	}
	return n > c.MaxBranches
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "model: %q, candidate paths: %q, ", c.Model, c.CandidatePaths)
	fmt.Fprintf(&b, "max branches: %d, parallelism: %d, require acyclic: %t",
		c.MaxBranches, c.Parallelism, c.RequireAcyclic)
	return b.String()
}
