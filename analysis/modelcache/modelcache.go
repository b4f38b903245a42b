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

// Package modelcache persists parsed programs so that large fact files are not parsed again on every run.
// Programs are keyed by the hash of the file they were parsed from, and stored as their yaml snapshot in a badger
// database.
package modelcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/rexflow/pathcheck/analysis/config"
	"github.com/rexflow/pathcheck/analysis/model"
	"gopkg.in/yaml.v3"
)

// keyPrefix is bumped whenever the snapshot encoding changes
const keyPrefix = "program/v1/"

// Cache is a persistent cache of programs
type Cache struct {
	db     *badger.DB
	logger *config.LogGroup
}

// Open opens the cache stored in dir, creating it if needed. A nil logger silences the database.
func Open(dir string, logger *config.LogGroup) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return open(badger.DefaultOptions(dir).WithNumVersionsToKeep(1), logger)
}

// OpenInMemory returns a cache that is not persisted
func OpenInMemory() (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), nil)
}

func open(opts badger.Options, logger *config.LogGroup) (*Cache, error) {
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = config.Discard()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open model cache: %w", err)
	}
	return &Cache{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key returns the cache key of the program parsed from content
func Key(content []byte) string {
	sum := sha256.Sum256(content)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the program stored under key. The boolean is false if there is none.
func (c *Cache) Get(key string) (*model.Program, bool, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	prog, err := model.DecodeYAML(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return prog, true, nil
}

// Put stores prog under key
func (c *Cache) Put(key string, prog *model.Program) error {
	data, err := yaml.Marshal(prog)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// LoadOrParse returns the program of filename from the cache, or parses it with parse and stores the result. The
// boolean is true on a cache hit. A cache entry that cannot be decoded is replaced.
func (c *Cache) LoadOrParse(filename string, parse func([]byte) (*model.Program, error)) (*model.Program, bool, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, false, fmt.Errorf("could not read model: %w", err)
	}
	key := Key(content)
	prog, ok, err := c.Get(key)
	if err != nil {
		c.logger.Warnf("ignoring cached model of %s: %v", filename, err)
	} else if ok {
		c.logger.Debugf("model of %s loaded from cache", filename)
		return prog, true, nil
	}
	prog, err = parse(content)
	if err != nil {
		return nil, false, err
	}
	if err := c.Put(key, prog); err != nil {
		c.logger.Warnf("could not cache model of %s: %v", filename, err)
	}
	return prog, false, nil
}

// badgerLogger forwards the database messages to a LogGroup, one level down
type badgerLogger struct {
	logger *config.LogGroup
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Tracef(format, args...)
}
