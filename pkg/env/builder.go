// Copyright 2025 The Authors (see AUTHORS file)
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

// Package env accumulates the environment variables and payload files a
// Provider builds for a script, prior to execution.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Builder accumulates environment variables and data files for one job.
// A Builder is rooted at a single directory (typically a per-job
// temporary directory); files created through DataFile live there for
// the lifetime of the job and are exposed to the script via an
// uppercased environment variable naming their absolute path.
type Builder struct {
	dir  string
	env  map[string]string
	open []*os.File
}

// NewBuilder creates a Builder rooted at dir. The caller owns dir's
// lifecycle (creation and removal).
func NewBuilder(dir string) *Builder {
	return &Builder{
		dir: dir,
		env: make(map[string]string),
	}
}

// AddEnv sets (overwriting) an environment variable for the script.
func (b *Builder) AddEnv(key, value string) {
	b.env[key] = value
}

// Get returns a previously added environment variable, for tests and
// introspection.
func (b *Builder) Get(key string) (string, bool) {
	v, ok := b.env[key]
	return v, ok
}

// DataFile creates (or reopens) a file named by the logical name inside
// the job's directory, mode 0600, and exposes its absolute path as an
// environment variable named by uppercasing name. The returned handle
// is open for writing; the caller must not close it — Close does that
// once the job is done.
func (b *Builder) DataFile(name string) (*os.File, error) {
	path := filepath.Join(b.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create data file %q: %w", name, err)
	}

	b.open = append(b.open, f)
	b.AddEnv(strings.ToUpper(name), path)

	return f, nil
}

// Dir returns the job's working directory.
func (b *Builder) Dir() string {
	return b.dir
}

// Env renders the accumulated variables as a NAME=VALUE slice suitable
// for exec.Cmd.Env, in deterministic (sorted by key) order.
func (b *Builder) Env() []string {
	keys := make([]string, 0, len(b.env))
	for k := range b.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+b.env[k])
	}
	return out
}

// Close closes any data files opened through DataFile. It does not
// remove the job directory; that is the caller's responsibility.
func (b *Builder) Close() error {
	var firstErr error
	for _, f := range b.open {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.open = nil
	return firstErr
}
