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

package providers

import (
	"encoding/json"
	"fmt"

	"github.com/fisherhq/fisher/pkg/env"
)

// EnvBuilder is the accumulator a Provider's BuildEnv populates.
type EnvBuilder = env.Builder

// Provider is the capability set every webhook source platform (and the
// built-in Standalone fallback) implements. A Provider is constructed
// fresh from its raw hook-declaration config for every Hook.Load and is
// otherwise stateless between calls.
type Provider interface {
	// Name identifies the provider in logs and in hook declarations.
	Name() string

	// Validate classifies an inbound Request, deciding whether it
	// should be rejected, acknowledged as a ping, or queued for
	// execution.
	Validate(req Request) (RequestType, error)

	// BuildEnv appends the environment variables (and, where needed,
	// data files through builder) a script needs to process req.
	// Only called after Validate has returned ExecuteHook.
	BuildEnv(req Request, builder *EnvBuilder) error

	// ShouldTriggerStatusHooks reports whether a finished job's
	// status should be propagated as a StatusEvent to other hooks,
	// given the originating request (e.g. Testing's
	// "ignore_status_hooks" query parameter). Default true.
	ShouldTriggerStatusHooks(req Request) bool
}

// Constructor builds a Provider from its hook-declaration's raw JSON
// config. It returns InvalidConfig-wrapped errors on schema mismatch.
type Constructor func(rawConfig json.RawMessage) (Provider, error)

// Registry resolves a provider name to its Constructor. Registries are
// built fresh by NewRegistry; there is no global/init-time
// registration, so tests can construct a minimal registry with exactly
// the providers they need.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns a Registry carrying the production provider set:
// standalone, github and gitlab. Builds tagged fisher_testprovider
// also register the Testing provider here.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]Constructor)}
	r.Register("standalone", newStandaloneProvider)
	r.Register("github", newGitHubProvider)
	r.Register("gitlab", newGitLabProvider)
	registerTestProvider(r)
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.ctors[name] = ctor
}

// Build constructs the named provider from rawConfig.
func (r *Registry) Build(name string, rawConfig json.RawMessage) (Provider, error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}

	p, err := ctor(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("building provider %q: %w", name, err)
	}
	return p, nil
}

// Names returns the set of registered provider names, for error
// messages and diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	return names
}
