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

// Package hook binds a script on disk to the ordered list of providers
// declared in its leading declaration lines, and runs request
// validation against them.
package hook

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/fisherhq/fisher/pkg/providers"
)

// declarationRe matches "## Fisher-<Name>: <json-config-on-one-line>".
var declarationRe = regexp.MustCompile(`^##\s*Fisher-([A-Za-z0-9_]+):\s*(.+)$`)

// declared is one parsed provider declaration line from a script's
// leading run, paired with the constructed Provider it resolved to.
type declared struct {
	name     string
	provider providers.Provider
}

// Hook is a script bound to zero or more providers. A Hook with no
// declared providers behaves as a single implicit Standalone.
type Hook struct {
	Name       string
	ScriptPath string

	providers []declared
}

// Load reads scriptPath's leading run of "## Fisher-<Name>: <config>"
// declaration lines, resolves each through registry in order, and
// returns the bound Hook. A script with no declarations is a
// Standalone hook with empty config.
func Load(name, scriptPath string, registry *providers.Registry) (*Hook, error) {
	lines, err := declarationLines(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("loading hook %q: %w", name, err)
	}

	h := &Hook{Name: name, ScriptPath: scriptPath}

	for _, line := range lines {
		m := declarationRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		providerName := strings.ToLower(m[1])
		rawConfig := json.RawMessage(strings.TrimSpace(m[2]))

		p, err := registry.Build(providerName, rawConfig)
		if err != nil {
			return nil, fmt.Errorf("loading hook %q: %w", name, err)
		}

		h.providers = append(h.providers, declared{name: providerName, provider: p})
	}

	if len(h.providers) == 0 {
		p, err := registry.Build("standalone", nil)
		if err != nil {
			return nil, fmt.Errorf("loading hook %q: %w", name, err)
		}
		h.providers = append(h.providers, declared{name: "standalone", provider: p})
	}

	return h, nil
}

// declarationLines returns the leading run of "## Fisher-<Name>: ..."
// declaration lines at the top of path, skipping a leading shebang
// line if present, and stopping at the first line that is not itself
// a declaration.
func declarationLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, nil
	}
	line := scanner.Text()

	if strings.HasPrefix(line, "#!") {
		if !scanner.Scan() {
			return nil, nil
		}
		line = scanner.Text()
	}

	var lines []string
	for {
		if !declarationRe.MatchString(line) {
			break
		}
		lines = append(lines, line)
		if !scanner.Scan() {
			break
		}
		line = scanner.Text()
	}

	return lines, nil
}

// ChosenProvider is the outcome of a successful Validate: the provider
// that classified the request, ready to be handed the job's EnvBuilder.
type ChosenProvider struct {
	Provider providers.Provider
}

// Validate iterates the hook's providers in declaration order, calling
// each one's Validate in turn. It returns the classification from the
// first provider to answer ExecuteHook or Ping, along with that
// provider for build_env binding. If every provider answers Invalid,
// it returns Invalid with a nil ChosenProvider.
func (h *Hook) Validate(req providers.Request) (rt providers.RequestType, chosen *ChosenProvider, err error) {
	for _, d := range h.providers {
		result, verr := d.provider.Validate(req)
		if verr != nil {
			return providers.Invalid, nil, fmt.Errorf("hook %q: provider %q: %w", h.Name, d.name, verr)
		}
		if result == providers.ExecuteHook || result == providers.Ping {
			return result, &ChosenProvider{Provider: d.provider}, nil
		}
	}
	return providers.Invalid, nil, nil
}
