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
)

// standaloneProvider is the permissive default: it accepts any Web
// request for execution and adds no environment of its own. It also
// backs the implicit provider a Hook with no declarations falls back
// to.
type standaloneProvider struct{}

func newStandaloneProvider(rawConfig json.RawMessage) (Provider, error) {
	if len(rawConfig) > 0 {
		var v any
		if err := json.Unmarshal(rawConfig, &v); err != nil {
			return nil, fmt.Errorf("standalone: %w: %v", ErrInvalidConfig, err)
		}
	}
	return standaloneProvider{}, nil
}

func (standaloneProvider) Name() string { return "standalone" }

func (standaloneProvider) Validate(req Request) (RequestType, error) {
	if !req.IsWeb() {
		return Invalid, nil
	}
	return ExecuteHook, nil
}

func (standaloneProvider) BuildEnv(req Request, builder *EnvBuilder) error {
	return nil
}

func (standaloneProvider) ShouldTriggerStatusHooks(req Request) bool {
	return true
}
