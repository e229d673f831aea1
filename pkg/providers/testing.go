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

//go:build fisher_testprovider

package providers

import (
	"encoding/json"
	"fmt"
)

// testingProvider exists only in builds tagged fisher_testprovider. It
// lets integration tests drive every RequestType without a real
// upstream platform: its behavior is entirely controlled by query
// parameters on the inbound request.
type testingProvider struct{}

func newTestingProvider(rawConfig json.RawMessage) (Provider, error) {
	var raw string
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &raw); err == nil && raw == "FAIL" {
			// Reuses NotFoundError with an empty name, a preserved
			// test-suite-parity quirk rather than a real "not found".
			return nil, &NotFoundError{}
		}
	}
	return testingProvider{}, nil
}

func (testingProvider) Name() string { return "testing" }

func (testingProvider) Validate(req Request) (RequestType, error) {
	if !req.IsWeb() {
		return Invalid, nil
	}
	w := req.Web

	if secret := w.Params.Get("secret"); secret != "" && secret != "testing" {
		return Invalid, nil
	}
	if ip := w.Params.Get("ip"); ip != "" && w.Source != nil && ip != w.Source.String() {
		return Invalid, nil
	}
	if w.Params.Get("request_type") == "ping" {
		return Ping, nil
	}
	return ExecuteHook, nil
}

func (testingProvider) BuildEnv(req Request, builder *EnvBuilder) error {
	w := req.Web

	f, err := builder.DataFile("prepared")
	if err != nil {
		return fmt.Errorf("testing: %w", err)
	}

	if _, err := f.WriteString("prepared\n"); err != nil {
		return fmt.Errorf("testing: writing prepared file: %w", err)
	}

	if env := w.Params.Get("env"); env != "" {
		builder.AddEnv("ENV", env)
	}

	return nil
}

func (testingProvider) ShouldTriggerStatusHooks(req Request) bool {
	if !req.IsWeb() {
		return true
	}
	_, ignore := req.Web.Params["ignore_status_hooks"]
	return !ignore
}
