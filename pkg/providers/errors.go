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
	"errors"
	"fmt"
)

// ErrProviderNotFound is returned by a Registry lookup that misses.
var ErrProviderNotFound = errors.New("provider not found")

// ErrInvalidConfig wraps a JSON parse failure or schema mismatch
// encountered while constructing a provider.
var ErrInvalidConfig = errors.New("invalid provider config")

// NotFoundError names the provider that could not be located.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return "provider not found"
	}
	return fmt.Sprintf("provider not found: %q", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrProviderNotFound
}

// InvalidEventNameError names the unrecognized event from a provider's
// configured event whitelist.
type InvalidEventNameError struct {
	Provider string
	Event    string
}

func (e *InvalidEventNameError) Error() string {
	return fmt.Sprintf("%s provider: invalid event name %q", e.Provider, e.Event)
}

func (e *InvalidEventNameError) Unwrap() error {
	return ErrInvalidConfig
}
