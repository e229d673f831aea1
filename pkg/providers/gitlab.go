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
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xanzy/go-gitlab"
)

// gitlabEvents is the fixed set of normalized event names the GitLab
// provider accepts, derived from go-gitlab's own EventType constants
// with their trailing " Hook" suffix stripped the same way
// normalizeEventName strips it from an incoming header.
var gitlabEvents = map[string]bool{
	normalizeEventName(string(gitlab.EventTypePush)):              true,
	normalizeEventName(string(gitlab.EventTypeTagPush)):            true,
	normalizeEventName(string(gitlab.EventTypeIssue)):              true,
	normalizeEventName(string(gitlab.EventTypeNote)):               true,
	normalizeEventName(string(gitlab.EventTypeMergeRequest)):       true,
	normalizeEventName(string(gitlab.EventTypeWikiPage)):           true,
	normalizeEventName(string(gitlab.EventTypeBuild)):              true,
	normalizeEventName(string(gitlab.EventTypePipeline)):           true,
	normalizeEventName(string(gitlab.EventTypeConfidentialIssue)):  true,
}

// normalizeEventName strips exactly one trailing " Hook" suffix, so
// "Push Hook" becomes "Push" but "Push Hook Hook" becomes "Push Hook".
func normalizeEventName(raw string) string {
	return strings.TrimSuffix(raw, " Hook")
}

type gitlabConfig struct {
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

type gitlabProvider struct {
	secret string
	events map[string]bool
}

func newGitLabProvider(rawConfig json.RawMessage) (Provider, error) {
	var cfg gitlabConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("gitlab: %w: %v", ErrInvalidConfig, err)
		}
	}

	var events map[string]bool
	if cfg.Events != nil {
		events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			if !gitlabEvents[e] {
				return nil, fmt.Errorf("gitlab: %w", &InvalidEventNameError{Provider: "gitlab", Event: e})
			}
			events[e] = true
		}
	}

	return &gitlabProvider{secret: cfg.Secret, events: events}, nil
}

func (p *gitlabProvider) Name() string { return "gitlab" }

func (p *gitlabProvider) Validate(req Request) (RequestType, error) {
	if !req.IsWeb() {
		return Invalid, nil
	}
	w := req.Web

	rawEvent := w.Headers.Get("X-Gitlab-Event")
	if rawEvent == "" {
		return Invalid, nil
	}

	if p.secret != "" {
		token := w.Headers.Get("X-Gitlab-Token")
		if token == "" {
			return Invalid, nil
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(p.secret)) != 1 {
			return Invalid, nil
		}
	}

	event := normalizeEventName(rawEvent)
	if p.events != nil && !p.events[event] {
		return Invalid, nil
	}

	var body any
	if err := json.Unmarshal(w.Body, &body); err != nil {
		return Invalid, nil
	}

	return ExecuteHook, nil
}

func (p *gitlabProvider) BuildEnv(req Request, builder *EnvBuilder) error {
	rawEvent := req.Web.Headers.Get("X-Gitlab-Event")
	builder.AddEnv("EVENT", normalizeEventName(rawEvent))
	return nil
}

func (p *gitlabProvider) ShouldTriggerStatusHooks(req Request) bool {
	return true
}
