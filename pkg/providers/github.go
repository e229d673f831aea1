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
	"strings"

	"github.com/google/go-github/v69/github"
)

// githubEvents is the fixed set of event names the GitHub provider
// accepts. "ping" is handled separately in Validate and is
// deliberately not a member of this set.
var githubEvents = map[string]bool{
	"commit_comment":              true,
	"create":                      true,
	"delete":                      true,
	"deployment":                  true,
	"deployment_status":           true,
	"fork":                        true,
	"gollum":                      true,
	"issue_comment":               true,
	"issues":                      true,
	"label":                       true,
	"member":                      true,
	"membership":                  true,
	"milestone":                   true,
	"organization":                true,
	"page_build":                  true,
	"project_card":                true,
	"project_column":              true,
	"project":                     true,
	"public":                      true,
	"pull_request_review_comment": true,
	"pull_request_review":         true,
	"pull_request":                true,
	"push":                        true,
	"repository":                  true,
	"release":                     true,
	"status":                      true,
	"team":                        true,
	"team_add":                    true,
	"watch":                       true,
}

type githubConfig struct {
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

type githubProvider struct {
	secret string
	events map[string]bool
}

func newGitHubProvider(rawConfig json.RawMessage) (Provider, error) {
	var cfg githubConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("github: %w: %v", ErrInvalidConfig, err)
		}
	}

	var events map[string]bool
	if cfg.Events != nil {
		events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			if !githubEvents[e] {
				return nil, fmt.Errorf("github: %w", &InvalidEventNameError{Provider: "github", Event: e})
			}
			events[e] = true
		}
	}

	return &githubProvider{secret: cfg.Secret, events: events}, nil
}

func (p *githubProvider) Name() string { return "github" }

func (p *githubProvider) Validate(req Request) (RequestType, error) {
	if !req.IsWeb() {
		return Invalid, nil
	}
	w := req.Web

	event := w.Headers.Get("X-GitHub-Event")
	sig := w.Headers.Get("X-Hub-Signature")
	delivery := w.Headers.Get("X-GitHub-Delivery")
	if event == "" || sig == "" || delivery == "" {
		return Invalid, nil
	}

	if p.secret != "" {
		algo, _, ok := strings.Cut(sig, "=")
		if !ok || algo != "sha1" {
			return Invalid, nil
		}
		if err := github.ValidateSignature(sig, w.Body, []byte(p.secret)); err != nil {
			return Invalid, nil
		}
	}

	if !githubEvents[event] && event != "ping" {
		return Invalid, nil
	}
	if p.events != nil && event != "ping" && !p.events[event] {
		return Invalid, nil
	}

	var body any
	if err := json.Unmarshal(w.Body, &body); err != nil {
		return Invalid, nil
	}

	if event == "ping" {
		return Ping, nil
	}
	return ExecuteHook, nil
}

func (p *githubProvider) BuildEnv(req Request, builder *EnvBuilder) error {
	w := req.Web
	event := w.Headers.Get("X-GitHub-Event")
	delivery := w.Headers.Get("X-GitHub-Delivery")

	builder.AddEnv("EVENT", event)
	builder.AddEnv("DELIVERY_ID", delivery)

	// Historical quirk preserved for fidelity: the push-specific
	// variables are only populated when "push" also appears in the
	// configured events whitelist, even though validation above
	// already ensures the event matches.
	if event == "push" && p.events != nil && p.events["push"] {
		var push struct {
			Ref         string `json:"ref"`
			HeadCommit  struct {
				ID string `json:"id"`
			} `json:"head_commit"`
		}
		if err := json.Unmarshal(w.Body, &push); err != nil {
			return fmt.Errorf("github: parsing push payload: %w", err)
		}
		builder.AddEnv("PUSH_REF", push.Ref)
		builder.AddEnv("PUSH_HEAD", push.HeadCommit.ID)
	}

	return nil
}

func (p *githubProvider) ShouldTriggerStatusHooks(req Request) bool {
	return true
}
