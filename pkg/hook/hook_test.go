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

package hook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fisherhq/fisher/pkg/providers"
)

func writeScript(t *testing.T, dir, name string, lines []string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestLoad_NoDeclarationsIsStandalone(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScript(t, dir, "deploy.sh", []string{"#!/bin/bash", "echo hi"})

	h, err := Load("deploy", path, providers.NewRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h.providers) != 1 || h.providers[0].name != "standalone" {
		t.Fatalf("providers = %+v, want single implicit standalone", h.providers)
	}
}

func TestLoad_ParsesDeclaration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScript(t, dir, "deploy.sh", []string{
		`## Fisher-GitHub: {"secret":"s3cr3t"}`,
		"echo hi",
	})

	h, err := Load("deploy", path, providers.NewRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h.providers) != 1 || h.providers[0].name != "github" {
		t.Fatalf("providers = %+v, want single github provider", h.providers)
	}
}

func TestLoad_SkipsShebangBeforeDeclaration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScript(t, dir, "deploy.sh", []string{
		"#!/bin/bash",
		`## Fisher-Standalone: {}`,
		"echo hi",
	})

	h, err := Load("deploy", path, providers.NewRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h.providers) != 1 || h.providers[0].name != "standalone" {
		t.Fatalf("providers = %+v, want single standalone provider", h.providers)
	}
}

func TestLoad_ParsesMultipleConsecutiveDeclarations(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScript(t, dir, "deploy.sh", []string{
		"#!/bin/bash",
		`## Fisher-GitHub: {"secret":"s3cr3t"}`,
		`## Fisher-GitLab: {"secret":"t0k3n"}`,
		"echo hi",
	})

	h, err := Load("deploy", path, providers.NewRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h.providers) != 2 {
		t.Fatalf("providers = %+v, want 2 providers", h.providers)
	}
	if h.providers[0].name != "github" || h.providers[1].name != "gitlab" {
		t.Errorf("providers = %+v, want [github gitlab] in declaration order", h.providers)
	}
}

func TestLoad_DeclarationsStopAtFirstNonDeclarationLine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScript(t, dir, "deploy.sh", []string{
		`## Fisher-GitHub: {}`,
		"echo hi",
		`## Fisher-GitLab: {}`,
	})

	h, err := Load("deploy", path, providers.NewRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h.providers) != 1 || h.providers[0].name != "github" {
		t.Fatalf("providers = %+v, want only the leading github declaration", h.providers)
	}
}

func TestLoad_UnknownProviderFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScript(t, dir, "deploy.sh", []string{
		`## Fisher-NoSuchProvider: {}`,
	})

	if _, err := Load("deploy", path, providers.NewRegistry()); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestHook_Validate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScript(t, dir, "deploy.sh", []string{"echo hi"})

	h, err := Load("deploy", path, providers.NewRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rt, chosen, err := h.Validate(providers.NewWebRequest(&providers.WebRequest{}))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rt != providers.ExecuteHook {
		t.Errorf("Validate() = %v, want ExecuteHook", rt)
	}
	if chosen == nil || chosen.Provider.Name() != "standalone" {
		t.Errorf("chosen provider = %+v, want standalone", chosen)
	}
}

func TestHook_Validate_AllInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScript(t, dir, "deploy.sh", []string{"echo hi"})

	h, err := Load("deploy", path, providers.NewRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rt, chosen, err := h.Validate(providers.NewStatusRequest(&providers.StatusEvent{HookName: "other"}))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rt != providers.Invalid || chosen != nil {
		t.Errorf("Validate() = (%v, %+v), want (Invalid, nil)", rt, chosen)
	}
}
