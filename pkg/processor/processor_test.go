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

package processor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abcxyz/pkg/logging"

	"github.com/fisherhq/fisher/pkg/hook"
	"github.com/fisherhq/fisher/pkg/providers"
	"github.com/fisherhq/fisher/pkg/state"
)

func writeExecScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func loadHook(t *testing.T, name, path string) *hook.Hook {
	t.Helper()
	h, err := hook.Load(name, path, providers.NewRegistry())
	if err != nil {
		t.Fatalf("hook.Load: %v", err)
	}
	return h
}

func newJob(h *hook.Hook) *Job {
	return &Job{
		ID:       uuid.New(),
		HookName: h.Name,
		Hook:     h,
		Request:  providers.NewWebRequest(&providers.WebRequest{}),
		Provider: standaloneProviderForTest{},
	}
}

// standaloneProviderForTest avoids depending on providers' unexported
// constructor. Like the Standalone provider it adds no environment;
// unlike it, it accepts every request and never triggers status hooks.
type standaloneProviderForTest struct{}

func (standaloneProviderForTest) Name() string { return "standalone" }
func (standaloneProviderForTest) Validate(req providers.Request) (providers.RequestType, error) {
	return providers.ExecuteHook, nil
}
func (standaloneProviderForTest) BuildEnv(req providers.Request, b *providers.EnvBuilder) error {
	return nil
}
func (standaloneProviderForTest) ShouldTriggerStatusHooks(req providers.Request) bool { return false }

func testContext(t *testing.T) context.Context {
	t.Helper()
	return logging.WithLogger(context.Background(), logging.TestLogger(t))
}

func TestProcessor_RunsJobAndReportsHealth(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	scriptPath := writeExecScript(t, dir, "deploy.sh", "touch "+marker)
	h := loadHook(t, "deploy", scriptPath)

	p, err := Start(testContext(t), 1, map[string]*hook.Hook{"deploy": h}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	p.Submit(newJob(h))

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(marker); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("script did not run in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hd := p.Health()
	if hd.ActiveJobs != 0 {
		t.Errorf("ActiveJobs = %d, want 0 once drained", hd.ActiveJobs)
	}
}

func TestProcessor_QueuesBeyondCapacity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	release := filepath.Join(dir, "release")
	scriptPath := writeExecScript(t, dir, "slow.sh", `
while [ ! -f `+release+` ]; do sleep 0.01; done
`)
	h := loadHook(t, "slow", scriptPath)

	p, err := Start(testContext(t), 1, map[string]*hook.Hook{"slow": h}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		os.WriteFile(release, []byte("go"), 0o644)
		p.Stop()
	}()

	p.Submit(newJob(h))
	p.Submit(newJob(h))

	deadline := time.Now().Add(2 * time.Second)
	var hd HealthDetails
	for time.Now().Before(deadline) {
		hd = p.Health()
		if hd.ActiveJobs == 1 && hd.QueueSize == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected one active and one queued job, got %+v", hd)
}

// deliveryProviderForTest sets DELIVERY_ID so runJob's idempotency
// check has something to key on.
type deliveryProviderForTest struct{ id string }

func (deliveryProviderForTest) Name() string { return "standalone" }
func (deliveryProviderForTest) Validate(req providers.Request) (providers.RequestType, error) {
	return providers.ExecuteHook, nil
}
func (p deliveryProviderForTest) BuildEnv(req providers.Request, b *providers.EnvBuilder) error {
	b.AddEnv("DELIVERY_ID", p.id)
	return nil
}
func (deliveryProviderForTest) ShouldTriggerStatusHooks(req providers.Request) bool { return false }

func TestProcessor_SkipsDuplicateDeliveryWithState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	counter := filepath.Join(dir, "count")
	scriptPath := writeExecScript(t, dir, "deploy.sh", "echo x >> "+counter)
	h := loadHook(t, "deploy", scriptPath)

	st, err := state.New(testContext(t), &state.Config{})
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}

	p, err := Start(testContext(t), 1, map[string]*hook.Hook{"deploy": h}, st)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	job := func() *Job {
		return &Job{
			ID:       uuid.New(),
			HookName: h.Name,
			Hook:     h,
			Request:  providers.NewWebRequest(&providers.WebRequest{}),
			Provider: deliveryProviderForTest{id: "dup-delivery"},
		}
	}

	p.Submit(job())
	p.Submit(job())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hd := p.Health(); hd.ActiveJobs == 0 && hd.QueueSize == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	out, err := os.ReadFile(counter)
	if err != nil {
		t.Fatalf("reading counter file: %v", err)
	}
	if got := len(out); got != 2 {
		t.Errorf("counter file has %d bytes (one line per run), want 2 (one run, duplicate delivery skipped)", got)
	}
}

func TestProcessor_StopIsIdempotentAndDrains(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	scriptPath := writeExecScript(t, dir, "quick.sh", "true")
	h := loadHook(t, "quick", scriptPath)

	p, err := Start(testContext(t), 2, map[string]*hook.Hook{"quick": h}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p.Submit(newJob(h))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()
}
