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

package webhook

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/renderer"

	"github.com/fisherhq/fisher/pkg/hook"
	"github.com/fisherhq/fisher/pkg/processor"
	"github.com/fisherhq/fisher/pkg/providers"
)

type fakeProcessor struct {
	submitted []*processor.Job
	health    processor.HealthDetails
}

func (f *fakeProcessor) Submit(j *processor.Job) { f.submitted = append(f.submitted, j) }
func (f *fakeProcessor) Health() processor.HealthDetails { return f.health }

func newTestServer(t *testing.T, proc Processor, hooks map[string]*hook.Hook, cfg *Config) *Server {
	t.Helper()

	ctx := logging.WithLogger(t.Context(), logging.TestLogger(t))
	h, err := renderer.New(ctx, nil)
	if err != nil {
		t.Fatalf("renderer.New: %v", err)
	}

	s, err := NewServer(h, cfg, hooks, proc)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func loadHookFixture(t *testing.T, dir, name string, lines []string) *hook.Hook {
	t.Helper()

	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}

	h, err := hook.Load(name, path, providers.NewRegistry())
	if err != nil {
		t.Fatalf("hook.Load: %v", err)
	}
	return h
}

func TestHandleHook(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h := loadHookFixture(t, dir, "deploy", []string{"echo hi"})

	cases := []struct {
		name           string
		path           string
		hooks          map[string]*hook.Hook
		expStatus      int
		expJobsQueued  int
	}{
		{
			name:          "unknown hook is not found",
			path:          "/hook/does-not-exist",
			hooks:         map[string]*hook.Hook{"deploy": h},
			expStatus:     http.StatusNotFound,
			expJobsQueued: 0,
		},
		{
			name:          "standalone hook executes",
			path:          "/hook/deploy",
			hooks:         map[string]*hook.Hook{"deploy": h},
			expStatus:     http.StatusOK,
			expJobsQueued: 1,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			proc := &fakeProcessor{}
			s := newTestServer(t, proc, tc.hooks, &Config{EnableHealth: true})

			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			rec := httptest.NewRecorder()
			s.Routes(t.Context()).ServeHTTP(rec, req)

			if rec.Code != tc.expStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.expStatus, rec.Body.String())
			}
			if len(proc.submitted) != tc.expJobsQueued {
				t.Errorf("jobs queued = %d, want %d", len(proc.submitted), tc.expJobsQueued)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		proc := &fakeProcessor{}
		s := newTestServer(t, proc, nil, &Config{EnableHealth: false})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		s.handleHealth().ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()

		proc := &fakeProcessor{health: processor.HealthDetails{ActiveJobs: 2, QueueSize: 5}}
		s := newTestServer(t, proc, nil, &Config{EnableHealth: true})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		s.handleHealth().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if want := `"active_jobs":2`; !strings.Contains(rec.Body.String(), want) {
			t.Errorf("body = %s, want containing %s", rec.Body.String(), want)
		}
	})
}
