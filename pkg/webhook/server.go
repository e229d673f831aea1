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
	"context"
	"net/http"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/renderer"

	"github.com/fisherhq/fisher/pkg/hook"
	"github.com/fisherhq/fisher/pkg/processor"
)

// Processor is the subset of *processor.Processor the web front-end
// needs: enough to submit jobs and read health without coupling this
// package to the processor's internals.
type Processor interface {
	Submit(j *processor.Job)
	Health() processor.HealthDetails
}

// Server is Fisher's HTTP front-end.
type Server struct {
	h             *renderer.Renderer
	hooks         map[string]*hook.Hook
	processor     Processor
	enableHealth  bool
	behindProxies uint8
}

// NewServer creates a new Server bound to hooks (an immutable,
// read-only snapshot) and proc.
func NewServer(h *renderer.Renderer, cfg *Config, hooks map[string]*hook.Hook, proc Processor) (*Server, error) {
	behindProxies, err := cfg.behindProxies()
	if err != nil {
		return nil, err
	}

	return &Server{
		h:             h,
		hooks:         hooks,
		processor:     proc,
		enableHealth:  cfg.EnableHealth,
		behindProxies: behindProxies,
	}, nil
}

// Routes creates the ServeMux for every route this server supports.
func (s *Server) Routes(ctx context.Context) http.Handler {
	logger := logging.FromContext(ctx)
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", healthcheck.HandleHTTPHealthCheck())
	mux.Handle("GET /hook/{name}", s.handleHook())
	mux.Handle("POST /hook/{name}", s.handleHook())
	mux.Handle("GET /health", s.handleHealth())
	mux.HandleFunc("/", s.handleNotFound)

	return logging.HTTPInterceptor(logger, "")(mux)
}
