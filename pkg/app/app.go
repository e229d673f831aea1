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

// Package app wires the processor and the web front-end together and
// starts/stops them atomically: hooks are registered onto a Builder,
// then finalized once into a read-only snapshot both subsystems share.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/abcxyz/pkg/renderer"

	"github.com/fisherhq/fisher/pkg/hook"
	"github.com/fisherhq/fisher/pkg/processor"
	"github.com/fisherhq/fisher/pkg/state"
	"github.com/fisherhq/fisher/pkg/webhook"
)

// Builder accumulates hooks before the app starts, the same two-phase
// split the original AppFactory/RunningApp used: hooks may only be
// added while building, never after Start.
type Builder struct {
	maxThreads uint16
	hooks      map[string]*hook.Hook
	state      *state.State
}

// NewBuilder creates a Builder that will run the processor with
// maxThreads worker goroutines.
func NewBuilder(maxThreads uint16) *Builder {
	return &Builder{
		maxThreads: maxThreads,
		hooks:      make(map[string]*hook.Hook),
	}
}

// AddHook registers a loaded Hook under name.
func (b *Builder) AddHook(name string, h *hook.Hook) {
	b.hooks[name] = h
}

// SetState attaches the shared State handle the processor uses for
// per-delivery idempotency bookkeeping; it is not exposed to scripts.
// Optional: a Builder with no State runs every job without idempotency
// bookkeeping.
func (b *Builder) SetState(st *state.State) {
	b.state = st
}

// Start finalizes the hooks into a read-only snapshot and boots the
// processor and the web front-end against it. If the web front-end
// fails to construct, the processor that was already started is
// stopped before the error is returned, so Start never leaks a running
// processor on failure.
func (b *Builder) Start(ctx context.Context, r *renderer.Renderer, cfg *webhook.Config) (*App, error) {
	hooks := make(map[string]*hook.Hook, len(b.hooks))
	for name, h := range b.hooks {
		hooks[name] = h
	}

	proc, err := processor.Start(ctx, b.maxThreads, hooks, b.state)
	if err != nil {
		return nil, fmt.Errorf("starting processor: %w", err)
	}

	srv, err := webhook.NewServer(r, cfg, hooks, proc)
	if err != nil {
		proc.Stop()
		return nil, fmt.Errorf("starting web front-end: %w", err)
	}

	return &App{
		processor: proc,
		server:    srv,
		state:     b.state,
	}, nil
}

// App is a fully started Fisher instance: a processor and a web
// front-end sharing the same hook snapshot.
type App struct {
	processor *processor.Processor
	server    *webhook.Server
	state     *state.State
	stopped   bool
}

// Routes returns the web front-end's HTTP handler, for callers that
// drive their own *http.Server (e.g. abcxyz/pkg/serving.Server).
func (a *App) Routes(ctx context.Context) http.Handler {
	return a.server.Routes(ctx)
}

// Stop stops the processor, awaiting all in-flight jobs before
// returning. Idempotent: a second call is a no-op, mirroring
// ProcessorManager::stop's own re-entry guard.
func (a *App) Stop() {
	if a.stopped {
		return
	}
	a.stopped = true
	a.processor.Stop()
	if a.state != nil {
		a.state.Close()
	}
}
