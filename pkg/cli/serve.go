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

// Package cli implements Fisher's command-line surface: the serve
// command that loads hooks from disk and runs the processor and web
// front-end until the process is asked to stop.
package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/renderer"
	"github.com/abcxyz/pkg/serving"

	"github.com/fisherhq/fisher/pkg/app"
	"github.com/fisherhq/fisher/pkg/hook"
	"github.com/fisherhq/fisher/pkg/providers"
	"github.com/fisherhq/fisher/pkg/state"
	"github.com/fisherhq/fisher/pkg/webhook"
)

var _ cli.Command = (*ServeCommand)(nil)

// ServeCommand loads every hook script in the configured hooks
// directory and runs Fisher's processor and web front-end against
// them until the context is canceled.
type ServeCommand struct {
	cli.BaseCommand

	testFlagSetOpts []cli.Option
	cfg             *webhook.Config
	stateCfg        *state.Config
}

func (c *ServeCommand) Desc() string {
	return `Start the Fisher webhook receiver`
}

func (c *ServeCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

Load hook scripts from the configured hooks directory and serve
webhook deliveries against them.`
}

func (c *ServeCommand) Flags() *cli.FlagSet {
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	c.cfg = &webhook.Config{}
	c.cfg.ToFlags(set)
	c.stateCfg = &state.Config{}
	c.stateCfg.ToFlags(set)
	return set
}

func (c *ServeCommand) Run(ctx context.Context, args []string) error {
	srv, mux, err := c.RunUnstarted(ctx, args)
	if err != nil {
		return err
	}
	return srv.StartHTTPHandler(ctx, mux)
}

// RunUnstarted parses flags, loads hooks, and starts the processor and
// web front-end, returning the bound *serving.Server and its handler
// without blocking on it serving requests. Split out from Run so tests
// can exercise the handler directly.
func (c *ServeCommand) RunUnstarted(ctx context.Context, args []string) (*serving.Server, http.Handler, error) {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	if extra := f.Args(); len(extra) > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %q", extra)
	}

	if err := c.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := logging.FromContext(ctx)

	maxThreads, err := c.cfg.Threads()
	if err != nil {
		return nil, nil, err
	}

	registry := providers.NewRegistry()
	builder := app.NewBuilder(maxThreads)

	hooks, err := loadHooksDir(c.cfg.HooksDir, registry)
	if err != nil {
		return nil, nil, fmt.Errorf("loading hooks directory: %w", err)
	}
	for name, h := range hooks {
		logger.DebugContext(ctx, "loaded hook", "name", name, "script", h.ScriptPath)
		builder.AddHook(name, h)
	}

	r, err := renderer.New(ctx, nil, renderer.WithOnError(func(err error) {
		logger.ErrorContext(ctx, "failed to render response", "error", err)
	}))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	st, err := state.New(ctx, c.stateCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start state store: %w", err)
	}
	builder.SetState(st)

	a, err := builder.Start(ctx, r, c.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start fisher: %w", err)
	}

	go func() {
		<-ctx.Done()
		a.Stop()
	}()

	_, port, err := net.SplitHostPort(c.cfg.BindAddress)
	if err != nil {
		port = c.cfg.BindAddress
	}

	srv, err := serving.New(port)
	if err != nil {
		a.Stop()
		return nil, nil, fmt.Errorf("failed to create serving infrastructure: %w", err)
	}

	return srv, a.Routes(ctx), nil
}

// loadHooksDir scans dir for executable files and loads each as a
// Hook, named after its base filename with any extension stripped.
// Scanning is not part of Fisher's validation/dispatch core; it is
// intentionally simple.
func loadHooksDir(dir string, registry *providers.Registry) (map[string]*hook.Hook, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading hooks directory %q: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	hooks := make(map[string]*hook.Hook, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", e.Name(), err)
		}
		if info.Mode()&0o111 == 0 {
			continue
		}

		name := e.Name()
		if ext := filepath.Ext(name); ext != "" {
			name = name[:len(name)-len(ext)]
		}

		scriptPath := filepath.Join(dir, e.Name())
		h, err := hook.Load(name, scriptPath, registry)
		if err != nil {
			return nil, fmt.Errorf("loading hook %q: %w", name, err)
		}
		hooks[name] = h
	}

	return hooks, nil
}
