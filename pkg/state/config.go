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

// Package state holds Fisher's process-wide State handle: a cheap to
// clone, safe to share reference optionally backed by Redis.
package state

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
)

// Config defines the optional Redis backing for State. When Host is
// empty, State operates purely in-memory.
type Config struct {
	Host string `env:"FISHER_REDIS_HOST"`
	Port string `env:"FISHER_REDIS_PORT,default=6379"`
}

// ToFlags binds the config to a CLI flag set.
func (c *Config) ToFlags(set *cli.FlagSet) {
	f := set.NewSection("State Options")
	f.StringVar(&cli.StringVar{
		Name:   "redis-host",
		Target: &c.Host,
		EnvVar: "FISHER_REDIS_HOST",
		Usage:  "Redis host backing the shared State handle. If unset, State is in-memory only.",
	})
	f.StringVar(&cli.StringVar{
		Name:    "redis-port",
		Target:  &c.Port,
		EnvVar:  "FISHER_REDIS_PORT",
		Default: "6379",
		Usage:   "Redis port backing the shared State handle.",
	})
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	return newConfig(ctx, envconfig.OsLookuper())
}

func newConfig(ctx context.Context, lu envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(lu)); err != nil {
		return nil, fmt.Errorf("failed to parse state config: %w", err)
	}
	return &cfg, nil
}

// Enabled reports whether Redis backing was configured.
func (c *Config) Enabled() bool {
	return c.Host != ""
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
