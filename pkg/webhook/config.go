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

// Package webhook is Fisher's HTTP front-end: it translates inbound
// requests into the neutral WebRequest model, asks the matching Hook
// to validate them, and renders the JSON response envelope.
package webhook

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sethvargo/go-envconfig"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
)

// Config defines the set of environment variables required to run
// Fisher's web front-end.
type Config struct {
	BindAddress   string `env:"FISHER_BIND_ADDRESS,default=0.0.0.0:8000"`
	HooksDir      string `env:"FISHER_HOOKS_DIR,required"`
	MaxThreads    string `env:"FISHER_MAX_THREADS,default=1"`
	EnableHealth  bool   `env:"FISHER_ENABLE_HEALTH,default=true"`
	BehindProxies string `env:"FISHER_BEHIND_PROXIES,default=0"`
}

// Validate validates the webhook config after load.
func (cfg *Config) Validate() error {
	if cfg.HooksDir == "" {
		return fmt.Errorf("FISHER_HOOKS_DIR is required")
	}
	if _, err := cfg.maxThreads(); err != nil {
		return err
	}
	if _, err := cfg.behindProxies(); err != nil {
		return err
	}
	return nil
}

// Threads parses MaxThreads, validated to fit uint16 and be nonzero by
// Validate. Exported for the cli package, which needs the parsed
// count to size the processor's worker pool.
func (cfg *Config) Threads() (uint16, error) {
	return cfg.maxThreads()
}

// maxThreads parses MaxThreads, validated to fit uint16 and be
// nonzero by Validate.
func (cfg *Config) maxThreads() (uint16, error) {
	num, err := strconv.ParseUint(cfg.MaxThreads, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("FISHER_MAX_THREADS must be an unsigned 16-bit integer: %w", err)
	}
	if num == 0 {
		return 0, fmt.Errorf("FISHER_MAX_THREADS must be greater than zero")
	}
	return uint16(num), nil
}

// behindProxies parses BehindProxies, the count of trusted reverse
// proxies whose X-Forwarded-For entries should be skipped. An empty
// value means zero.
func (cfg *Config) behindProxies() (uint8, error) {
	if cfg.BehindProxies == "" {
		return 0, nil
	}
	num, err := strconv.ParseUint(cfg.BehindProxies, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("FISHER_BEHIND_PROXIES must be an unsigned 8-bit integer: %w", err)
	}
	return uint8(num), nil
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	return newConfig(ctx, envconfig.OsLookuper())
}

func newConfig(ctx context.Context, lu envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(lu)); err != nil {
		return nil, fmt.Errorf("failed to parse webhook config: %w", err)
	}
	return &cfg, nil
}

// ToFlags binds the config to the [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("SERVER OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "bind-address",
		Target:  &cfg.BindAddress,
		EnvVar:  "FISHER_BIND_ADDRESS",
		Default: "0.0.0.0:8000",
		Usage:   `The address the server listens on.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "hooks-dir",
		Target: &cfg.HooksDir,
		EnvVar: "FISHER_HOOKS_DIR",
		Usage:  `Directory scanned for hook scripts.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "max-threads",
		Target:  &cfg.MaxThreads,
		EnvVar:  "FISHER_MAX_THREADS",
		Default: "1",
		Usage:   `Number of worker threads the processor runs.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:    "enable-health",
		Target:  &cfg.EnableHealth,
		EnvVar:  "FISHER_ENABLE_HEALTH",
		Default: true,
		Usage:   `Whether the /health endpoint is served.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "behind-proxies",
		Target:  &cfg.BehindProxies,
		EnvVar:  "FISHER_BEHIND_PROXIES",
		Default: "0",
		Usage:   `Number of trusted reverse proxies in front of Fisher, for X-Forwarded-For parsing.`,
	})

	return f
}
