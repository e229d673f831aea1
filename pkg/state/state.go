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

package state

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sethvargo/go-retry"
)

// State is the process-wide key/value handle the processor reads and
// writes for per-delivery bookkeeping. It is cheap to copy and safe to share:
// the optional Redis client is itself goroutine-safe, so State only
// wraps a pointer to it plus an in-memory fallback map guarded by its
// own mutex.
type State struct {
	redis *redis.Client
	mem   *memStore
}

// New connects (with retry) if cfg enables Redis backing, or returns
// an in-memory-only State otherwise. Retry applies only to this
// startup connection attempt — script executions are never retried.
func New(ctx context.Context, cfg *Config) (*State, error) {
	if !cfg.Enabled() {
		return &State{mem: newMemStore()}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.addr()})

	b := retry.NewExponential(100 * time.Millisecond)
	b = retry.WithMaxRetries(5, b)

	if err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(fmt.Errorf("pinging redis: %w", err))
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connecting to state store: %w", err)
	}

	return &State{redis: client}, nil
}

// Clone returns a shallow copy sharing the same backing store. Safe
// to hand to every worker goroutine.
func (s *State) Clone() *State {
	return &State{redis: s.redis, mem: s.mem}
}

// Get returns the value stored at key, or ("", false) if absent.
func (s *State) Get(ctx context.Context, key string) (string, bool, error) {
	if s.redis != nil {
		v, err := s.redis.Get(ctx, key).Result()
		if err == redis.Nil {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("state: get %q: %w", key, err)
		}
		return v, true, nil
	}
	return s.mem.get(key)
}

// Set stores value at key.
func (s *State) Set(ctx context.Context, key, value string) error {
	if s.redis != nil {
		if err := s.redis.Set(ctx, key, value, 0).Err(); err != nil {
			return fmt.Errorf("state: set %q: %w", key, err)
		}
		return nil
	}
	s.mem.set(key, value)
	return nil
}

// Close releases the backing Redis connection, if any.
func (s *State) Close() error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return fmt.Errorf("state: closing redis client: %w", err)
		}
	}
	return nil
}
