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

// Package processor is the concurrency core: a bounded worker pool
// fronted by a single dispatcher goroutine that owns the FIFO queue
// and the active/queued accounting with no locks.
package processor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/abcxyz/pkg/logging"

	"github.com/fisherhq/fisher/pkg/env"
	"github.com/fisherhq/fisher/pkg/hook"
	"github.com/fisherhq/fisher/pkg/providers"
	"github.com/fisherhq/fisher/pkg/state"
)

// Job is one unit of work: a request that a Hook's Validate has
// already classified as ExecuteHook, bound to the provider that
// accepted it.
type Job struct {
	ID       uuid.UUID
	HookName string
	Hook     *hook.Hook
	Request  providers.Request
	Provider providers.Provider
}

// HealthDetails is a point-in-time snapshot of the dispatcher's
// accounting, returned in response to a HealthStatus input.
type HealthDetails struct {
	ActiveJobs int
	QueueSize  int
}

// input is the ProcessorInput tagged variant: exactly one field set.
type input struct {
	job         *Job
	healthReply chan HealthDetails
	jobEnded    *jobEnded
	stop        bool
}

type jobEnded struct {
	workerIdx int
}

// Processor owns the dispatcher goroutine and the fixed pool of
// worker goroutines. The zero value is not usable; construct with
// Start.
type Processor struct {
	in       chan input
	stopped  chan struct{}
	tempRoot string
	state    *state.State
}

// Start boots the dispatcher and maxThreads worker goroutines, bound
// to hooks (an immutable, read-only snapshot shared by value across
// workers — callers must not mutate it after Start returns). st may be
// nil; when set, runJob uses it to record and skip already-processed
// delivery IDs. It is not passed to the script's environment.
func Start(ctx context.Context, maxThreads uint16, hooks map[string]*hook.Hook, st *state.State) (*Processor, error) {
	if maxThreads == 0 {
		return nil, fmt.Errorf("processor: max_threads must be greater than zero")
	}

	tempRoot, err := os.MkdirTemp("", "fisher-jobs-")
	if err != nil {
		return nil, fmt.Errorf("processor: creating job temp root: %w", err)
	}

	p := &Processor{
		in:       make(chan input),
		stopped:  make(chan struct{}),
		tempRoot: tempRoot,
		state:    st,
	}

	n := int(maxThreads)
	workerJobs := make([]chan *Job, n)
	free := make(chan int, n)
	for i := 0; i < n; i++ {
		workerJobs[i] = make(chan *Job)
		free <- i
	}

	for i := 0; i < n; i++ {
		go p.runWorker(ctx, i, workerJobs[i], hooks)
	}

	go p.dispatch(ctx, workerJobs, free)

	return p, nil
}

// Submit enqueues a job for execution.
func (p *Processor) Submit(j *Job) {
	p.in <- input{job: j}
}

// Health requests a HealthDetails snapshot from the dispatcher.
func (p *Processor) Health() HealthDetails {
	reply := make(chan HealthDetails, 1)
	p.in <- input{healthReply: reply}
	return <-reply
}

// Stop signals the dispatcher to drain and exit, and blocks until
// every worker has finished its current job. A second call is a
// no-op.
func (p *Processor) Stop() {
	select {
	case p.in <- input{stop: true}:
	case <-p.stopped:
		return
	}
	<-p.stopped
	os.RemoveAll(p.tempRoot)
}

func (p *Processor) dispatch(ctx context.Context, workerJobs []chan *Job, free chan int) {
	logger := logging.FromContext(ctx)

	var queue []*Job
	active := 0
	stopping := false

	maybeFinish := func() bool {
		if stopping && active == 0 {
			for _, ch := range workerJobs {
				close(ch)
			}
			close(p.stopped)
			return true
		}
		return false
	}

	for in := range p.in {
		switch {
		case in.job != nil:
			if stopping {
				logger.WarnContext(ctx, "dropping job submitted after stop", "hook", in.job.HookName)
				continue
			}
			select {
			case idx := <-free:
				workerJobs[idx] <- in.job
				active++
			default:
				queue = append(queue, in.job)
			}

		case in.healthReply != nil:
			in.healthReply <- HealthDetails{ActiveJobs: active, QueueSize: len(queue)}

		case in.jobEnded != nil:
			active--
			if len(queue) > 0 {
				next := queue[0]
				queue = queue[1:]
				workerJobs[in.jobEnded.workerIdx] <- next
				active++
			} else {
				free <- in.jobEnded.workerIdx
			}
			if maybeFinish() {
				return
			}

		case in.stop:
			stopping = true
			if maybeFinish() {
				return
			}
		}
	}
}

func (p *Processor) runWorker(ctx context.Context, idx int, jobs chan *Job, hooks map[string]*hook.Hook) {
	logger := logging.FromContext(ctx)

	for j := range jobs {
		if err := p.runJob(ctx, j, hooks); err != nil {
			logger.ErrorContext(ctx, "job execution failed", "hook", j.HookName, "job_id", j.ID, "error", err)
		}
		p.in <- input{jobEnded: &jobEnded{workerIdx: idx}}
	}
}

func (p *Processor) runJob(ctx context.Context, j *Job, hooks map[string]*hook.Hook) error {
	logger := logging.FromContext(ctx)

	jobDir := filepath.Join(p.tempRoot, j.ID.String())
	if err := os.MkdirAll(jobDir, 0o700); err != nil {
		return fmt.Errorf("creating job directory: %w", err)
	}
	defer os.RemoveAll(jobDir)

	builder := env.NewBuilder(jobDir)
	if err := j.Provider.BuildEnv(j.Request, builder); err != nil {
		return fmt.Errorf("building environment: %w", err)
	}
	defer builder.Close()

	// A configured State lets a provider's delivery ID double as an
	// idempotency key: a delivery already recorded as run is skipped
	// rather than re-executed.
	if p.state != nil {
		if deliveryID, ok := builder.Get("DELIVERY_ID"); ok && deliveryID != "" {
			key := "fisher:delivery:" + deliveryID
			if seen, ok, err := p.state.Get(ctx, key); err == nil && ok && seen == "done" {
				logger.InfoContext(ctx, "skipping already-processed delivery", "hook", j.HookName, "delivery_id", deliveryID)
				return nil
			}
			defer func() {
				if err := p.state.Set(ctx, key, "done"); err != nil {
					logger.WarnContext(ctx, "failed to record delivery in state", "hook", j.HookName, "delivery_id", deliveryID, "error", err)
				}
			}()
		}
	}

	cmd := exec.CommandContext(ctx, j.Hook.ScriptPath)
	cmd.Dir = jobDir
	cmd.Env = append(os.Environ(), builder.Env()...)

	runErr := cmd.Run()
	success := runErr == nil

	if j.Request.IsWeb() && j.Provider.ShouldTriggerStatusHooks(j.Request) {
		p.dispatchStatusEvent(j.HookName, success, hooks)
	}

	return runErr
}

// dispatchStatusEvent synthesizes a Status request for the hook that
// just finished and validates it against every configured hook,
// enqueuing a new Job for each that accepts it. Status requests never
// themselves trigger further status hooks.
func (p *Processor) dispatchStatusEvent(hookName string, success bool, hooks map[string]*hook.Hook) {
	req := providers.NewStatusRequest(&providers.StatusEvent{HookName: hookName, Success: success})

	for name, h := range hooks {
		rt, chosen, err := h.Validate(req)
		if err != nil || chosen == nil {
			continue
		}
		if rt != providers.ExecuteHook {
			continue
		}
		p.Submit(&Job{
			ID:       uuid.New(),
			HookName: name,
			Hook:     h,
			Request:  req,
			Provider: chosen.Provider,
		})
	}
}
