// Package scheduler wires up the cron job that periodically runs a batch
// pass over the unprocessed backlog.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/jonathan/job-discovery/internal/pipeline"
)

// tickGuardKey is the Redis key multiple agent replicas race on per tick.
const tickGuardKey = "job-discovery:batch-tick"

// BatchRunner triggers one promotion pass over the backlog.
type BatchRunner interface {
	RunBatch(ctx context.Context, opts pipeline.BatchOptions) (*pipeline.BatchResult, error)
}

// Scheduler wraps robfig/cron and manages the recurring batch loop.
type Scheduler struct {
	cron   *cron.Cron
	runner BatchRunner
	rdb    *redis.Client // nil disables the replica tick guard
	spec   string        // cron spec, e.g. "@every 30m"
	opts   pipeline.BatchOptions
}

// New creates a Scheduler firing on the given cron spec. rdb may be nil when
// the agent runs as a single replica.
func New(runner BatchRunner, rdb *redis.Client, spec string, opts pipeline.BatchOptions) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.DefaultLogger)),
		runner: runner,
		rdb:    rdb,
		spec:   spec,
		opts:   opts,
	}
}

// Start registers the job and starts the scheduler. Also runs one batch pass
// immediately so the backlog drains without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runBatch(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runBatch(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// runBatch runs one batch pass, skipping the tick when another replica
// claimed it first.
func (s *Scheduler) runBatch(ctx context.Context) {
	if !s.claimTick(ctx) {
		log.Println("[scheduler] Tick claimed by another replica — skipping")
		return
	}

	log.Println("[scheduler] Batch cycle started")

	result, err := s.runner.RunBatch(ctx, s.opts)
	if err != nil {
		log.Printf("[scheduler] Batch error: %v", err)
		return
	}

	log.Printf("[scheduler] Batch cycle complete: processed=%d failed=%d skipped=%d total=%d",
		result.Processed, result.Failed, result.Skipped, result.Total)
}

// claimTick is a best-effort SetNX guard so only one replica runs a given
// tick. Redis being unavailable degrades to running the batch: the pipeline
// itself is idempotent, duplicate passes just waste work.
func (s *Scheduler) claimTick(ctx context.Context) bool {
	if s.rdb == nil {
		return true
	}

	ok, err := s.rdb.SetNX(ctx, tickGuardKey, time.Now().UTC().Format(time.RFC3339), time.Minute).Result()
	if err != nil {
		log.Printf("[scheduler] Tick guard unavailable, running anyway: %v", err)
		return true
	}
	return ok
}
