package pipeline

import (
	"context"
	"log"

	"github.com/jonathan/job-discovery/internal/db"
)

// DefaultBatchSize is how many eligible jobs one batch pass pulls when the
// caller does not say otherwise.
const DefaultBatchSize = 50

// BatchOptions configures one batch pass over the unprocessed backlog.
type BatchOptions struct {
	BatchSize   int    // selection page size; defaults to DefaultBatchSize
	Limit       int    // hard cap on jobs processed this pass; 0 means batch size
	Source      string // restrict to one discovery source
	MinAgeHours int    // skip jobs discovered more recently than this
	Priority    bool   // true: highest score first, false: oldest first

	TriggerExtraction bool
	TriggerEmbedding  bool
}

// BatchResult tallies one batch pass.
type BatchResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Total     int `json:"total"`
}

// Driver runs batch passes over the unprocessed backlog, one job at a time.
// Jobs are processed sequentially: a failure is recorded on its row and the
// pass moves on, so one bad posting never stalls the batch.
type Driver struct {
	store        Store
	orchestrator *Orchestrator
	enricher     Enricher // nil disables enrichment dispatch
}

// NewDriver creates a batch driver. enricher may be nil.
func NewDriver(store Store, orchestrator *Orchestrator, enricher Enricher) *Driver {
	return &Driver{
		store:        store,
		orchestrator: orchestrator,
		enricher:     enricher,
	}
}

// RunBatch selects eligible discovered jobs and promotes each in turn.
// An empty selection returns an all-zero result without any writes.
func (d *Driver) RunBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	fetchLimit := batchSize
	if opts.Limit > fetchLimit {
		fetchLimit = opts.Limit
	}

	jobs, _, err := d.store.FindUnprocessed(ctx, db.UnprocessedQuery{
		Limit:           fetchLimit,
		Source:          opts.Source,
		MinAgeHours:     opts.MinAgeHours,
		OrderByPriority: opts.Priority,
	})
	if err != nil {
		return nil, err
	}

	if opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}

	result := &BatchResult{Total: len(jobs)}
	if len(jobs) == 0 {
		log.Printf("[pipeline] batch: nothing to process")
		return result, nil
	}

	log.Printf("[pipeline] batch: processing %d discovered jobs (priority=%t)", len(jobs), opts.Priority)

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome, job, err := d.orchestrator.ProcessOne(ctx, &jobs[i])
		switch outcome {
		case OutcomeProcessed:
			result.Processed++
		case OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		if err != nil {
			continue
		}

		if d.enricher != nil && job != nil && (opts.TriggerExtraction || opts.TriggerEmbedding) {
			d.enricher.Dispatch(job, opts.TriggerExtraction, opts.TriggerEmbedding)
		}
	}

	log.Printf("[pipeline] batch done: processed=%d failed=%d skipped=%d total=%d",
		result.Processed, result.Failed, result.Skipped, result.Total)
	return result, nil
}
