// Package pipeline promotes discovered jobs into canonical job records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-discovery/internal/db"
	"github.com/jonathan/job-discovery/internal/fetch"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	FindUnprocessed(ctx context.Context, q db.UnprocessedQuery) ([]db.DiscoveredJob, int, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id, jobID uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID, message string) error
	GetJobByExternalID(ctx context.Context, externalID string) (*db.Job, error)
	UpsertJob(ctx context.Context, input *db.JobUpsert) (*db.Job, error)
}

// DetailFetcher retrieves the full detail page for a discovered job.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, url, externalID string) (*fetch.JobDetails, error)
}

// Enricher schedules post-promotion enrichment. Dispatch must not block and
// its failures must never affect promotion state.
type Enricher interface {
	Dispatch(job *db.Job, extraction, embedding bool)
}

// Outcome classifies the result of processing one discovered job.
type Outcome int

const (
	OutcomeProcessed Outcome = iota // canonical job created via detail fetch
	OutcomeSkipped                  // linked to a pre-existing canonical job
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Orchestrator runs the discovered-to-canonical promotion state machine.
type Orchestrator struct {
	store       Store
	fetcher     DetailFetcher
	fetchPolicy StagePolicy
	// scrapedBy is stamped on canonical jobs this pipeline creates
	scrapedBy string
}

// NewOrchestrator creates a promotion orchestrator.
func NewOrchestrator(store Store, fetcher DetailFetcher) *Orchestrator {
	return &Orchestrator{
		store:       store,
		fetcher:     fetcher,
		fetchPolicy: DetailFetchPolicy,
		scrapedBy:   "discovery-pipeline",
	}
}

// ProcessOne promotes a single discovered job. On success it returns the
// canonical job the record now points at; failures are recorded on the
// discovered row and the error is returned for the caller's tally.
func (o *Orchestrator) ProcessOne(ctx context.Context, discovered *db.DiscoveredJob) (Outcome, *db.Job, error) {
	if discovered.IsTerminal() {
		return OutcomeFailed, nil, fmt.Errorf("discovered job %s is %s and cannot be processed",
			discovered.ID, discovered.ProcessingStatus)
	}

	if err := o.store.MarkProcessing(ctx, discovered.ID); err != nil {
		// The store itself is unreachable; recording a failure would not
		// fare better, so surface without touching the attempt counter.
		return OutcomeFailed, nil, fmt.Errorf("failed to claim discovered job %s: %w", discovered.ID, err)
	}

	outcome, job, err := o.promote(ctx, discovered)
	if err != nil {
		log.Printf("[pipeline] processing failed for %s (%s): %v",
			discovered.ExternalID, discovered.ID, err)
		if rerr := o.store.RecordFailure(ctx, discovered.ID, err.Error()); rerr != nil {
			log.Printf("[pipeline] failed to record failure for %s: %v", discovered.ID, rerr)
		}
		return OutcomeFailed, nil, err
	}

	if err := o.store.MarkCompleted(ctx, discovered.ID, job.ID); err != nil {
		log.Printf("[pipeline] failed to mark %s completed: %v", discovered.ID, err)
		if rerr := o.store.RecordFailure(ctx, discovered.ID, err.Error()); rerr != nil {
			log.Printf("[pipeline] failed to record failure for %s: %v", discovered.ID, rerr)
		}
		return OutcomeFailed, nil, err
	}

	log.Printf("[pipeline] %s %s -> job %s", outcome, discovered.ExternalID, job.ID)
	return outcome, job, nil
}

// promote runs the steps between claiming and completion. Any error returned
// here counts as one processing attempt.
func (o *Orchestrator) promote(ctx context.Context, discovered *db.DiscoveredJob) (Outcome, *db.Job, error) {
	// A canonical job may already exist from an earlier run or another
	// source; short-circuit to keep reprocessing idempotent.
	existing, err := o.store.GetJobByExternalID(ctx, discovered.ExternalID)
	if err != nil {
		return OutcomeFailed, nil, fmt.Errorf("failed to look up canonical job: %w", err)
	}
	if existing != nil {
		return OutcomeSkipped, existing, nil
	}

	var details *fetch.JobDetails
	err = o.fetchPolicy.Run(ctx, func(ctx context.Context) error {
		d, ferr := o.fetcher.FetchDetails(ctx, discovered.URL, discovered.ExternalID)
		if ferr != nil {
			// A 404 or malformed URL will not get better on the next
			// attempt; don't burn the fetch budget on it.
			var fe *fetch.Error
			if errors.As(ferr, &fe) && !fe.Retryable {
				return Permanent(ferr)
			}
			return ferr
		}
		if d == nil {
			return fmt.Errorf("detail fetch returned no result for %s", discovered.ExternalID)
		}
		details = d
		return nil
	})
	if err != nil {
		return OutcomeFailed, nil, err
	}

	job, err := o.store.UpsertJob(ctx, buildJobUpsert(discovered, details, o.scrapedBy))
	if err != nil {
		return OutcomeFailed, nil, fmt.Errorf("failed to upsert canonical job: %w", err)
	}

	return OutcomeProcessed, job, nil
}

// buildJobUpsert merges fetched detail content with discovered-record
// fallbacks. Detail pages often lack structured fields the board listing had.
func buildJobUpsert(discovered *db.DiscoveredJob, details *fetch.JobDetails, scrapedBy string) *db.JobUpsert {
	title := details.Title
	if title == "" {
		title = discovered.Title
	}
	company := details.Company
	if company == "" {
		company = discovered.Company
	}

	url := details.FinalURL
	if url == "" {
		url = discovered.URL
	}

	location := details.Location
	if location == nil {
		location = discovered.Location
	}

	var postedAt *time.Time
	if details.PostedDate != nil {
		postedAt = db.ParsePostedDate(*details.PostedDate)
	}
	if postedAt == nil && discovered.PostedDate != nil {
		postedAt = db.ParsePostedDate(*discovered.PostedDate)
	}

	return &db.JobUpsert{
		ExternalID:     discovered.ExternalID,
		URL:            url,
		Title:          title,
		Company:        company,
		Description:    details.Description,
		Location:       location,
		Salary:         details.Salary,
		EmploymentType: discovered.EmploymentType,
		PostedAt:       postedAt,
		ScrapedBy:      &scrapedBy,
		RawData:        details.RawData,
	}
}
