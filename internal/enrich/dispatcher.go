package enrich

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-discovery/internal/db"
	"github.com/jonathan/job-discovery/internal/pipeline"
)

// DefaultConcurrency bounds how many enrichment tasks run at once.
const DefaultConcurrency = 4

// Dispatcher runs enrichment as detached background tasks. Dispatch never
// blocks the caller beyond the concurrency gate, and task failures flow to a
// logged error channel instead of the promotion pipeline.
type Dispatcher struct {
	service       *Service
	ctx           context.Context
	group         *errgroup.Group
	errs          chan error
	drained       chan struct{}
	extractPolicy pipeline.StagePolicy
	embedPolicy   pipeline.StagePolicy
}

// NewDispatcher creates a dispatcher whose tasks run under ctx. Cancelling
// ctx aborts in-flight tasks; call Wait before shutdown to let them finish.
func NewDispatcher(ctx context.Context, service *Service, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	group := &errgroup.Group{}
	group.SetLimit(concurrency)

	d := &Dispatcher{
		service:       service,
		ctx:           ctx,
		group:         group,
		errs:          make(chan error, 64),
		drained:       make(chan struct{}),
		extractPolicy: pipeline.ExtractionPolicy,
		embedPolicy:   pipeline.EmbeddingPolicy,
	}
	go d.drain()
	return d
}

func (d *Dispatcher) drain() {
	for err := range d.errs {
		log.Printf("[enrich] %v", err)
	}
	close(d.drained)
}

// Dispatch schedules the requested stages for a job. The job is copied so
// later mutations by the caller cannot race the background task.
func (d *Dispatcher) Dispatch(job *db.Job, extraction, embedding bool) {
	if job == nil || (!extraction && !embedding) {
		return
	}
	jobCopy := *job

	d.group.Go(func() error {
		if extraction {
			err := d.extractPolicy.Run(d.ctx, func(ctx context.Context) error {
				return d.service.ExtractJob(ctx, &jobCopy)
			})
			if err != nil {
				d.report(err)
			}
		}
		if embedding {
			err := d.embedPolicy.Run(d.ctx, func(ctx context.Context) error {
				return d.service.EmbedJob(ctx, &jobCopy)
			})
			if err != nil {
				d.report(err)
			}
		}
		// Failures were already reported; returning nil keeps one bad job
		// from cancelling the group's other tasks.
		return nil
	})
}

func (d *Dispatcher) report(err error) {
	select {
	case d.errs <- err:
	default:
		log.Printf("[enrich] %v", err)
	}
}

// Wait blocks until all dispatched tasks finish and their errors are logged.
// The dispatcher must not be used after Wait returns.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
	close(d.errs)
	<-d.drained
}
