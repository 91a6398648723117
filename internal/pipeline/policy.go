package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StagePolicy bounds one collaborator call: per-attempt timeout plus a
// transient retry budget with exponential backoff. This is the inner of the
// two retry budgets; RecordFailure keeps the outer, cross-pass one.
type StagePolicy struct {
	Name           string
	Timeout        time.Duration // 0 means no per-attempt timeout
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration // 0 means uncapped
	Coefficient    float64
}

// Per-stage policies for the pipeline's collaborator calls
var (
	// SaveDiscoveredPolicy covers discovery-store writes
	SaveDiscoveredPolicy = StagePolicy{
		Name:           "save-discovered",
		Timeout:        5 * time.Minute,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Coefficient:    2,
	}

	// DetailFetchPolicy covers the detail-fetch/scrape collaborator
	DetailFetchPolicy = StagePolicy{
		Name:           "detail-fetch",
		Timeout:        10 * time.Minute,
		MaxAttempts:    3,
		InitialBackoff: 5 * time.Second,
		Coefficient:    2,
	}

	// EmbeddingPolicy covers embedding generation
	EmbeddingPolicy = StagePolicy{
		Name:           "embedding",
		Timeout:        5 * time.Minute,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Coefficient:    2,
	}

	// ExtractionPolicy covers structured extraction; no per-attempt timeout
	// beyond the caller's context
	ExtractionPolicy = StagePolicy{
		Name:           "extraction",
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Coefficient:    2,
	}
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying; Run stops its attempt loop
// immediately when fn returns one.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Run invokes fn under the policy, retrying transient failures until the
// attempt budget is exhausted. A timed-out attempt counts against the budget
// like any other failure; an error wrapped with Permanent ends the loop at
// once.
func (p StagePolicy) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	backoff := p.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx := ctx
		cancel := func() {}
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}

		lastErr = fn(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s failed: %w", p.Name, perm.err)
		}

		if attempt == attempts {
			break
		}
		if err := sleepCtx(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, p.Coefficient, p.MaxBackoff)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", p.Name, attempts, lastErr)
}

func nextBackoff(current time.Duration, coefficient float64, max time.Duration) time.Duration {
	if coefficient <= 1 {
		return current
	}
	next := time.Duration(float64(current) * coefficient)
	if max > 0 && next > max {
		next = max
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
