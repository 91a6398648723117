package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const discoveredJobColumns = `id, external_id, url, title, company, location, employment_type,
	        work_type, is_promoted, is_easy_apply, has_verified, insight, posted_date,
	        company_logo_url, discovered_by, discovery_source, discovery_url, raw_data,
	        priority_score, discovered_at, processed_at, processed_job_id,
	        processing_status, processing_attempts, last_process_error, updated_at`

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiscoveredJob(row rowScanner) (*DiscoveredJob, error) {
	var d DiscoveredJob
	var rawJSON []byte

	err := row.Scan(&d.ID, &d.ExternalID, &d.URL, &d.Title, &d.Company, &d.Location,
		&d.EmploymentType, &d.WorkType, &d.IsPromoted, &d.IsEasyApply, &d.HasVerified,
		&d.Insight, &d.PostedDate, &d.CompanyLogoURL, &d.DiscoveredBy, &d.DiscoverySource,
		&d.DiscoveryURL, &rawJSON, &d.PriorityScore, &d.DiscoveredAt, &d.ProcessedAt,
		&d.ProcessedJobID, &d.ProcessingStatus, &d.ProcessingAttempts, &d.LastProcessError,
		&d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if rawJSON != nil {
		_ = json.Unmarshal(rawJSON, &d.RawData)
	}

	return &d, nil
}

// ExistingExternalIDs returns which of the given external ids already have a
// discovered_jobs row. The snapshot is taken before writing, so counts built
// on it are only accurate absent concurrent writers.
func (db *DB) ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return existing, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT external_id FROM discovered_jobs WHERE external_id = ANY($1)`,
		externalIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot existing external ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan external id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// UpsertDiscoveredJob inserts a discovered job or, on external-id conflict,
// overwrites its mutable descriptive fields and recomputed priority score.
// First insert initializes discovered_at, status pending, attempts 0; the
// conflict path never touches promotion bookkeeping.
func (db *DB) UpsertDiscoveredJob(ctx context.Context, input *DiscoveredJobUpsert) error {
	var rawJSON []byte
	var err error
	if input.RawData != nil {
		rawJSON, err = json.Marshal(input.RawData)
		if err != nil {
			return fmt.Errorf("failed to marshal raw data: %w", err)
		}
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO discovered_jobs (external_id, url, title, company, location,
		                              employment_type, work_type, is_promoted, is_easy_apply,
		                              has_verified, insight, posted_date, company_logo_url,
		                              discovered_by, discovery_source, discovery_url, raw_data,
		                              priority_score, processing_status, processing_attempts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 'pending', 0)
		 ON CONFLICT (external_id) DO UPDATE SET
		     url = $2,
		     title = $3,
		     company = $4,
		     location = $5,
		     employment_type = $6,
		     work_type = $7,
		     is_promoted = $8,
		     is_easy_apply = $9,
		     has_verified = $10,
		     insight = $11,
		     posted_date = $12,
		     company_logo_url = $13,
		     discovered_by = COALESCE($14, discovered_jobs.discovered_by),
		     discovery_source = $15,
		     discovery_url = $16,
		     raw_data = $17,
		     priority_score = $18,
		     updated_at = NOW()`,
		input.ExternalID, input.URL, input.Title, input.Company, input.Location,
		input.EmploymentType, input.WorkType, input.IsPromoted, input.IsEasyApply,
		input.HasVerified, input.Insight, input.PostedDate, input.CompanyLogoURL,
		input.DiscoveredBy, input.DiscoverySource, input.DiscoveryURL, rawJSON,
		input.PriorityScore,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert discovered job %s: %w", input.ExternalID, err)
	}
	return nil
}

// GetDiscoveredJobByExternalID retrieves a discovered job by its external id
func (db *DB) GetDiscoveredJobByExternalID(ctx context.Context, externalID string) (*DiscoveredJob, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+discoveredJobColumns+` FROM discovered_jobs WHERE external_id = $1`,
		externalID,
	)
	d, err := scanDiscoveredJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get discovered job: %w", err)
	}
	return d, nil
}

// GetDiscoveredJobByID retrieves a discovered job by its row id
func (db *DB) GetDiscoveredJobByID(ctx context.Context, id uuid.UUID) (*DiscoveredJob, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+discoveredJobColumns+` FROM discovered_jobs WHERE id = $1`,
		id,
	)
	d, err := scanDiscoveredJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get discovered job: %w", err)
	}
	return d, nil
}

// UnprocessedQuery holds filters for selecting promotion candidates
type UnprocessedQuery struct {
	Limit           int
	Offset          int
	Source          string // restrict by discovery_source when non-empty
	MinAgeHours     int    // exclude jobs discovered more recently than this
	OrderByPriority bool   // true: priority_score DESC, false: discovered_at ASC
}

// FindUnprocessed returns eligible discovered jobs (never processed, status
// pending or queued) plus the total count matching the filter.
func (db *DB) FindUnprocessed(ctx context.Context, q UnprocessedQuery) ([]DiscoveredJob, int, error) {
	conditions := []string{
		"processed_at IS NULL",
		"processing_status IN ('pending', 'queued')",
	}
	var args []any
	argIndex := 1

	if q.Source != "" {
		conditions = append(conditions, fmt.Sprintf("discovery_source = $%d", argIndex))
		args = append(args, q.Source)
		argIndex++
	}
	if q.MinAgeHours > 0 {
		conditions = append(conditions, fmt.Sprintf("discovered_at <= NOW() - ($%d || ' hours')::interval", argIndex))
		args = append(args, q.MinAgeHours)
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM discovered_jobs %s", whereClause)
	if err := db.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count unprocessed jobs: %w", err)
	}

	// Secondary key keeps ordering stable within one call when scores tie
	orderBy := "discovered_at ASC, id ASC"
	if q.OrderByPriority {
		orderBy = "priority_score DESC, id ASC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT `+discoveredJobColumns+` FROM discovered_jobs %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		whereClause, orderBy, argIndex, argIndex+1,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list unprocessed jobs: %w", err)
	}
	defer rows.Close()

	var jobs []DiscoveredJob
	for rows.Next() {
		d, err := scanDiscoveredJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan discovered job: %w", err)
		}
		jobs = append(jobs, *d)
	}

	return jobs, total, rows.Err()
}

// MarkProcessing flips a discovered job to processing. This is a plain status
// update, not a lease: two concurrent drivers could both flip the same row.
func (db *DB) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE discovered_jobs SET processing_status = 'processing', updated_at = NOW()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark discovered job processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discovered job not found: %s", id)
	}
	return nil
}

// MarkCompleted links the discovered job to its canonical record and stamps
// processed_at. completed status, processed_at, and processed_job_id move
// together, keeping the completion invariant.
func (db *DB) MarkCompleted(ctx context.Context, id, jobID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE discovered_jobs SET
		     processing_status = 'completed',
		     processed_at = NOW(),
		     processed_job_id = $2,
		     last_process_error = NULL,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark discovered job completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discovered job not found: %s", id)
	}
	return nil
}

// RecordFailure increments the attempt counter and stores the error text.
// Below the attempt cap the status returns to pending so a later batch pass
// can retry; at the cap it becomes failed, which is terminal.
func (db *DB) RecordFailure(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE discovered_jobs SET
		     processing_attempts = processing_attempts + 1,
		     last_process_error = $2,
		     processing_status = CASE
		         WHEN processing_attempts + 1 >= $3 THEN 'failed'
		         ELSE 'pending'
		     END,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, message, MaxProcessingAttempts,
	)
	if err != nil {
		return fmt.Errorf("failed to record processing failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discovered job not found: %s", id)
	}
	return nil
}
