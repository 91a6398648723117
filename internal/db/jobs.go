package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, external_id, content_hash, url, title, company, description,
	        location, salary, employment_type, posted_at, scraped_by, raw_data,
	        created_at, updated_at`

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var rawJSON []byte

	err := row.Scan(&j.ID, &j.ExternalID, &j.ContentHash, &j.URL, &j.Title, &j.Company,
		&j.Description, &j.Location, &j.Salary, &j.EmploymentType, &j.PostedAt,
		&j.ScrapedBy, &rawJSON, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if rawJSON != nil {
		_ = json.Unmarshal(rawJSON, &j.RawData)
	}

	return &j, nil
}

// GetJobByExternalID retrieves a canonical job by its external id. Returns
// (nil, nil) when no canonical record exists yet.
func (db *DB) GetJobByExternalID(ctx context.Context, externalID string) (*Job, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE external_id = $1`,
		externalID,
	)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// GetJobByID retrieves a canonical job by its row id
func (db *DB) GetJobByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		id,
	)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// UpsertJob creates the canonical job for an external id, or refreshes its
// content on conflict. Repeated promotion attempts for the same external id
// land on the same row, which keeps the orchestrator idempotent.
func (db *DB) UpsertJob(ctx context.Context, input *JobUpsert) (*Job, error) {
	var rawJSON []byte
	var err error
	if input.RawData != nil {
		rawJSON, err = json.Marshal(input.RawData)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal raw data: %w", err)
		}
	}

	contentHash := HashURL(input.URL)

	row := db.pool.QueryRow(ctx,
		`INSERT INTO jobs (external_id, content_hash, url, title, company, description,
		                   location, salary, employment_type, posted_at, scraped_by, raw_data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (external_id) DO UPDATE SET
		     content_hash = $2,
		     url = $3,
		     title = $4,
		     company = $5,
		     description = $6,
		     location = $7,
		     salary = $8,
		     employment_type = $9,
		     posted_at = $10,
		     scraped_by = $11,
		     raw_data = $12,
		     updated_at = NOW()
		 RETURNING `+jobColumns,
		input.ExternalID, contentHash, input.URL, input.Title, input.Company,
		input.Description, input.Location, input.Salary, input.EmploymentType,
		input.PostedAt, input.ScrapedBy, rawJSON,
	)

	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert job %s: %w", input.ExternalID, err)
	}
	return j, nil
}
