package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ExtractionInput carries a structured extraction result and its cost metadata
type ExtractionInput struct {
	JobID        uuid.UUID
	Extracted    map[string]interface{}
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// SaveExtraction upserts the structured-extraction row for a job. Re-running
// the extraction stage overwrites the previous result, which keeps the stage
// idempotent at the storage layer.
func (db *DB) SaveExtraction(ctx context.Context, input *ExtractionInput) error {
	extractedJSON, err := json.Marshal(input.Extracted)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO job_extractions (job_id, extracted, model, input_tokens, output_tokens, cost_usd)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (job_id) DO UPDATE SET
		     extracted = $2,
		     model = $3,
		     input_tokens = $4,
		     output_tokens = $5,
		     cost_usd = $6,
		     updated_at = NOW()`,
		input.JobID, extractedJSON, input.Model, input.InputTokens, input.OutputTokens,
		input.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to save extraction for job %s: %w", input.JobID, err)
	}
	return nil
}

// GetExtractionByJobID retrieves the structured extraction for a job
func (db *DB) GetExtractionByJobID(ctx context.Context, jobID uuid.UUID) (*JobExtraction, error) {
	var e JobExtraction
	var extractedJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, job_id, extracted, model, input_tokens, output_tokens, cost_usd,
		        created_at, updated_at
		 FROM job_extractions WHERE job_id = $1`,
		jobID,
	).Scan(&e.ID, &e.JobID, &extractedJSON, &e.Model, &e.InputTokens, &e.OutputTokens,
		&e.CostUSD, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	if extractedJSON != nil {
		_ = json.Unmarshal(extractedJSON, &e.Extracted)
	}

	return &e, nil
}

// EmbeddingInput carries an embedding vector and its cost metadata
type EmbeddingInput struct {
	JobID       uuid.UUID
	Vector      []float32
	Model       string
	InputTokens int
	CostUSD     float64
}

// SaveEmbedding writes the embedding vector onto the jobs row. The vector
// column takes a pgvector literal through an explicit cast; typed record
// writes cannot express it, hence the raw write path.
func (db *DB) SaveEmbedding(ctx context.Context, input *EmbeddingInput) error {
	if len(input.Vector) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET
		     embedding = $2::vector,
		     embedding_model = $3,
		     embedding_tokens = $4,
		     embedding_cost_usd = $5,
		     updated_at = NOW()
		 WHERE id = $1`,
		input.JobID, VectorLiteral(input.Vector), input.Model, input.InputTokens,
		input.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to save embedding for job %s: %w", input.JobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job not found: %s", input.JobID)
	}
	return nil
}

// VectorLiteral formats a float vector as a pgvector input literal, e.g.
// "[0.1,0.2,0.3]".
func VectorLiteral(vector []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
