// Package enrich runs post-promotion enrichment: structured extraction and
// embedding generation for canonical jobs. Enrichment is detached from the
// promotion pipeline; its failures are logged and never touch promotion state.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-discovery/internal/db"
	"github.com/jonathan/job-discovery/internal/llm"
	"github.com/jonathan/job-discovery/internal/schemas"
)

// Store is the persistence surface enrichment writes through.
type Store interface {
	SaveExtraction(ctx context.Context, input *db.ExtractionInput) error
	SaveEmbedding(ctx context.Context, input *db.EmbeddingInput) error
}

// Service runs individual enrichment stages synchronously. Both stages are
// idempotent: re-running overwrites the previous result.
type Service struct {
	store  Store
	client llm.Client

	// SummaryVectors makes the extraction stage also derive an embedding
	// from the extracted summary. Best effort: a derivation failure is
	// logged and the extraction still succeeds. Leave false when the full
	// embedding stage runs anyway.
	SummaryVectors bool
}

// NewService creates an enrichment service.
func NewService(store Store, client llm.Client) *Service {
	return &Service{store: store, client: client}
}

// ExtractJob generates a structured extraction for the job, validates it
// against the extraction schema, and persists it with its cost metadata.
// Invalid model output is rejected before anything is written.
func (s *Service) ExtractJob(ctx context.Context, job *db.Job) error {
	input := llm.BuildJobExtractionInput(job.Description, job.Title, job.Company)
	prompt := llm.BuildExtractionPrompt(llm.JobExtractionSchema(), input)

	raw, usage, err := s.client.GenerateJSON(ctx, prompt)
	if err != nil {
		return fmt.Errorf("extraction call failed: %w", err)
	}

	if err := schemas.ValidateJobExtraction(raw); err != nil {
		return fmt.Errorf("extraction output rejected: %w", err)
	}

	var extracted map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &extracted); err != nil {
		return fmt.Errorf("failed to parse extraction output: %w", err)
	}

	if err := s.store.SaveExtraction(ctx, &db.ExtractionInput{
		JobID:        job.ID,
		Extracted:    extracted,
		Model:        s.client.ExtractionModel(),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      usage.CostUSD,
	}); err != nil {
		return err
	}

	if s.SummaryVectors {
		if summary, ok := extracted["summary"].(string); ok && summary != "" {
			if err := s.embedText(ctx, job.ID, summary); err != nil {
				log.Printf("[enrich] summary vector derivation failed for job %s: %v", job.ID, err)
			}
		}
	}

	return nil
}

// EmbedJob generates an embedding for the job's content and writes it onto
// the canonical record.
func (s *Service) EmbedJob(ctx context.Context, job *db.Job) error {
	text := EmbeddingText(job)
	if text == "" {
		return fmt.Errorf("job %s has no content to embed", job.ID)
	}
	return s.embedText(ctx, job.ID, text)
}

func (s *Service) embedText(ctx context.Context, jobID uuid.UUID, text string) error {
	vector, usage, err := s.client.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding call failed: %w", err)
	}
	if len(vector) == 0 {
		return fmt.Errorf("embedding call returned an empty vector")
	}

	return s.store.SaveEmbedding(ctx, &db.EmbeddingInput{
		JobID:       jobID,
		Vector:      vector,
		Model:       s.client.EmbeddingModel(),
		InputTokens: usage.InputTokens,
		CostUSD:     usage.CostUSD,
	})
}

// EmbeddingText assembles the text an embedding represents: title and company
// as context lines, then the full description.
func EmbeddingText(job *db.Job) string {
	var sb strings.Builder
	if job.Title != "" {
		sb.WriteString(job.Title + "\n")
	}
	if job.Company != "" {
		sb.WriteString(job.Company + "\n")
	}
	if sb.Len() > 0 && job.Description != "" {
		sb.WriteString("\n")
	}
	sb.WriteString(job.Description)
	return strings.TrimSpace(sb.String())
}
