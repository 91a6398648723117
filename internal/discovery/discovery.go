// Package discovery implements the deduplicating intake layer for discovered
// jobs: validation, priority scoring, and the batched bulk upsert.
package discovery

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/job-discovery/internal/db"
	"github.com/jonathan/job-discovery/internal/scoring"
)

// UpsertBatchSize bounds write pressure: inputs are processed in fixed-size
// batches rather than one statement per request.
const UpsertBatchSize = 50

// Store is the persistence surface the intake service needs
type Store interface {
	ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]bool, error)
	UpsertDiscoveredJob(ctx context.Context, input *db.DiscoveredJobUpsert) error
}

// JobInput is one intake record from an upstream discovery collaborator
type JobInput struct {
	ExternalID      string                 `json:"external_id" validate:"required"`
	URL             string                 `json:"url" validate:"required,url"`
	Title           string                 `json:"title"`
	Company         string                 `json:"company"`
	Location        *string                `json:"location,omitempty"`
	EmploymentType  *string                `json:"employment_type,omitempty"`
	WorkType        *string                `json:"work_type,omitempty"`
	IsPromoted      bool                   `json:"is_promoted"`
	IsEasyApply     bool                   `json:"is_easy_apply"`
	HasVerified     bool                   `json:"has_verified"`
	Insight         *string                `json:"insight,omitempty"`
	PostedDate      *string                `json:"posted_date,omitempty"`
	CompanyLogoURL  *string                `json:"company_logo_url,omitempty"`
	DiscoveredBy    *uuid.UUID             `json:"discovered_by,omitempty"`
	DiscoverySource string                 `json:"discovery_source" validate:"required"`
	DiscoveryURL    *string                `json:"discovery_url,omitempty"`
	RawData         map[string]interface{} `json:"raw_data,omitempty"`
}

// UpsertResult reports how many inputs were classified as new vs existing.
// Items whose individual upsert failed are absent from both counts.
type UpsertResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ValidationError indicates a rejected intake request. Nothing is persisted
// when validation fails.
type ValidationError struct {
	Index   int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid discovered job at index %d: %s %s", e.Index, e.Field, e.Message)
}

// Service performs validated, deduplicating bulk upserts of discovered jobs
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService creates an intake service backed by the given store
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		validate: validator.New(),
	}
}

// BulkUpsert validates all inputs, snapshots which external ids already
// exist, then upserts in batches of UpsertBatchSize. An individual upsert
// failure is logged and skipped without aborting its batch. The
// created/updated split is classified from the pre-write snapshot, so the
// counts are accurate only absent concurrent writers to the same ids.
func (s *Service) BulkUpsert(ctx context.Context, inputs []JobInput) (UpsertResult, error) {
	var result UpsertResult
	if len(inputs) == 0 {
		return result, nil
	}

	for i := range inputs {
		if err := s.validate.Struct(&inputs[i]); err != nil {
			return result, asValidationError(i, err)
		}
	}

	externalIDs := make([]string, len(inputs))
	for i, in := range inputs {
		externalIDs[i] = in.ExternalID
	}

	existing, err := s.store.ExistingExternalIDs(ctx, externalIDs)
	if err != nil {
		return result, fmt.Errorf("bulk upsert pre-check failed: %w", err)
	}

	for start := 0; start < len(inputs); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		for i := start; i < end; i++ {
			in := inputs[i]
			if err := s.store.UpsertDiscoveredJob(ctx, toUpsert(&in)); err != nil {
				log.Printf("[discovery] upsert failed for %s: %v", in.ExternalID, err)
				continue
			}
			if existing[in.ExternalID] {
				result.Updated++
			} else {
				result.Created++
			}
		}
	}

	return result, nil
}

// toUpsert converts an intake record into the store's upsert shape,
// recomputing the priority score on every write.
func toUpsert(in *JobInput) *db.DiscoveredJobUpsert {
	return &db.DiscoveredJobUpsert{
		ExternalID:      in.ExternalID,
		URL:             in.URL,
		Title:           in.Title,
		Company:         in.Company,
		Location:        in.Location,
		EmploymentType:  in.EmploymentType,
		WorkType:        in.WorkType,
		IsPromoted:      in.IsPromoted,
		IsEasyApply:     in.IsEasyApply,
		HasVerified:     in.HasVerified,
		Insight:         in.Insight,
		PostedDate:      in.PostedDate,
		CompanyLogoURL:  in.CompanyLogoURL,
		DiscoveredBy:    in.DiscoveredBy,
		DiscoverySource: in.DiscoverySource,
		DiscoveryURL:    in.DiscoveryURL,
		RawData:         in.RawData,
		PriorityScore:   ScoreInput(in),
	}
}

// ScoreInput computes the priority score for an intake record
func ScoreInput(in *JobInput) int {
	return scoring.Score(scoring.Signals{
		IsEasyApply: in.IsEasyApply,
		IsPromoted:  in.IsPromoted,
		HasVerified: in.HasVerified,
		Insight:     deref(in.Insight),
		PostedDate:  deref(in.PostedDate),
		WorkType:    deref(in.WorkType),
	})
}

func asValidationError(index int, err error) error {
	var verrs validator.ValidationErrors
	if ok := asValidatorErrors(err, &verrs); ok && len(verrs) > 0 {
		return &ValidationError{
			Index:   index,
			Field:   verrs[0].Field(),
			Message: "failed " + verrs[0].Tag(),
		}
	}
	return &ValidationError{Index: index, Field: "", Message: err.Error()}
}

func asValidatorErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
