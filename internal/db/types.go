package db

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Processing status constants for discovered jobs
const (
	StatusPending    = "pending"
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// MaxProcessingAttempts is the attempt cap after which a discovered job is
// marked failed and never retried automatically.
const MaxProcessingAttempts = 3

// DiscoveredJob is a lightweight record of a job posting found during
// discovery, before promotion to a canonical Job.
type DiscoveredJob struct {
	ID              uuid.UUID              `json:"id"`
	ExternalID      string                 `json:"external_id"`
	URL             string                 `json:"url"`
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
	DiscoverySource string                 `json:"discovery_source"`
	DiscoveryURL    *string                `json:"discovery_url,omitempty"`
	RawData         map[string]interface{} `json:"raw_data,omitempty"`
	PriorityScore   int                    `json:"priority_score"`

	// Promotion bookkeeping
	DiscoveredAt       time.Time  `json:"discovered_at"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	ProcessedJobID     *uuid.UUID `json:"processed_job_id,omitempty"`
	ProcessingStatus   string     `json:"processing_status"`
	ProcessingAttempts int        `json:"processing_attempts"`
	LastProcessError   *string    `json:"last_process_error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Job is the canonical, fully detailed record used by downstream consumers.
// Created at most once per external id; enrichment attaches related rows but
// does not rewrite it.
type Job struct {
	ID             uuid.UUID              `json:"id"`
	ExternalID     string                 `json:"external_id"`
	ContentHash    string                 `json:"content_hash"`
	URL            string                 `json:"url"`
	Title          string                 `json:"title"`
	Company        string                 `json:"company"`
	Description    string                 `json:"description"`
	Location       *string                `json:"location,omitempty"`
	Salary         *string                `json:"salary,omitempty"`
	EmploymentType *string                `json:"employment_type,omitempty"`
	PostedAt       *time.Time             `json:"posted_at,omitempty"`
	ScrapedBy      *string                `json:"scraped_by,omitempty"`
	RawData        map[string]interface{} `json:"raw_data,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// JobExtraction is a structured-extraction row attached to a canonical job.
type JobExtraction struct {
	ID           uuid.UUID              `json:"id"`
	JobID        uuid.UUID              `json:"job_id"`
	Extracted    map[string]interface{} `json:"extracted"`
	Model        string                 `json:"model"`
	InputTokens  int                    `json:"input_tokens"`
	OutputTokens int                    `json:"output_tokens"`
	CostUSD      float64                `json:"cost_usd"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// DiscoveredJobUpsert carries one intake record into the upsert path.
// PriorityScore must already be recomputed by the caller.
type DiscoveredJobUpsert struct {
	ExternalID      string
	URL             string
	Title           string
	Company         string
	Location        *string
	EmploymentType  *string
	WorkType        *string
	IsPromoted      bool
	IsEasyApply     bool
	HasVerified     bool
	Insight         *string
	PostedDate      *string
	CompanyLogoURL  *string
	DiscoveredBy    *uuid.UUID
	DiscoverySource string
	DiscoveryURL    *string
	RawData         map[string]interface{}
	PriorityScore   int
}

// JobUpsert carries fetched detail content into the canonical job upsert.
type JobUpsert struct {
	ExternalID     string
	URL            string
	Title          string
	Company        string
	Description    string
	Location       *string
	Salary         *string
	EmploymentType *string
	PostedAt       *time.Time
	ScrapedBy      *string
	RawData        map[string]interface{}
}

// IsTerminal reports whether the discovered job will never be promoted again.
func (d *DiscoveredJob) IsTerminal() bool {
	return d.ProcessingStatus == StatusCompleted || d.ProcessingStatus == StatusFailed
}

// IsEligible reports whether the selector would still return this job.
func (d *DiscoveredJob) IsEligible() bool {
	return d.ProcessedAt == nil &&
		(d.ProcessingStatus == StatusPending || d.ProcessingStatus == StatusQueued)
}

// HashURL generates a SHA-256 hash of a job's final URL, used as the
// canonical record's content identity aid.
func HashURL(url string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(hash[:])
}

// ParsePostedDate attempts to parse a posted-at date from the loose text job
// boards expose. Returns nil when the text carries no parseable date
// (relative phrases like "2 hours ago" stay on the discovered record as-is).
func ParsePostedDate(text string) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"Jan 2, 2006",
		"January 2, 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}
