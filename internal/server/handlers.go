package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jonathan/job-discovery/internal/db"
	"github.com/jonathan/job-discovery/internal/discovery"
	"github.com/jonathan/job-discovery/internal/pipeline"
)

// MaxIntakeBatch caps how many discovered jobs one request may carry.
const MaxIntakeBatch = 1000

type errorBody struct {
	Error string `json:"error"`
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type intakeRequest struct {
	Jobs []discovery.JobInput `json:"jobs"`
}

func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Jobs) == 0 {
		errorResponse(w, http.StatusBadRequest, "no jobs in request")
		return
	}
	if len(req.Jobs) > MaxIntakeBatch {
		errorResponse(w, http.StatusRequestEntityTooLarge, "too many jobs in one request")
		return
	}

	result, err := s.intake.BulkUpsert(r.Context(), req.Jobs)
	if err != nil {
		var verr *discovery.ValidationError
		if errors.As(err, &verr) {
			errorResponse(w, http.StatusBadRequest, verr.Error())
			return
		}
		errorResponse(w, http.StatusInternalServerError, "failed to save discovered jobs")
		return
	}

	jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleListUnprocessed(w http.ResponseWriter, r *http.Request) {
	q := db.UnprocessedQuery{
		Limit:           intParam(r, "limit", 0),
		Offset:          intParam(r, "offset", 0),
		Source:          r.URL.Query().Get("source"),
		MinAgeHours:     intParam(r, "min_age_hours", 0),
		OrderByPriority: r.URL.Query().Get("order") != "oldest",
	}

	jobs, total, err := s.lookup.FindUnprocessed(r.Context(), q)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "failed to list discovered jobs")
		return
	}
	if jobs == nil {
		jobs = []db.DiscoveredJob{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": total,
	})
}

func (s *Server) handleGetDiscoveredJob(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("externalID")

	job, err := s.lookup.GetDiscoveredJobByExternalID(r.Context(), externalID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "failed to get discovered job")
		return
	}
	if job == nil {
		errorResponse(w, http.StatusNotFound, "discovered job not found")
		return
	}

	jsonResponse(w, http.StatusOK, job)
}

type processRequest struct {
	BatchSize   int    `json:"batch_size,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Source      string `json:"source,omitempty"`
	MinAgeHours int    `json:"min_age_hours,omitempty"`
	OldestFirst bool   `json:"oldest_first,omitempty"`
	Extraction  bool   `json:"extraction,omitempty"`
	Embedding   bool   `json:"embedding,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.BatchSize < 0 || req.Limit < 0 {
		errorResponse(w, http.StatusBadRequest, "batch_size and limit must be non-negative")
		return
	}

	result, err := s.runner.RunBatch(r.Context(), pipeline.BatchOptions{
		BatchSize:         req.BatchSize,
		Limit:             req.Limit,
		Source:            req.Source,
		MinAgeHours:       req.MinAgeHours,
		Priority:          !req.OldestFirst,
		TriggerExtraction: req.Extraction,
		TriggerEmbedding:  req.Embedding,
	})
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "batch processing failed")
		return
	}

	jsonResponse(w, http.StatusOK, result)
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
