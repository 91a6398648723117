package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-discovery/internal/db"
	"github.com/jonathan/job-discovery/internal/discovery"
	"github.com/jonathan/job-discovery/internal/pipeline"
)

type fakeIntake struct {
	inputs []discovery.JobInput
	result discovery.UpsertResult
	err    error
}

func (f *fakeIntake) BulkUpsert(_ context.Context, inputs []discovery.JobInput) (discovery.UpsertResult, error) {
	f.inputs = inputs
	return f.result, f.err
}

type fakeRunner struct {
	opts   pipeline.BatchOptions
	result *pipeline.BatchResult
	err    error
}

func (f *fakeRunner) RunBatch(_ context.Context, opts pipeline.BatchOptions) (*pipeline.BatchResult, error) {
	f.opts = opts
	return f.result, f.err
}

type fakeLookup struct {
	query db.UnprocessedQuery
	jobs  []db.DiscoveredJob
	total int
	byID  map[string]*db.DiscoveredJob
	err   error
}

func (f *fakeLookup) FindUnprocessed(_ context.Context, q db.UnprocessedQuery) ([]db.DiscoveredJob, int, error) {
	f.query = q
	return f.jobs, f.total, f.err
}

func (f *fakeLookup) GetDiscoveredJobByExternalID(_ context.Context, externalID string) (*db.DiscoveredJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[externalID], nil
}

func newTestServer(intake *fakeIntake, runner *fakeRunner, lookup *fakeLookup) http.Handler {
	if intake == nil {
		intake = &fakeIntake{}
	}
	if runner == nil {
		runner = &fakeRunner{result: &pipeline.BatchResult{}}
	}
	if lookup == nil {
		lookup = &fakeLookup{}
	}
	return New(intake, runner, lookup).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestIntake(t *testing.T) {
	intake := &fakeIntake{result: discovery.UpsertResult{Created: 2, Updated: 1}}
	handler := newTestServer(intake, nil, nil)

	body := map[string]any{
		"jobs": []map[string]any{
			{"external_id": "a", "url": "https://example.com/a", "discovery_source": "boardscan"},
			{"external_id": "b", "url": "https://example.com/b", "discovery_source": "boardscan"},
		},
	}

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/discovered-jobs", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result discovery.UpsertResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, discovery.UpsertResult{Created: 2, Updated: 1}, result)
	assert.Len(t, intake.inputs, 2)
	assert.Equal(t, "a", intake.inputs[0].ExternalID)
}

func TestIntake_ValidationErrorIs400(t *testing.T) {
	intake := &fakeIntake{err: &discovery.ValidationError{Index: 1, Field: "URL", Message: "failed url"}}
	handler := newTestServer(intake, nil, nil)

	body := map[string]any{"jobs": []map[string]any{{"external_id": "a"}}}
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/discovered-jobs", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "index 1")
}

func TestIntake_EmptyBody(t *testing.T) {
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodPost, "/api/v1/discovered-jobs",
		map[string]any{"jobs": []map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntake_StoreErrorIs500(t *testing.T) {
	intake := &fakeIntake{err: errors.New("connection refused")}
	handler := newTestServer(intake, nil, nil)

	body := map[string]any{"jobs": []map[string]any{{"external_id": "a"}}}
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/discovered-jobs", body)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal detail stays out of the response body.
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestListUnprocessed(t *testing.T) {
	lookup := &fakeLookup{
		jobs:  []db.DiscoveredJob{{ExternalID: "a", PriorityScore: 80}},
		total: 12,
	}
	handler := newTestServer(nil, nil, lookup)

	rec := doRequest(t, handler, http.MethodGet,
		"/api/v1/discovered-jobs?limit=5&source=boardscan&min_age_hours=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, db.UnprocessedQuery{
		Limit:           5,
		Source:          "boardscan",
		MinAgeHours:     2,
		OrderByPriority: true,
	}, lookup.query)

	var body struct {
		Jobs  []db.DiscoveredJob `json:"jobs"`
		Total int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 12, body.Total)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "a", body.Jobs[0].ExternalID)
}

func TestListUnprocessed_OldestOrder(t *testing.T) {
	lookup := &fakeLookup{}
	handler := newTestServer(nil, nil, lookup)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/discovered-jobs?order=oldest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, lookup.query.OrderByPriority)

	// An empty backlog serializes as an empty array, not null.
	assert.Contains(t, rec.Body.String(), `"jobs":[]`)
}

func TestGetDiscoveredJob(t *testing.T) {
	lookup := &fakeLookup{byID: map[string]*db.DiscoveredJob{
		"ext-1": {ExternalID: "ext-1", Title: "Engineer"},
	}}
	handler := newTestServer(nil, nil, lookup)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/discovered-jobs/ext-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Engineer"`)

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/discovered-jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcess(t *testing.T) {
	runner := &fakeRunner{result: &pipeline.BatchResult{Processed: 3, Skipped: 1, Total: 4}}
	handler := newTestServer(nil, runner, nil)

	body := map[string]any{"limit": 10, "source": "boardscan", "extraction": true}
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/process", body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, pipeline.BatchOptions{
		Limit:             10,
		Source:            "boardscan",
		Priority:          true,
		TriggerExtraction: true,
	}, runner.opts)

	var result pipeline.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Processed)
}

func TestProcess_DefaultsWithoutBody(t *testing.T) {
	runner := &fakeRunner{result: &pipeline.BatchResult{}}
	handler := newTestServer(nil, runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, runner.opts.Priority, "default order is priority first")
}

func TestProcess_NegativeLimit(t *testing.T) {
	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodPost, "/api/v1/process",
		map[string]any{"limit": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestServer(nil, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/discovered-jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
