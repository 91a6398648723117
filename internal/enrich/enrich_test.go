package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-discovery/internal/db"
	"github.com/jonathan/job-discovery/internal/llm"
	"github.com/jonathan/job-discovery/internal/pipeline"
)

const validExtractionJSON = `{
	"summary": "Backend engineer building Go services",
	"requirements": ["5 years Go"],
	"responsibilities": ["Own services end to end"],
	"skills": ["Go", "PostgreSQL"]
}`

type fakeStore struct {
	mu          sync.Mutex
	extractions []*db.ExtractionInput
	embeddings  []*db.EmbeddingInput
	saveErr     error
}

func (s *fakeStore) SaveExtraction(_ context.Context, input *db.ExtractionInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.extractions = append(s.extractions, input)
	return nil
}

func (s *fakeStore) SaveEmbedding(_ context.Context, input *db.EmbeddingInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.embeddings = append(s.embeddings, input)
	return nil
}

type fakeClient struct {
	generated   string
	generateErr error
	vector      []float32
	embedErr    error
	prompts     []string
}

func (c *fakeClient) GenerateJSON(_ context.Context, prompt string) (string, llm.Usage, error) {
	c.prompts = append(c.prompts, prompt)
	if c.generateErr != nil {
		return "", llm.Usage{}, c.generateErr
	}
	return c.generated, llm.Usage{InputTokens: 900, OutputTokens: 120, CostUSD: 0.0006}, nil
}

func (c *fakeClient) Embed(_ context.Context, _ string) ([]float32, llm.Usage, error) {
	if c.embedErr != nil {
		return nil, llm.Usage{}, c.embedErr
	}
	return c.vector, llm.Usage{InputTokens: 250, CostUSD: 0.00004}, nil
}

func (c *fakeClient) ExtractionModel() string { return "test-extraction-model" }
func (c *fakeClient) EmbeddingModel() string  { return "test-embedding-model" }
func (c *fakeClient) Close() error            { return nil }

func testJob() *db.Job {
	return &db.Job{
		ID:          uuid.New(),
		ExternalID:  "ext-1",
		Title:       "Senior Engineer",
		Company:     "Acme Corp",
		Description: "Build and run backend services in Go.",
	}
}

func TestService_ExtractJob(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{generated: validExtractionJSON}
	job := testJob()

	err := NewService(store, client).ExtractJob(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, store.extractions, 1)
	saved := store.extractions[0]
	assert.Equal(t, job.ID, saved.JobID)
	assert.Equal(t, "test-extraction-model", saved.Model)
	assert.Equal(t, 900, saved.InputTokens)
	assert.Equal(t, 120, saved.OutputTokens)
	assert.Equal(t, "Backend engineer building Go services", saved.Extracted["summary"])

	// The prompt carries the job content for the model to copy from.
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Role: Senior Engineer")
	assert.Contains(t, client.prompts[0], "backend services in Go")
}

func TestService_ExtractJob_InvalidOutputRejected(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{generated: `{"summary": "only a summary"}`}

	err := NewService(store, client).ExtractJob(context.Background(), testJob())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	assert.Empty(t, store.extractions, "invalid output must not be persisted")
}

func TestService_ExtractJob_ClientError(t *testing.T) {
	store := &fakeStore{}
	cause := errors.New("quota exceeded")
	client := &fakeClient{generateErr: cause}

	err := NewService(store, client).ExtractJob(context.Background(), testJob())
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, store.extractions)
}

func TestService_ExtractJob_SummaryVector(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{generated: validExtractionJSON, vector: []float32{0.7, 0.1}}

	svc := NewService(store, client)
	svc.SummaryVectors = true
	job := testJob()

	require.NoError(t, svc.ExtractJob(context.Background(), job))

	require.Len(t, store.extractions, 1)
	require.Len(t, store.embeddings, 1)
	assert.Equal(t, job.ID, store.embeddings[0].JobID)
	assert.Equal(t, []float32{0.7, 0.1}, store.embeddings[0].Vector)
}

func TestService_ExtractJob_SummaryVectorSoftFails(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{generated: validExtractionJSON, embedErr: errors.New("embed quota")}

	svc := NewService(store, client)
	svc.SummaryVectors = true

	// Vector derivation failing must not fail the extraction stage.
	require.NoError(t, svc.ExtractJob(context.Background(), testJob()))
	assert.Len(t, store.extractions, 1)
	assert.Empty(t, store.embeddings)
}

func TestService_EmbedJob(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{vector: []float32{0.1, -0.2, 0.3}}
	job := testJob()

	err := NewService(store, client).EmbedJob(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, store.embeddings, 1)
	saved := store.embeddings[0]
	assert.Equal(t, job.ID, saved.JobID)
	assert.Equal(t, []float32{0.1, -0.2, 0.3}, saved.Vector)
	assert.Equal(t, "test-embedding-model", saved.Model)
	assert.Equal(t, 250, saved.InputTokens)
}

func TestService_EmbedJob_NoContent(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{vector: []float32{0.1}}

	err := NewService(store, client).EmbedJob(context.Background(), &db.Job{ID: uuid.New()})
	require.Error(t, err)
	assert.Empty(t, store.embeddings)
}

func TestEmbeddingText(t *testing.T) {
	assert.Equal(t, "Senior Engineer\nAcme Corp\n\nBuild and run backend services in Go.",
		EmbeddingText(testJob()))
	assert.Equal(t, "just a description",
		EmbeddingText(&db.Job{Description: "just a description"}))
	assert.Equal(t, "", EmbeddingText(&db.Job{}))
}

func newTestDispatcher(store Store, client llm.Client) *Dispatcher {
	d := NewDispatcher(context.Background(), NewService(store, client), 2)
	fast := pipeline.StagePolicy{Name: "test", MaxAttempts: 2, InitialBackoff: time.Millisecond}
	d.extractPolicy = fast
	d.embedPolicy = fast
	return d
}

func TestDispatcher_RunsBothStages(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{generated: validExtractionJSON, vector: []float32{0.5}}

	d := newTestDispatcher(store, client)
	d.Dispatch(testJob(), true, true)
	d.Wait()

	assert.Len(t, store.extractions, 1)
	assert.Len(t, store.embeddings, 1)
}

func TestDispatcher_SelectsStages(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{generated: validExtractionJSON, vector: []float32{0.5}}

	d := newTestDispatcher(store, client)
	d.Dispatch(testJob(), false, true)
	d.Wait()

	assert.Empty(t, store.extractions)
	assert.Len(t, store.embeddings, 1)
}

func TestDispatcher_FailureIsDetached(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{generated: `not json`, vector: []float32{0.5}}

	d := newTestDispatcher(store, client)
	d.Dispatch(testJob(), true, true)
	d.Wait()

	// Extraction failed and was only logged; embedding still ran.
	assert.Empty(t, store.extractions)
	assert.Len(t, store.embeddings, 1)
}

func TestDispatcher_IgnoresEmptyDispatch(t *testing.T) {
	store := &fakeStore{}
	d := newTestDispatcher(store, &fakeClient{})
	d.Dispatch(nil, true, true)
	d.Dispatch(testJob(), false, false)
	d.Wait()

	assert.Empty(t, store.extractions)
	assert.Empty(t, store.embeddings)
}
