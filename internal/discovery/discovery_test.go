package discovery

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-discovery/internal/db"
)

// fakeStore records upserts in memory and can fail specific external ids
type fakeStore struct {
	existing map[string]bool
	upserts  []*db.DiscoveredJobUpsert
	failIDs  map[string]bool
}

func newFakeStore(existing ...string) *fakeStore {
	m := make(map[string]bool)
	for _, id := range existing {
		m[id] = true
	}
	return &fakeStore{existing: m, failIDs: make(map[string]bool)}
}

func (f *fakeStore) ExistingExternalIDs(_ context.Context, externalIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	for _, id := range externalIDs {
		if f.existing[id] {
			result[id] = true
		}
	}
	return result, nil
}

func (f *fakeStore) UpsertDiscoveredJob(_ context.Context, input *db.DiscoveredJobUpsert) error {
	if f.failIDs[input.ExternalID] {
		return fmt.Errorf("simulated write failure for %s", input.ExternalID)
	}
	f.upserts = append(f.upserts, input)
	return nil
}

func validInput(externalID string) JobInput {
	return JobInput{
		ExternalID:      externalID,
		URL:             "https://example.com/jobs/" + externalID,
		Title:           "Backend Engineer",
		Company:         "Acme",
		DiscoverySource: "linkedin",
	}
}

func TestBulkUpsert_CreatedAndUpdated(t *testing.T) {
	store := newFakeStore("job-2")
	svc := NewService(store)

	result, err := svc.BulkUpsert(context.Background(), []JobInput{
		validInput("job-1"),
		validInput("job-2"),
		validInput("job-3"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Len(t, store.upserts, 3)
}

func TestBulkUpsert_Empty(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	result, err := svc.BulkUpsert(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, UpsertResult{}, result)
	assert.Empty(t, store.upserts)
}

func TestBulkUpsert_ItemFailureToleratedWithinBatch(t *testing.T) {
	store := newFakeStore()
	store.failIDs["job-2"] = true
	svc := NewService(store)

	result, err := svc.BulkUpsert(context.Background(), []JobInput{
		validInput("job-1"),
		validInput("job-2"),
		validInput("job-3"),
	})

	// Failed item is silently absent from both counts
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Len(t, store.upserts, 2)
	assert.LessOrEqual(t, result.Created+result.Updated, 3)
}

func TestBulkUpsert_MissingRequiredFieldRejectsRequest(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	inputs := []JobInput{
		validInput("job-1"),
		{URL: "https://example.com/jobs/x", DiscoverySource: "linkedin"}, // no external id
	}

	_, err := svc.BulkUpsert(context.Background(), inputs)

	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
	// Nothing persisted when validation fails
	assert.Empty(t, store.upserts)
}

func TestBulkUpsert_MissingSourceRejected(t *testing.T) {
	svc := NewService(newFakeStore())

	_, err := svc.BulkUpsert(context.Background(), []JobInput{
		{ExternalID: "job-1", URL: "https://example.com/jobs/1"},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "DiscoverySource", verr.Field)
}

func TestBulkUpsert_BatchingOverFifty(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	inputs := make([]JobInput, 120)
	for i := range inputs {
		inputs[i] = validInput(fmt.Sprintf("job-%03d", i))
	}

	result, err := svc.BulkUpsert(context.Background(), inputs)

	require.NoError(t, err)
	assert.Equal(t, 120, result.Created)
	assert.Len(t, store.upserts, 120)
}

func TestBulkUpsert_RecomputesPriorityScore(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	remote := "remote"
	in := validInput("job-1")
	in.IsEasyApply = true
	in.WorkType = &remote

	_, err := svc.BulkUpsert(context.Background(), []JobInput{in})

	require.NoError(t, err)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, 80, store.upserts[0].PriorityScore)
}
