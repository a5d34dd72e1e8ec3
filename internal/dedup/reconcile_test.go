package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jdcrawler/internal/database"
	"go-jdcrawler/internal/models"
)

func newReconciler(t *testing.T) (*Reconciler, *database.FileStore) {
	t.Helper()
	store, err := database.NewFileStore("")
	require.NoError(t, err)
	return NewReconciler(store, DefaultThresholds), store
}

func countJobs(t *testing.T, store *database.FileStore) int {
	t.Helper()
	jobs, err := store.ListJobs(context.Background(), models.JobFilter{Limit: 1000})
	require.NoError(t, err)
	return len(jobs)
}

func TestReconcileIsIdempotent(t *testing.T) {
	r, store := newReconciler(t)
	ctx := context.Background()
	draft := models.Draft{Title: "Go Developer", Company: "Acme", URL: "https://example.com/1", Site: models.SiteSaramin}

	first, err := r.Reconcile(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, Inserted, first.Outcome)
	assert.Equal(t, models.ScorePending, first.Job.ScoreStatus)

	second, err := r.Reconcile(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, ExactMatch, second.Outcome)
	assert.Equal(t, first.Job.ID, second.Job.ID)
	assert.Equal(t, first.Job.CreatedAt, second.Job.CreatedAt)

	assert.Equal(t, 1, countJobs(t, store))
}

func TestReconcileBatchTwice(t *testing.T) {
	r, store := newReconciler(t)
	ctx := context.Background()
	batch := []models.Draft{
		{Title: "Go Developer", Company: "Acme", URL: "https://example.com/1", Site: models.SiteWanted},
		{Title: "Data Engineer", Company: "Beta", URL: "https://example.com/2", Site: models.SiteWanted},
		{Title: "SRE", Company: "Gamma", URL: "https://example.com/3", Site: models.SiteWanted},
	}

	for round := 0; round < 2; round++ {
		for _, d := range batch {
			_, err := r.Reconcile(ctx, d)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 3, countJobs(t, store))
}

func TestReconcileFuzzyDuplicate(t *testing.T) {
	r, store := newReconciler(t)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, models.Draft{Title: "Python Backend Developer", Company: "Tech Corp", URL: "https://a.example/1", Site: models.SiteSaramin})
	require.NoError(t, err)

	second, err := r.Reconcile(ctx, models.Draft{Title: "Backend Developer (Python)", Company: "Tech Corp", URL: "https://b.example/9", Site: models.SiteWanted})
	require.NoError(t, err)
	assert.Equal(t, FuzzyMatch, second.Outcome)
	assert.Equal(t, first.Job.ID, second.Job.ID)
	assert.Equal(t, "Python Backend Developer", second.Job.Title, "first title is retained")
	assert.Equal(t, 100.0, second.TitleScore)

	assert.Equal(t, 1, countJobs(t, store))
}

func TestReconcileSameCompanyDifferentTitles(t *testing.T) {
	r, store := newReconciler(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, models.Draft{Title: "Python Backend Developer", Company: "Tech Corp", URL: "https://a.example/1", Site: models.SiteSaramin})
	require.NoError(t, err)
	res, err := r.Reconcile(ctx, models.Draft{Title: "Frontend Developer", Company: "Tech Corp", URL: "https://a.example/2", Site: models.SiteSaramin})
	require.NoError(t, err)

	assert.Equal(t, Inserted, res.Outcome)
	assert.Equal(t, 2, countJobs(t, store))
}

func TestReconcileSameTitleDifferentCompanies(t *testing.T) {
	r, store := newReconciler(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, models.Draft{Title: "Backend Developer", Company: "Tech Corp", URL: "https://a.example/1", Site: models.SiteSaramin})
	require.NoError(t, err)
	res, err := r.Reconcile(ctx, models.Draft{Title: "Backend Developer", Company: "Bio Labs", URL: "https://a.example/2", Site: models.SiteSaramin})
	require.NoError(t, err)

	assert.Equal(t, Inserted, res.Outcome)
	assert.Equal(t, 2, countJobs(t, store))
}

func TestReconcileRecentWindow(t *testing.T) {
	store, err := database.NewFileStore("")
	require.NoError(t, err)
	r := NewReconciler(store, Thresholds{Company: 90, Title: 85, RecentWindow: 1})
	ctx := context.Background()

	_, err = r.Reconcile(ctx, models.Draft{Title: "Go Developer", Company: "Acme", URL: "https://x/1"})
	require.NoError(t, err)
	_, err = r.Reconcile(ctx, models.Draft{Title: "Designer", Company: "Other", URL: "https://x/2"})
	require.NoError(t, err)

	// the Acme posting fell out of the window, so its re-post is stored again
	res, err := r.Reconcile(ctx, models.Draft{Title: "Developer, Go", Company: "Acme", URL: "https://x/3"})
	require.NoError(t, err)
	assert.Equal(t, Inserted, res.Outcome)
	assert.Equal(t, 3, countJobs(t, store))
}

type failingStore struct{ Store }

func (failingStore) FindByURL(context.Context, string) (*models.Job, error) {
	return nil, errors.New("connection refused")
}

func TestReconcileStoreError(t *testing.T) {
	r := NewReconciler(failingStore{}, DefaultThresholds)
	_, err := r.Reconcile(context.Background(), models.Draft{URL: "https://x/1"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestFindSimilar(t *testing.T) {
	r := NewReconciler(nil, Thresholds{})
	recent := []*models.Job{
		{ID: 2, Company: "Tech Corp", Title: "Frontend Developer"},
		{ID: 1, Company: "Tech Corp", Title: "Backend Developer (Python)"},
	}

	match, company, title := r.findSimilar(models.Draft{Company: "Tech Corp", Title: "Python Backend Developer"}, recent)
	require.NotNil(t, match)
	assert.Equal(t, int64(1), match.ID)
	assert.Equal(t, 100.0, company)
	assert.GreaterOrEqual(t, title, 85.0)

	match, _, _ = r.findSimilar(models.Draft{Company: "Tech Corp", Title: "Data Engineer"}, recent)
	assert.Nil(t, match)
}
