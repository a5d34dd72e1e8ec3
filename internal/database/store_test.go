package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jdcrawler/internal/models"
)

func newJob(url, title, company string, site models.Site) *models.Job {
	return models.NewJobFromDraft(models.Draft{Title: title, Company: company, URL: url, Site: site, Location: "서울"})
}

// testStoreContract exercises behaviour every Store implementation shares.
func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("insert is idempotent on url", func(t *testing.T) {
		first, inserted, err := store.InsertJob(ctx, newJob("https://example.com/1", "Go Developer", "Acme", models.SiteSaramin))
		require.NoError(t, err)
		require.True(t, inserted)
		assert.NotZero(t, first.ID)
		assert.Equal(t, models.ScorePending, first.ScoreStatus)
		assert.False(t, first.CreatedAt.IsZero())

		again, inserted, err := store.InsertJob(ctx, newJob("https://example.com/1", "Changed", "Other", models.SiteWanted))
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, "Go Developer", again.Title)
	})

	t.Run("find by url", func(t *testing.T) {
		job, err := store.FindByURL(ctx, "https://example.com/1")
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, "Acme", job.Company)

		missing, err := store.FindByURL(ctx, "https://example.com/none")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("recent is newest first", func(t *testing.T) {
		_, _, err := store.InsertJob(ctx, newJob("https://example.com/2", "Frontend Developer", "Beta Labs", models.SiteWanted))
		require.NoError(t, err)
		_, _, err = store.InsertJob(ctx, newJob("https://example.com/3", "Data Engineer", "acme", models.SiteJobKorea))
		require.NoError(t, err)

		recent, err := store.FindRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "https://example.com/3", recent[0].URL)
		assert.Equal(t, "https://example.com/2", recent[1].URL)
	})

	t.Run("update and get", func(t *testing.T) {
		job, err := store.FindByURL(ctx, "https://example.com/2")
		require.NoError(t, err)

		job.Description = models.Optional("React, TypeScript")
		job.Score = 50
		job.ScoreStatus = models.ScoreCompleted
		job.Summary = models.Optional("good fit")
		require.NoError(t, store.SaveEnrichment(ctx, job))

		got, err := store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "React, TypeScript", models.Deref(got.Description))
		assert.Equal(t, 50, got.Score)
		assert.Equal(t, models.ScoreCompleted, got.ScoreStatus)
		assert.Equal(t, job.CreatedAt.Unix(), got.CreatedAt.Unix())

		_, err = store.GetJob(ctx, 99999)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.SaveEnrichment(ctx, &models.Job{ID: 99999}), ErrNotFound)
	})

	t.Run("enrichment keeps user flags", func(t *testing.T) {
		snapshot, err := store.FindByURL(ctx, "https://example.com/2")
		require.NoError(t, err)

		_, err = store.ToggleBookmark(ctx, snapshot.ID)
		require.NoError(t, err)
		_, err = store.ToggleHidden(ctx, snapshot.ID)
		require.NoError(t, err)

		snapshot.Summary = models.Optional("rescored")
		require.NoError(t, store.SaveEnrichment(ctx, snapshot))

		got, err := store.GetJob(ctx, snapshot.ID)
		require.NoError(t, err)
		assert.True(t, got.IsBookmarked, "stale snapshot must not undo the bookmark")
		assert.True(t, got.IsHidden)
		assert.Equal(t, "rescored", models.Deref(got.Summary))

		_, err = store.ToggleBookmark(ctx, snapshot.ID)
		require.NoError(t, err)
		_, err = store.ToggleHidden(ctx, snapshot.ID)
		require.NoError(t, err)
	})

	t.Run("list filters", func(t *testing.T) {
		all, err := store.ListJobs(ctx, models.JobFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		byName, err := store.ListJobs(ctx, models.JobFilter{Search: "ACME"})
		require.NoError(t, err)
		assert.Len(t, byName, 2)

		bySite, err := store.ListJobs(ctx, models.JobFilter{Site: models.SiteWanted})
		require.NoError(t, err)
		require.Len(t, bySite, 1)
		assert.Equal(t, "Frontend Developer", bySite[0].Title)

		paged, err := store.ListJobs(ctx, models.JobFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, "https://example.com/2", paged[0].URL)

		beyond, err := store.ListJobs(ctx, models.JobFilter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, beyond)
	})

	t.Run("toggles", func(t *testing.T) {
		job, err := store.FindByURL(ctx, "https://example.com/1")
		require.NoError(t, err)

		toggled, err := store.ToggleBookmark(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, toggled.IsBookmarked)

		yes := true
		bookmarked, err := store.ListJobs(ctx, models.JobFilter{Bookmarked: &yes})
		require.NoError(t, err)
		require.Len(t, bookmarked, 1)
		assert.Equal(t, job.ID, bookmarked[0].ID)

		hidden, err := store.ToggleHidden(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, hidden.IsHidden)
		visible, err := store.ToggleHidden(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, visible.IsHidden)

		_, err = store.ToggleBookmark(ctx, 99999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := store.JobStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[models.Site]int{
			models.SiteSaramin:  1,
			models.SiteWanted:   1,
			models.SiteJobKorea: 1,
		}, stats)
	})

	t.Run("keywords", func(t *testing.T) {
		kw, err := store.CreateKeyword(ctx, "  golang  ")
		require.NoError(t, err)
		assert.Equal(t, "golang", kw.Keyword)
		assert.True(t, kw.IsActive)

		same, err := store.CreateKeyword(ctx, "golang")
		require.NoError(t, err)
		assert.Equal(t, kw.ID, same.ID)

		_, err = store.CreateKeyword(ctx, "   ")
		assert.ErrorIs(t, err, models.ErrEmptyKeyword)

		other, err := store.CreateKeyword(ctx, "python")
		require.NoError(t, err)
		_, err = store.SetKeywordActive(ctx, other.ID, false)
		require.NoError(t, err)

		active, err := store.ListKeywords(ctx, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "golang", active[0].Keyword)

		all, err := store.ListKeywords(ctx, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, store.DeleteKeyword(ctx, other.ID))
		assert.ErrorIs(t, store.DeleteKeyword(ctx, other.ID), ErrNotFound)
		_, err = store.SetKeywordActive(ctx, other.ID, true)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("profile", func(t *testing.T) {
		p, err := store.GetProfile(ctx)
		require.NoError(t, err)
		assert.Empty(t, p.TechStack)
		assert.NotNil(t, p.ExcludeKeywords)

		note := "daily"
		updated, err := store.UpdateProfile(ctx, &models.UserProfile{
			TechStack:       []models.TechSkill{{Name: "Go", Level: "advanced", Description: &note}},
			ExperienceYears: 4,
			ExcludeKeywords: []string{"SI"},
		})
		require.NoError(t, err)
		assert.NotNil(t, updated.UpdatedAt)
		assert.NotNil(t, updated.InterestKeywords)

		got, err := store.GetProfile(ctx)
		require.NoError(t, err)
		require.Len(t, got.TechStack, 1)
		assert.Equal(t, "Go", got.TechStack[0].Name)
		assert.Equal(t, "daily", *got.TechStack[0].Description)
		assert.Equal(t, 4, got.ExperienceYears)
		assert.Equal(t, []string{"SI"}, got.ExcludeKeywords)
	})

	t.Run("notification cursor", func(t *testing.T) {
		cursor, err := store.NotificationCursor(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), cursor.Unix())

		n, err := store.CountJobsSince(ctx, cursor)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		later := time.Now().Add(time.Hour)
		require.NoError(t, store.SetNotificationCursor(ctx, later))
		cursor, err = store.NotificationCursor(ctx)
		require.NoError(t, err)
		assert.Equal(t, later.Unix(), cursor.Unix())

		n, err = store.CountJobsSince(ctx, cursor)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
