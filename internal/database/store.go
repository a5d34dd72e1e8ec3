// Package database persists postings, keywords, the user profile and the
// notification cursor.
package database

import (
	"context"
	"errors"
	"time"

	"go-jdcrawler/internal/models"
)

var ErrNotFound = errors.New("not found")

// DefaultListLimit applies when JobFilter.Limit is not positive.
const DefaultListLimit = 100

// Store is the record store used by the crawler and the API.
//
// FindByURL returns (nil, nil) when no record has the URL. Lookups by id
// return ErrNotFound. SaveEnrichment writes only what the crawler derives
// (card fields, description, score); bookmark and hidden change only
// through the toggles.
type Store interface {
	FindByURL(ctx context.Context, url string) (*models.Job, error)
	FindRecent(ctx context.Context, limit int) ([]*models.Job, error)
	InsertJob(ctx context.Context, job *models.Job) (*models.Job, bool, error)
	SaveEnrichment(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListJobs(ctx context.Context, f models.JobFilter) ([]*models.Job, error)
	JobStats(ctx context.Context) (map[models.Site]int, error)
	ToggleBookmark(ctx context.Context, id int64) (*models.Job, error)
	ToggleHidden(ctx context.Context, id int64) (*models.Job, error)

	ListKeywords(ctx context.Context, activeOnly bool) ([]models.Keyword, error)
	CreateKeyword(ctx context.Context, keyword string) (*models.Keyword, error)
	DeleteKeyword(ctx context.Context, id int64) error
	SetKeywordActive(ctx context.Context, id int64, active bool) (*models.Keyword, error)

	GetProfile(ctx context.Context) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, p *models.UserProfile) (*models.UserProfile, error)

	NotificationCursor(ctx context.Context) (time.Time, error)
	SetNotificationCursor(ctx context.Context, t time.Time) error
	CountJobsSince(ctx context.Context, since time.Time) (int, error)

	Close()
}

func listLimit(f models.JobFilter) int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
