package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-jdcrawler/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                    BIGSERIAL PRIMARY KEY,
	title                 TEXT NOT NULL,
	company               TEXT NOT NULL,
	url                   TEXT NOT NULL UNIQUE,
	site                  TEXT NOT NULL,
	location              TEXT,
	salary                TEXT,
	experience            TEXT,
	posted_at             TEXT,
	deadline              TEXT,
	description           TEXT,
	description_image_url TEXT,
	is_bookmarked         BOOLEAN NOT NULL DEFAULT FALSE,
	is_hidden             BOOLEAN NOT NULL DEFAULT FALSE,
	score                 INTEGER NOT NULL DEFAULT 0,
	summary               TEXT,
	score_status          TEXT NOT NULL DEFAULT 'pending',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS jobs_created_at_idx ON jobs (created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS keywords (
	id         BIGSERIAL PRIMARY KEY,
	keyword    TEXT NOT NULL UNIQUE,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_profile (
	id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notification_cursor (
	id              SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	last_checked_at TIMESTAMPTZ NOT NULL
);
`

type Repository struct {
	db *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// ConnectDB opens the pool and creates the schema if needed.
func ConnectDB(ctx context.Context, connString string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour

	// Hosted poolers in transaction mode cannot keep prepared statements.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Repository{db: pool}, nil
}

func (r *Repository) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// ---------------- JOB OPERATIONS ----------------

const jobColumns = `id, title, company, url, site, location, salary, experience, posted_at, deadline,
	description, description_image_url, is_bookmarked, is_hidden, score, summary, score_status, created_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.Title, &j.Company, &j.URL, &j.Site, &j.Location, &j.Salary, &j.Experience,
		&j.PostedAt, &j.Deadline, &j.Description, &j.DescriptionImageURL, &j.IsBookmarked, &j.IsHidden,
		&j.Score, &j.Summary, &j.ScoreStatus, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]*models.Job, error) {
	defer rows.Close()
	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *Repository) FindByURL(ctx context.Context, url string) (*models.Job, error) {
	job, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE url = $1`, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job by url: %w", err)
	}
	return job, nil
}

func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*models.Job, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent jobs: %w", err)
	}
	return collectJobs(rows)
}

// InsertJob inserts job unless the URL is already stored, in which case the
// stored row is returned with inserted=false.
func (r *Repository) InsertJob(ctx context.Context, job *models.Job) (*models.Job, bool, error) {
	query := `
		INSERT INTO jobs (title, company, url, site, location, salary, experience, posted_at, deadline,
			description, description_image_url, score, summary, score_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (url) DO NOTHING
		RETURNING ` + jobColumns

	status := job.ScoreStatus
	if status == "" {
		status = models.ScorePending
	}
	stored, err := scanJob(r.db.QueryRow(ctx, query, job.Title, job.Company, job.URL, job.Site, job.Location,
		job.Salary, job.Experience, job.PostedAt, job.Deadline, job.Description, job.DescriptionImageURL,
		job.Score, job.Summary, status))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.FindByURL(ctx, job.URL)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert job: %w", err)
	}
	return stored, true, nil
}

// SaveEnrichment writes the enrichment fields of job. Identity fields,
// created_at and the user flags are never changed.
func (r *Repository) SaveEnrichment(ctx context.Context, job *models.Job) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE jobs SET location = $2, salary = $3, experience = $4, posted_at = $5, deadline = $6,
			description = $7, description_image_url = $8, score = $9, summary = $10, score_status = $11
		WHERE id = $1`,
		job.ID, job.Location, job.Salary, job.Experience, job.PostedAt, job.Deadline, job.Description,
		job.DescriptionImageURL, job.Score, job.Summary, job.ScoreStatus)
	if err != nil {
		return fmt.Errorf("failed to save job enrichment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	job, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job by ID: %w", err)
	}
	return job, nil
}

func (r *Repository) ListJobs(ctx context.Context, f models.JobFilter) ([]*models.Job, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + s + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR company ILIKE %s)", p, p))
	}
	if f.Site != "" {
		where = append(where, "site = "+arg(f.Site))
	}
	if f.Bookmarked != nil {
		where = append(where, "is_bookmarked = "+arg(*f.Bookmarked))
	}
	if f.Hidden != nil {
		where = append(where, "is_hidden = "+arg(*f.Hidden))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(listLimit(f)) + " OFFSET " + arg(max(f.Offset, 0))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return collectJobs(rows)
}

func (r *Repository) JobStats(ctx context.Context) (map[models.Site]int, error) {
	rows, err := r.db.Query(ctx, `SELECT site, COUNT(*) FROM jobs GROUP BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	stats := make(map[models.Site]int)
	for rows.Next() {
		var site models.Site
		var n int
		if err := rows.Scan(&site, &n); err != nil {
			return nil, err
		}
		stats[site] = n
	}
	return stats, rows.Err()
}

func (r *Repository) ToggleBookmark(ctx context.Context, id int64) (*models.Job, error) {
	return r.toggle(ctx, id, "is_bookmarked")
}

func (r *Repository) ToggleHidden(ctx context.Context, id int64) (*models.Job, error) {
	return r.toggle(ctx, id, "is_hidden")
}

func (r *Repository) toggle(ctx context.Context, id int64, column string) (*models.Job, error) {
	query := fmt.Sprintf(`UPDATE jobs SET %[1]s = NOT %[1]s WHERE id = $1 RETURNING `+jobColumns, column)
	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle %s: %w", column, err)
	}
	return job, nil
}

// ---------------- KEYWORD OPERATIONS ----------------

func scanKeyword(row pgx.Row) (*models.Keyword, error) {
	var k models.Keyword
	if err := row.Scan(&k.ID, &k.Keyword, &k.IsActive, &k.CreatedAt); err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *Repository) ListKeywords(ctx context.Context, activeOnly bool) ([]models.Keyword, error) {
	query := `SELECT id, keyword, is_active, created_at FROM keywords`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	keywords := []models.Keyword{}
	for rows.Next() {
		k, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, *k)
	}
	return keywords, rows.Err()
}

// CreateKeyword returns the existing keyword when it is already saved.
func (r *Repository) CreateKeyword(ctx context.Context, keyword string) (*models.Keyword, error) {
	keyword, err := models.NormalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}
	k, err := scanKeyword(r.db.QueryRow(ctx, `
		INSERT INTO keywords (keyword) VALUES ($1)
		ON CONFLICT (keyword) DO UPDATE SET keyword = EXCLUDED.keyword
		RETURNING id, keyword, is_active, created_at`, keyword))
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword: %w", err)
	}
	return k, nil
}

func (r *Repository) DeleteKeyword(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM keywords WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetKeywordActive(ctx context.Context, id int64, active bool) (*models.Keyword, error) {
	k, err := scanKeyword(r.db.QueryRow(ctx,
		`UPDATE keywords SET is_active = $2 WHERE id = $1 RETURNING id, keyword, is_active, created_at`, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update keyword: %w", err)
	}
	return k, nil
}

// ---------------- PROFILE OPERATIONS ----------------

func (r *Repository) GetProfile(ctx context.Context) (*models.UserProfile, error) {
	empty, err := json.Marshal(models.DefaultProfile())
	if err != nil {
		return nil, err
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO user_profile (id, data) VALUES (1, $1::jsonb) ON CONFLICT (id) DO NOTHING`, string(empty)); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	var data []byte
	var updatedAt time.Time
	if err := r.db.QueryRow(ctx, `SELECT data, updated_at FROM user_profile WHERE id = 1`).Scan(&data, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var p models.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	p.Normalize()
	p.UpdatedAt = &updatedAt
	return &p, nil
}

// UpdateProfile replaces the whole profile.
func (r *Repository) UpdateProfile(ctx context.Context, p *models.UserProfile) (*models.UserProfile, error) {
	stored := *p
	stored.Normalize()
	stored.UpdatedAt = nil
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}

	var updatedAt time.Time
	err = r.db.QueryRow(ctx, `
		INSERT INTO user_profile (id, data, updated_at) VALUES (1, $1::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
		RETURNING updated_at`, string(data)).Scan(&updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	stored.UpdatedAt = &updatedAt
	return &stored, nil
}

// ---------------- NOTIFICATION OPERATIONS ----------------

// NotificationCursor returns when new postings were last acknowledged.
// It starts at the Unix epoch so every posting counts as new.
func (r *Repository) NotificationCursor(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := r.db.QueryRow(ctx, `
		INSERT INTO notification_cursor (id, last_checked_at) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET id = notification_cursor.id
		RETURNING last_checked_at`, time.Unix(0, 0).UTC()).Scan(&t)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read notification cursor: %w", err)
	}
	return t, nil
}

func (r *Repository) SetNotificationCursor(ctx context.Context, t time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_cursor (id, last_checked_at) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_checked_at = EXCLUDED.last_checked_at`, t)
	if err != nil {
		return fmt.Errorf("failed to update notification cursor: %w", err)
	}
	return nil
}

func (r *Repository) CountJobsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE created_at > $1`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count new jobs: %w", err)
	}
	return n, nil
}
