package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go-jdcrawler/internal/models"
)

// FileStore keeps everything in memory and mirrors it to a JSON file after
// each change. An empty path keeps it in memory only. It is meant for the
// CLI and for tests; the server should use Postgres.
type FileStore struct {
	mu       sync.Mutex
	filePath string
	state    fileState
	byURL    map[string]*models.Job
	now      func() time.Time
}

type fileState struct {
	NextJobID     int64               `json:"next_job_id"`
	NextKeywordID int64               `json:"next_keyword_id"`
	Jobs          []*models.Job       `json:"jobs"`
	Keywords      []*models.Keyword   `json:"keywords"`
	Profile       *models.UserProfile `json:"profile,omitempty"`
	Cursor        *time.Time          `json:"notification_cursor,omitempty"`
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads path if it exists.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		filePath: path,
		byURL:    make(map[string]*models.Job),
		now:      time.Now,
		state:    fileState{NextJobID: 1, NextKeywordID: 1},
	}
	if path == "" {
		return fs, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &fs.state); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, j := range fs.state.Jobs {
		fs.byURL[j.URL] = j
	}
	log.Printf("📋 Loaded %d jobs and %d keywords from %s", len(fs.state.Jobs), len(fs.state.Keywords), path)
	return fs, nil
}

func (fs *FileStore) Close() {}

// save writes the state atomically. Callers hold mu.
func (fs *FileStore) save() error {
	if fs.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(fs.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	tmp := fs.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return os.Rename(tmp, fs.filePath)
}

func cloneJob(j *models.Job) *models.Job {
	c := *j
	return &c
}

// ---------------- JOB OPERATIONS ----------------

func (fs *FileStore) FindByURL(_ context.Context, url string) (*models.Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if j, ok := fs.byURL[url]; ok {
		return cloneJob(j), nil
	}
	return nil, nil
}

// newestFirst returns jobs ordered by created_at then id, newest first.
// Callers hold mu.
func (fs *FileStore) newestFirst() []*models.Job {
	jobs := make([]*models.Job, len(fs.state.Jobs))
	copy(jobs, fs.state.Jobs)
	sort.SliceStable(jobs, func(a, b int) bool {
		if !jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
		}
		return jobs[a].ID > jobs[b].ID
	})
	return jobs
}

func (fs *FileStore) FindRecent(_ context.Context, limit int) ([]*models.Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	jobs := fs.newestFirst()
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	out := make([]*models.Job, len(jobs))
	for i, j := range jobs {
		out[i] = cloneJob(j)
	}
	return out, nil
}

func (fs *FileStore) InsertJob(_ context.Context, job *models.Job) (*models.Job, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if existing, ok := fs.byURL[job.URL]; ok {
		return cloneJob(existing), false, nil
	}

	stored := cloneJob(job)
	stored.ID = fs.state.NextJobID
	stored.CreatedAt = fs.now().UTC()
	if stored.ScoreStatus == "" {
		stored.ScoreStatus = models.ScorePending
	}
	fs.state.NextJobID++
	fs.state.Jobs = append(fs.state.Jobs, stored)
	fs.byURL[stored.URL] = stored

	if err := fs.save(); err != nil {
		return nil, false, err
	}
	return cloneJob(stored), true, nil
}

func (fs *FileStore) findByID(id int64) *models.Job {
	for _, j := range fs.state.Jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (fs *FileStore) SaveEnrichment(_ context.Context, job *models.Job) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stored := fs.findByID(job.ID)
	if stored == nil {
		return ErrNotFound
	}
	stored.Location = job.Location
	stored.Salary = job.Salary
	stored.Experience = job.Experience
	stored.PostedAt = job.PostedAt
	stored.Deadline = job.Deadline
	stored.Description = job.Description
	stored.DescriptionImageURL = job.DescriptionImageURL
	stored.Score = job.Score
	stored.Summary = job.Summary
	stored.ScoreStatus = job.ScoreStatus
	return fs.save()
}

func (fs *FileStore) GetJob(_ context.Context, id int64) (*models.Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if j := fs.findByID(id); j != nil {
		return cloneJob(j), nil
	}
	return nil, ErrNotFound
}

func (fs *FileStore) ListJobs(_ context.Context, f models.JobFilter) ([]*models.Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	var matched []*models.Job
	for _, j := range fs.newestFirst() {
		if search != "" && !strings.Contains(strings.ToLower(j.Title), search) &&
			!strings.Contains(strings.ToLower(j.Company), search) {
			continue
		}
		if f.Site != "" && j.Site != f.Site {
			continue
		}
		if f.Bookmarked != nil && j.IsBookmarked != *f.Bookmarked {
			continue
		}
		if f.Hidden != nil && j.IsHidden != *f.Hidden {
			continue
		}
		matched = append(matched, j)
	}

	offset := max(f.Offset, 0)
	if offset >= len(matched) {
		return []*models.Job{}, nil
	}
	end := min(offset+listLimit(f), len(matched))

	out := make([]*models.Job, 0, end-offset)
	for _, j := range matched[offset:end] {
		out = append(out, cloneJob(j))
	}
	return out, nil
}

func (fs *FileStore) JobStats(_ context.Context) (map[models.Site]int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	stats := make(map[models.Site]int)
	for _, j := range fs.state.Jobs {
		stats[j.Site]++
	}
	return stats, nil
}

func (fs *FileStore) ToggleBookmark(_ context.Context, id int64) (*models.Job, error) {
	return fs.toggle(id, func(j *models.Job) { j.IsBookmarked = !j.IsBookmarked })
}

func (fs *FileStore) ToggleHidden(_ context.Context, id int64) (*models.Job, error) {
	return fs.toggle(id, func(j *models.Job) { j.IsHidden = !j.IsHidden })
}

func (fs *FileStore) toggle(id int64, flip func(*models.Job)) (*models.Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	j := fs.findByID(id)
	if j == nil {
		return nil, ErrNotFound
	}
	flip(j)
	if err := fs.save(); err != nil {
		return nil, err
	}
	return cloneJob(j), nil
}

// ---------------- KEYWORD OPERATIONS ----------------

func (fs *FileStore) ListKeywords(_ context.Context, activeOnly bool) ([]models.Keyword, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := []models.Keyword{}
	for _, k := range fs.state.Keywords {
		if activeOnly && !k.IsActive {
			continue
		}
		out = append(out, *k)
	}
	return out, nil
}

func (fs *FileStore) CreateKeyword(_ context.Context, keyword string) (*models.Keyword, error) {
	keyword, err := models.NormalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, k := range fs.state.Keywords {
		if k.Keyword == keyword {
			c := *k
			return &c, nil
		}
	}

	k := &models.Keyword{
		ID:        fs.state.NextKeywordID,
		Keyword:   keyword,
		IsActive:  true,
		CreatedAt: fs.now().UTC(),
	}
	fs.state.NextKeywordID++
	fs.state.Keywords = append(fs.state.Keywords, k)
	if err := fs.save(); err != nil {
		return nil, err
	}
	c := *k
	return &c, nil
}

func (fs *FileStore) DeleteKeyword(_ context.Context, id int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i, k := range fs.state.Keywords {
		if k.ID == id {
			fs.state.Keywords = append(fs.state.Keywords[:i], fs.state.Keywords[i+1:]...)
			return fs.save()
		}
	}
	return ErrNotFound
}

func (fs *FileStore) SetKeywordActive(_ context.Context, id int64, active bool) (*models.Keyword, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, k := range fs.state.Keywords {
		if k.ID == id {
			k.IsActive = active
			if err := fs.save(); err != nil {
				return nil, err
			}
			c := *k
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// ---------------- PROFILE OPERATIONS ----------------

func (fs *FileStore) GetProfile(_ context.Context) (*models.UserProfile, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.state.Profile == nil {
		p := models.DefaultProfile()
		now := fs.now().UTC()
		p.UpdatedAt = &now
		fs.state.Profile = p
		if err := fs.save(); err != nil {
			return nil, err
		}
	}
	p := *fs.state.Profile
	p.Normalize()
	return &p, nil
}

func (fs *FileStore) UpdateProfile(_ context.Context, p *models.UserProfile) (*models.UserProfile, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	stored := *p
	stored.Normalize()
	now := fs.now().UTC()
	stored.UpdatedAt = &now
	fs.state.Profile = &stored
	if err := fs.save(); err != nil {
		return nil, err
	}
	out := stored
	return &out, nil
}

// ---------------- NOTIFICATION OPERATIONS ----------------

func (fs *FileStore) NotificationCursor(_ context.Context) (time.Time, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.state.Cursor == nil {
		epoch := time.Unix(0, 0).UTC()
		fs.state.Cursor = &epoch
		if err := fs.save(); err != nil {
			return time.Time{}, err
		}
	}
	return *fs.state.Cursor, nil
}

func (fs *FileStore) SetNotificationCursor(_ context.Context, t time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t = t.UTC()
	fs.state.Cursor = &t
	return fs.save()
}

func (fs *FileStore) CountJobsSince(_ context.Context, since time.Time) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, j := range fs.state.Jobs {
		if j.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}
