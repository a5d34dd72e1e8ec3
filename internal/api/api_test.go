package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jdcrawler/internal/crawler"
	"go-jdcrawler/internal/database"
	"go-jdcrawler/internal/models"
	"go-jdcrawler/internal/runlock"
	"go-jdcrawler/internal/scheduler"
)

type fakeCrawler struct {
	keyword string
	sites   []models.Site
	stats   crawler.Stats
	err     error

	analyzed *models.Job
	analyzeE error
}

func (f *fakeCrawler) CrawlKeyword(_ context.Context, keyword string, sites []models.Site) (crawler.Stats, error) {
	f.keyword, f.sites = keyword, sites
	return f.stats, f.err
}

func (f *fakeCrawler) Analyze(context.Context, int64) (*models.Job, error) {
	return f.analyzed, f.analyzeE
}

type fakeScheduler struct {
	busy   bool
	calls  int
	status scheduler.Status
}

func (f *fakeScheduler) RunNow() bool {
	f.calls++
	return !f.busy
}

func (f *fakeScheduler) Status() scheduler.Status { return f.status }

type testServer struct {
	router  *gin.Engine
	store   *database.FileStore
	crawler *fakeCrawler
	sched   *fakeScheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := database.NewFileStore("")
	require.NoError(t, err)

	ts := &testServer{store: store, crawler: &fakeCrawler{}, sched: &fakeScheduler{}}
	ts.router = NewRouter(NewHandler(store, ts.crawler, ts.sched), []string{"http://localhost:5173"})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) seedJobs(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, j := range []*models.Job{
		{Title: "Go Backend", Company: "Acme", URL: "https://www.saramin.co.kr/job/1", Site: models.SiteSaramin, ScoreStatus: models.ScorePending},
		{Title: "Frontend", Company: "Beta", URL: "https://www.wanted.co.kr/wd/2", Site: models.SiteWanted, ScoreStatus: models.ScorePending},
		{Title: "Go Platform", Company: "Gamma", URL: "https://www.wanted.co.kr/wd/3", Site: models.SiteWanted, ScoreStatus: models.ScorePending},
	} {
		_, _, err := ts.store.InsertJob(ctx, j)
		require.NoError(t, err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListJobs(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	ts.seedJobs(t)

	jobs := decode[[]models.Job](t, ts.do(t, http.MethodGet, "/api/jobs?q=go", nil))
	assert.Len(t, jobs, 2)

	jobs = decode[[]models.Job](t, ts.do(t, http.MethodGet, "/api/jobs?site=wanted&limit=1", nil))
	require.Len(t, jobs, 1)
	assert.Equal(t, "Go Platform", jobs[0].Title, "newest first")

	for _, path := range []string{"/api/jobs?site=linkedin", "/api/jobs?bookmarked=maybe", "/api/jobs?limit=-1"} {
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, path, nil).Code, path)
	}
}

func TestJobStats(t *testing.T) {
	ts := newTestServer(t)
	ts.seedJobs(t)

	w := ts.do(t, http.MethodGet, "/api/jobs/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"saramin":1,"wanted":2}`, w.Body.String())
}

func TestGetAndToggleJob(t *testing.T) {
	ts := newTestServer(t)
	ts.seedJobs(t)

	job := decode[models.Job](t, ts.do(t, http.MethodGet, "/api/jobs/1", nil))
	assert.Equal(t, "Go Backend", job.Title)

	job = decode[models.Job](t, ts.do(t, http.MethodPatch, "/api/jobs/1/bookmark", nil))
	assert.True(t, job.IsBookmarked)
	job = decode[models.Job](t, ts.do(t, http.MethodPatch, "/api/jobs/1/hidden", nil))
	assert.True(t, job.IsHidden)

	jobs := decode[[]models.Job](t, ts.do(t, http.MethodGet, "/api/jobs?bookmarked=true", nil))
	assert.Len(t, jobs, 1)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/jobs/99", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPatch, "/api/jobs/99/bookmark", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/jobs/abc", nil).Code)
}

func TestKeywords(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/keywords", gin.H{"keyword": "  golang "})
	require.Equal(t, http.StatusCreated, w.Code)
	kw := decode[models.Keyword](t, w)
	assert.Equal(t, "golang", kw.Keyword)
	assert.True(t, kw.IsActive)

	again := decode[models.Keyword](t, ts.do(t, http.MethodPost, "/api/keywords", gin.H{"keyword": "golang"}))
	assert.Equal(t, kw.ID, again.ID, "creating twice returns the existing keyword")

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/keywords", gin.H{"keyword": "   "}).Code)

	w = ts.do(t, http.MethodPatch, "/api/keywords/1", gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.Keyword](t, w).IsActive)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPatch, "/api/keywords/1", gin.H{}).Code)

	active := decode[[]models.Keyword](t, ts.do(t, http.MethodGet, "/api/keywords?active=true", nil))
	assert.Empty(t, active)
	all := decode[[]models.Keyword](t, ts.do(t, http.MethodGet, "/api/keywords", nil))
	assert.Len(t, all, 1)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/keywords/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/keywords/1", nil).Code)
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[models.UserProfile](t, w)
	assert.Empty(t, profile.TechStack)
	assert.NotNil(t, profile.TechStack)

	w = ts.do(t, http.MethodPost, "/api/profile", gin.H{
		"tech_stack":       []gin.H{{"name": "Go", "level": "Advanced"}},
		"experience_years": 4,
		"exclude_keywords": []string{"SI"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	profile = decode[models.UserProfile](t, w)
	assert.Equal(t, 4, profile.ExperienceYears)
	assert.Equal(t, []string{}, profile.InterestKeywords, "omitted lists become empty")

	stored, err := ts.store.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Go", stored.TechStack[0].Name)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/profile", gin.H{"experience_years": -1}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/profile", gin.H{"tech_stack": []gin.H{{"level": "x"}}}).Code)
}

func TestNotifications(t *testing.T) {
	ts := newTestServer(t)
	ts.seedJobs(t)

	w := ts.do(t, http.MethodGet, "/api/notifications/new-jobs-count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":3}`, w.Body.String())

	time.Sleep(5 * time.Millisecond)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/notifications/mark-read", nil).Code)
	assert.JSONEq(t, `{"count":0}`, ts.do(t, http.MethodGet, "/api/notifications/new-jobs-count", nil).Body.String())
}

func TestCrawl(t *testing.T) {
	ts := newTestServer(t)
	ts.crawler.stats = crawler.Stats{Processed: 12, Inserted: 5}

	w := ts.do(t, http.MethodPost, "/api/crawl", gin.H{"site": "saramin", "keyword": " golang "})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[crawlResponse](t, w)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 12, resp.JobsCrawled)
	assert.Equal(t, "Successfully crawled 12 jobs from saramin", resp.Message)
	assert.Equal(t, "golang", ts.crawler.keyword)
	assert.Equal(t, []models.Site{models.SiteSaramin}, ts.crawler.sites)
}

func TestCrawlErrors(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/crawl", gin.H{"site": "indeed", "keyword": "go"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/crawl", gin.H{"site": "wanted", "keyword": " "}).Code)
	assert.Empty(t, ts.crawler.keyword, "invalid input never reaches the crawler")

	ts.crawler.err = runlock.ErrLocked
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/crawl", gin.H{"site": "wanted", "keyword": "go"}).Code)
}

func TestCrawlAllAndStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/crawl/all", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, ts.sched.calls)

	ts.sched.busy = true
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/crawl/all", nil).Code)

	next := time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)
	ts.sched.status = scheduler.Status{Enabled: true, Interval: "4h0m0s", NextRun: &next}
	w = ts.do(t, http.MethodGet, "/api/crawl/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "scheduled", body["status"])
	assert.Equal(t, "2026-03-10T16:00:00Z", body["next_run"])
	assert.Equal(t, false, body["running"])
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t)

	ts.crawler.analyzeE = database.ErrNotFound
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/analysis/1", nil).Code)

	ts.crawler.analyzeE = crawler.ErrNoDescription
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/analysis/1", nil).Code)

	ts.crawler.analyzeE = nil
	ts.crawler.analyzed = &models.Job{Score: 88, Summary: models.Optional("- 적합"), ScoreStatus: models.ScoreCompleted}
	w := ts.do(t, http.MethodPost, "/api/analysis/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"score":88,"summary":"- 적합","status":"completed"}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
