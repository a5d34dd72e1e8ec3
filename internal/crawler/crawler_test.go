package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jdcrawler/internal/ai"
	"go-jdcrawler/internal/browser"
	"go-jdcrawler/internal/database"
	"go-jdcrawler/internal/models"
	"go-jdcrawler/internal/runlock"
	"go-jdcrawler/internal/scraper"
	"go-jdcrawler/internal/scraper/saramin"
)

const (
	searchURL = "https://www.saramin.co.kr/zf_user/search?searchword=golang"

	searchHTML = `
<div class="item_recruit">
  <div class="job_tit"><a href="https://www.saramin.co.kr/job/1">Go 백엔드 개발자</a></div>
  <div class="corp_name"><a href="#">고퍼스</a></div>
  <div class="job_condition"><span class="work_place">서울</span><span class="career">경력 3년↑</span></div>
</div>
<div class="item_recruit">
  <div class="job_tit"><a href="https://www.saramin.co.kr/job/2">SI 프로젝트 개발자</a></div>
  <div class="corp_name"><a href="#">에스아이솔루션</a></div>
</div>
<div class="item_recruit">
  <div class="job_tit"><a href="https://www.saramin.co.kr/job/3">Go 백엔드 개발자</a></div>
  <div class="corp_name"><a href="#">(주)고퍼스</a></div>
</div>
`

	detailHTML = `
<div class="jv_cont"><div class="jv_detail">
Go 와 PostgreSQL 기반으로 대규모 채용 플랫폼 백엔드를 개발합니다.
쿠버네티스 운영 경험 우대합니다.
</div></div>`
)

type fakeScorer struct {
	mu     sync.Mutex
	calls  []string
	result ai.Result
	// onScore runs while the scorer "waits" for the model.
	onScore func(job *models.Job)
}

func (f *fakeScorer) Score(_ context.Context, job *models.Job, _ *models.UserProfile) ai.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, job.Title)
	if f.onScore != nil {
		f.onScore(job)
	}
	return f.result
}

func (f *fakeScorer) Enabled() bool { return true }

type fakeNotifier struct {
	jobs     []string
	statuses []string
	errors   []string
}

func (f *fakeNotifier) SendJob(job *models.Job) error {
	f.jobs = append(f.jobs, job.URL)
	return nil
}

func (f *fakeNotifier) SendStatus(message string) error {
	f.statuses = append(f.statuses, message)
	return nil
}

func (f *fakeNotifier) SendError(err error) error {
	f.errors = append(f.errors, err.Error())
	return nil
}

type fixture struct {
	svc      *Service
	store    *database.FileStore
	fetcher  *scraper.StaticFetcher
	scorer   *fakeScorer
	notifier *fakeNotifier
	opened   []models.Site
	sessions []browser.Options
}

func newFixture(t *testing.T, pages map[string]string) *fixture {
	t.Helper()
	store, err := database.NewFileStore("")
	require.NoError(t, err)

	_, err = store.UpdateProfile(context.Background(), &models.UserProfile{
		TechStack:       []models.TechSkill{{Name: "Go", Level: "Advanced"}, {Name: "PostgreSQL", Level: "Intermediate"}},
		ExcludeKeywords: []string{"SI"},
	})
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		fetcher:  &scraper.StaticFetcher{Pages: pages},
		scorer:   &fakeScorer{result: ai.Result{Score: 77, Summary: "- 잘 맞음", Status: models.ScoreCompleted}},
		notifier: &fakeNotifier{},
	}

	opts := DefaultOptions()
	opts.BatchDelay, opts.BatchJitter, opts.NotifyDelay = 0, 0, 0

	f.svc = New(store, f.scorer, runlock.NewLocal(), opts,
		WithExtractors(map[models.Site]scraper.Extractor{models.SiteSaramin: saramin.New()}),
		WithNotifier(f.notifier),
		WithSessionOpener(func(_ context.Context, site models.Site, opts browser.Options) (browser.Session, error) {
			f.opened = append(f.opened, site)
			f.sessions = append(f.sessions, opts)
			return f.fetcher, nil
		}),
	)
	return f
}

func defaultPages() map[string]string {
	return map[string]string{
		searchURL:                         searchHTML,
		"https://www.saramin.co.kr/job/1": detailHTML,
	}
}

func TestCrawlKeyword(t *testing.T) {
	f := newFixture(t, defaultPages())
	ctx := context.Background()

	stats, err := f.svc.CrawlKeyword(ctx, "  golang ", []models.Site{models.SiteSaramin})
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 3, Inserted: 2, Fuzzy: 1, Enriched: 2}, stats)

	job, err := f.store.FindByURL(ctx, "https://www.saramin.co.kr/job/1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Contains(t, models.Deref(job.Description), "PostgreSQL")
	assert.Equal(t, models.ScoreCompleted, job.ScoreStatus)
	assert.Equal(t, 77, job.Score)
	assert.Equal(t, "- 잘 맞음", models.Deref(job.Summary))

	filtered, err := f.store.FindByURL(ctx, "https://www.saramin.co.kr/job/2")
	require.NoError(t, err)
	require.NotNil(t, filtered)
	assert.Equal(t, models.ScoreFiltered, filtered.ScoreStatus)
	assert.Equal(t, 0, filtered.Score)
	assert.Equal(t, "제외 키워드 'SI' 포함됨", models.Deref(filtered.Summary))
	assert.Nil(t, filtered.Description)

	fuzzy, err := f.store.FindByURL(ctx, "https://www.saramin.co.kr/job/3")
	require.NoError(t, err)
	assert.Nil(t, fuzzy, "fuzzy duplicates are not inserted")

	assert.Equal(t, []string{"Go 백엔드 개발자"}, f.scorer.calls, "filtered postings never reach the AI")
	assert.Equal(t, []string{"https://www.saramin.co.kr/job/1", "https://www.saramin.co.kr/job/2"}, f.notifier.jobs)
	assert.Len(t, f.notifier.statuses, 1)
}

func TestCrawlKeywordTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, defaultPages())
	ctx := context.Background()

	_, err := f.svc.CrawlKeyword(ctx, "golang", []models.Site{models.SiteSaramin})
	require.NoError(t, err)

	stats, err := f.svc.CrawlKeyword(ctx, "golang", []models.Site{models.SiteSaramin})
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 3, Exact: 2, Fuzzy: 1, Enriched: 1}, stats,
		"only the posting still missing a description is enriched again")

	all, err := f.store.ListJobs(ctx, models.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, f.scorer.calls, 1)
	assert.Len(t, f.notifier.jobs, 2, "nothing new to announce")
}

func TestAIFailureKeepsRuleScore(t *testing.T) {
	f := newFixture(t, defaultPages())
	f.scorer.result = ai.Result{Summary: "Analysis failed: timeout", Status: models.ScoreFailed}
	ctx := context.Background()

	_, err := f.svc.CrawlKeyword(ctx, "golang", []models.Site{models.SiteSaramin})
	require.NoError(t, err)

	job, err := f.store.FindByURL(ctx, "https://www.saramin.co.kr/job/1")
	require.NoError(t, err)
	assert.Equal(t, models.ScoreFailed, job.ScoreStatus)
	assert.Equal(t, 100, job.Score, "Go and PostgreSQL both appear")
	assert.Equal(t, "Analysis failed: timeout", models.Deref(job.Summary))
}

func TestCrawlKeywordSiteFailureIsIsolated(t *testing.T) {
	f := newFixture(t, map[string]string{})

	stats, err := f.svc.CrawlKeyword(context.Background(), "golang", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedSites)
	assert.Equal(t, 0, stats.Processed)
	require.Len(t, f.notifier.errors, 1)
	assert.Contains(t, f.notifier.errors[0], `saramin "golang": fetch search page`)
	assert.Empty(t, f.notifier.statuses, "no new jobs to announce")
}

func TestCrawlKeywordRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, defaultPages())

	_, err := f.svc.CrawlKeyword(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, models.ErrEmptyKeyword)

	_, err = f.svc.CrawlKeyword(context.Background(), "golang", []models.Site{models.SiteWanted})
	assert.ErrorIs(t, err, models.ErrInvalidSite)
	assert.Empty(t, f.opened)
}

func TestCrawlAllActive(t *testing.T) {
	f := newFixture(t, defaultPages())
	ctx := context.Background()

	_, err := f.store.CreateKeyword(ctx, "golang")
	require.NoError(t, err)
	kw, err := f.store.CreateKeyword(ctx, "rust")
	require.NoError(t, err)
	_, err = f.store.SetKeywordActive(ctx, kw.ID, false)
	require.NoError(t, err)

	stats, err := f.svc.CrawlAllActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, []models.Site{models.SiteSaramin}, f.opened, "one session per (site, active keyword)")
}

func TestCrawlAllActiveSkipsWhenLocked(t *testing.T) {
	f := newFixture(t, defaultPages())
	ctx := context.Background()

	unlock, err := f.svc.lock.TryLock(ctx)
	require.NoError(t, err)
	defer unlock(ctx)

	_, err = f.svc.CrawlAllActive(ctx)
	assert.ErrorIs(t, err, runlock.ErrLocked)
	_, err = f.svc.CrawlKeyword(ctx, "golang", nil)
	assert.ErrorIs(t, err, runlock.ErrLocked)
	assert.Empty(t, f.opened)
}

func TestCrawlOpenFailure(t *testing.T) {
	f := newFixture(t, defaultPages())
	f.svc.open = func(context.Context, models.Site, browser.Options) (browser.Session, error) {
		return nil, errors.New("no chromium")
	}

	stats, err := f.svc.CrawlKeyword(context.Background(), "golang", nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{FailedSites: 1}, stats)
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t, defaultPages())
	ctx := context.Background()

	stored, _, err := f.store.InsertJob(ctx, &models.Job{
		Title: "Platform Engineer", Company: "Acme", URL: "https://example.com/1",
		Site: models.SiteWanted, ScoreStatus: models.ScorePending,
	})
	require.NoError(t, err)

	_, err = f.svc.Analyze(ctx, stored.ID)
	assert.ErrorIs(t, err, ErrNoDescription)

	stored.Description = models.Optional("Go services on Kubernetes")
	require.NoError(t, f.store.SaveEnrichment(ctx, stored))

	job, err := f.svc.Analyze(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, 77, job.Score)
	assert.Equal(t, models.ScoreCompleted, job.ScoreStatus)

	_, err = f.svc.Analyze(ctx, 999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestStatsAdd(t *testing.T) {
	s := Stats{Processed: 1, FailedSites: 1}
	s.add(Stats{Processed: 2, Inserted: 1, Enriched: 1})
	assert.Equal(t, Stats{Processed: 3, Inserted: 1, Enriched: 1, FailedSites: 1}, s)
}

func TestEnrichmentKeepsUserToggles(t *testing.T) {
	f := newFixture(t, defaultPages())
	ctx := context.Background()
	f.scorer.onScore = func(job *models.Job) {
		_, err := f.store.ToggleBookmark(ctx, job.ID)
		assert.NoError(t, err)
	}

	_, err := f.svc.CrawlKeyword(ctx, "golang", []models.Site{models.SiteSaramin})
	require.NoError(t, err)

	job, err := f.store.FindByURL(ctx, "https://www.saramin.co.kr/job/1")
	require.NoError(t, err)
	assert.True(t, job.IsBookmarked, "bookmark set while scoring survives the save")
	assert.Equal(t, models.ScoreCompleted, job.ScoreStatus)
}

func TestImageOnlyPostingIsNotSentToAI(t *testing.T) {
	f := newFixture(t, map[string]string{
		searchURL: `
<div class="item_recruit">
  <div class="job_tit"><a href="https://www.saramin.co.kr/job/1">Go 백엔드 개발자</a></div>
  <div class="corp_name"><a href="#">고퍼스</a></div>
</div>`,
		"https://www.saramin.co.kr/job/1": `<div class="jv_cont"><div class="jv_detail"><img src="https://www.saramin.co.kr/upload/job1.png"></div></div>`,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.CrawlKeyword(ctx, "golang", []models.Site{models.SiteSaramin})
		require.NoError(t, err)
	}

	assert.Empty(t, f.scorer.calls, "no description text, no AI call")

	job, err := f.store.FindByURL(ctx, "https://www.saramin.co.kr/job/1")
	require.NoError(t, err)
	assert.Equal(t, models.ScorePending, job.ScoreStatus)
	assert.Equal(t, 50, job.Score, "rule score from the title")
	assert.Nil(t, job.Description)
	assert.Contains(t, models.Deref(job.DescriptionImageURL), "job1.png")
}

func TestScheduledCrawlUsesBatchPacing(t *testing.T) {
	f := newFixture(t, defaultPages())
	f.svc.opts.BatchDelay = 10 * time.Second
	f.svc.opts.BatchJitter = 5 * time.Second
	ctx := context.Background()

	_, err := f.store.CreateKeyword(ctx, "golang")
	require.NoError(t, err)

	_, err = f.svc.CrawlAllActive(ctx)
	require.NoError(t, err)
	_, err = f.svc.CrawlKeyword(ctx, "golang", nil)
	require.NoError(t, err)

	require.Len(t, f.sessions, 2)
	assert.Equal(t, 10*time.Second, f.sessions[0].Delay)
	assert.Equal(t, 5*time.Second, f.sessions[0].Jitter)
	assert.Equal(t, browser.DefaultOptions().Delay, f.sessions[1].Delay, "interactive crawls keep the session pacing")
	assert.Equal(t, browser.DefaultOptions().Jitter, f.sessions[1].Jitter)
	assert.Equal(t, f.sessions[1].Retry, f.sessions[0].Retry)
}
