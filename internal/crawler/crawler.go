// Package crawler runs the crawl pipeline: fetch a search page per
// (site, keyword), extract drafts, reconcile them against the store and
// enrich what is new or incomplete.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-jdcrawler/internal/ai"
	"go-jdcrawler/internal/browser"
	"go-jdcrawler/internal/database"
	"go-jdcrawler/internal/dedup"
	"go-jdcrawler/internal/filter"
	"go-jdcrawler/internal/models"
	"go-jdcrawler/internal/ratelimit"
	"go-jdcrawler/internal/runlock"
	"go-jdcrawler/internal/scraper"
	"go-jdcrawler/internal/scraper/jobkorea"
	"go-jdcrawler/internal/scraper/saramin"
	"go-jdcrawler/internal/scraper/wanted"
)

// SessionOpener starts the browser session for one crawl unit. opts carry
// the pacing for that unit: interactive crawls use Options.Browser as is,
// scheduled crawls swap in the batch delay and jitter.
type SessionOpener func(ctx context.Context, site models.Site, opts browser.Options) (browser.Session, error)

// Notifier receives newly inserted postings and site failures after a run.
type Notifier interface {
	SendJob(job *models.Job) error
	SendStatus(message string) error
	SendError(err error) error
}

type Options struct {
	Browser       browser.Options
	BatchDelay    time.Duration
	BatchJitter   time.Duration
	DetailTimeout time.Duration
	EnrichDetails bool
	Thresholds    dedup.Thresholds
	// NotifyDelay spaces Telegram messages to stay under the rate limit.
	NotifyDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Browser:       browser.DefaultOptions(),
		BatchDelay:    10 * time.Second,
		BatchJitter:   5 * time.Second,
		DetailTimeout: 10 * time.Second,
		EnrichDetails: true,
		Thresholds:    dedup.DefaultThresholds,
		NotifyDelay:   time.Second,
	}
}

// DefaultExtractors returns one extractor per supported site.
func DefaultExtractors(detailTimeout time.Duration) map[models.Site]scraper.Extractor {
	return map[models.Site]scraper.Extractor{
		models.SiteSaramin:  saramin.New(),
		models.SiteJobKorea: jobkorea.New(),
		models.SiteWanted:   wanted.New(detailTimeout),
	}
}

// Stats summarises a crawl.
type Stats struct {
	Processed   int `json:"processed"`
	Inserted    int `json:"inserted"`
	Exact       int `json:"exact"`
	Fuzzy       int `json:"fuzzy"`
	Enriched    int `json:"enriched"`
	FailedSites int `json:"failed_sites"`
}

func (s *Stats) add(o Stats) {
	s.Processed += o.Processed
	s.Inserted += o.Inserted
	s.Exact += o.Exact
	s.Fuzzy += o.Fuzzy
	s.Enriched += o.Enriched
	s.FailedSites += o.FailedSites
}

var ErrNoDescription = errors.New("job has no description to analyze")

type Service struct {
	store      database.Store
	reconciler *dedup.Reconciler
	scorer     ai.Scorer
	lock       runlock.Locker
	notifier   Notifier
	extractors map[models.Site]scraper.Extractor
	open       SessionOpener
	opts       Options
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithSessionOpener(open SessionOpener) Option { return func(s *Service) { s.open = open } }

func WithExtractors(ext map[models.Site]scraper.Extractor) Option {
	return func(s *Service) { s.extractors = ext }
}

func New(store database.Store, scorer ai.Scorer, lock runlock.Locker, opts Options, options ...Option) *Service {
	if scorer == nil {
		scorer = ai.Disabled{}
	}
	if lock == nil {
		lock = runlock.NewLocal()
	}
	s := &Service{
		store:      store,
		reconciler: dedup.NewReconciler(store, opts.Thresholds),
		scorer:     scorer,
		lock:       lock,
		opts:       opts,
	}
	s.open = func(ctx context.Context, _ models.Site, opts browser.Options) (browser.Session, error) {
		return browser.Open(ctx, opts)
	}
	for _, o := range options {
		o(s)
	}
	if s.extractors == nil {
		s.extractors = DefaultExtractors(opts.DetailTimeout)
	}
	return s
}

// CrawlKeyword crawls keyword on the given sites, all sites when none are
// given. Only invalid input and a concurrent run are returned as errors;
// site failures are logged and counted.
func (s *Service) CrawlKeyword(ctx context.Context, keyword string, sites []models.Site) (Stats, error) {
	keyword, err := models.NormalizeKeyword(keyword)
	if err != nil {
		return Stats{}, err
	}
	if len(sites) == 0 {
		sites = s.sites()
	}
	for _, site := range sites {
		if _, ok := s.extractors[site]; !ok {
			return Stats{}, fmt.Errorf("%w: %q", models.ErrInvalidSite, site)
		}
	}

	unlock, err := s.lock.TryLock(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer s.release(unlock)

	runID := uuid.NewString()[:8]
	log.Printf("🚀 [%s] Crawling %q on %s", runID, keyword, joinSites(sites))

	profile := s.loadProfile(ctx)
	var (
		stats    Stats
		newJobs  []*models.Job
		failures []error
	)
	for _, site := range sites {
		if ctx.Err() != nil {
			break
		}
		unit, inserted, err := s.crawlUnit(ctx, site, keyword, profile, s.opts.Browser)
		stats.add(unit)
		newJobs = append(newJobs, inserted...)
		if err != nil {
			failures = append(failures, err)
		}
	}

	s.notify(ctx, newJobs, failures)
	log.Printf("🏁 [%s] Done: %+v", runID, stats)
	return stats, nil
}

// CrawlAllActive crawls every active keyword on every site, pausing
// between units with the batch delay. runlock.ErrLocked means another run
// is in progress and nothing was done.
func (s *Service) CrawlAllActive(ctx context.Context) (Stats, error) {
	unlock, err := s.lock.TryLock(ctx)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			log.Println("⏭️ Crawl already running, skipping this run")
		}
		return Stats{}, err
	}
	defer s.release(unlock)

	keywords, err := s.store.ListKeywords(ctx, true)
	if err != nil {
		return Stats{}, fmt.Errorf("list active keywords: %w", err)
	}
	if len(keywords) == 0 {
		log.Println("ℹ️ No active keywords, nothing to crawl.")
		return Stats{}, nil
	}

	sites := s.sites()
	runID := uuid.NewString()[:8]
	log.Printf("🚀 [%s] Scheduled crawl: %d keywords x %d sites", runID, len(keywords), len(sites))

	profile := s.loadProfile(ctx)
	pacer := ratelimit.New(s.opts.BatchDelay, s.opts.BatchJitter)
	session := s.batchBrowserOptions()

	var (
		stats    Stats
		newJobs  []*models.Job
		failures []error
	)
loop:
	for _, kw := range keywords {
		for _, site := range sites {
			if err := pacer.Acquire(ctx); err != nil {
				log.Printf("🛑 [%s] Crawl cancelled: %v", runID, err)
				break loop
			}
			unit, inserted, err := s.crawlUnit(ctx, site, kw.Keyword, profile, session)
			stats.add(unit)
			newJobs = append(newJobs, inserted...)
			if err != nil {
				failures = append(failures, err)
			}
		}
	}

	s.notify(ctx, newJobs, failures)
	log.Printf("🏁 [%s] Scheduled crawl done: %+v", runID, stats)
	return stats, nil
}

// batchBrowserOptions are the session options of scheduled crawls: the
// interactive ones with the slower batch pacing.
func (s *Service) batchBrowserOptions() browser.Options {
	opts := s.opts.Browser
	if s.opts.BatchDelay > 0 {
		opts.Delay = s.opts.BatchDelay
	}
	if s.opts.BatchJitter > 0 {
		opts.Jitter = s.opts.BatchJitter
	}
	return opts
}

// crawlUnit processes one (site, keyword). A site failure is logged,
// counted in FailedSites and returned so the run can report it; it never
// stops the run.
func (s *Service) crawlUnit(ctx context.Context, site models.Site, keyword string, profile *models.UserProfile, browserOpts browser.Options) (Stats, []*models.Job, error) {
	var stats Stats
	ext := s.extractors[site]

	log.Printf("\n▶️ %s / %q", site, keyword)
	session, err := s.open(ctx, site, browserOpts)
	if err != nil {
		log.Printf("❌ Failed to open browser for %s: %v", site, err)
		stats.FailedSites++
		return stats, nil, fmt.Errorf("%s %q: open browser: %w", site, keyword, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("⚠️ Failed to close browser for %s: %v", site, err)
		}
	}()

	html, err := session.Fetch(ctx, ext.SearchURL(keyword), browser.FetchOptions{ReadySelector: ext.ReadySelector()})
	if err != nil {
		log.Printf("❌ Error fetching %s search page: %v", site, err)
		stats.FailedSites++
		return stats, nil, fmt.Errorf("%s %q: fetch search page: %w", site, keyword, err)
	}

	drafts, err := ext.ListPostings(html)
	if err != nil {
		log.Printf("❌ Error parsing %s search page: %v", site, err)
		stats.FailedSites++
		return stats, nil, fmt.Errorf("%s %q: parse search page: %w", site, keyword, err)
	}
	log.Printf("    📦 Found %d job cards", len(drafts))

	if enricher, ok := ext.(scraper.DraftEnricher); ok && len(drafts) > 0 {
		drafts = enricher.EnrichDrafts(ctx, drafts)
	}

	var inserted []*models.Job
	for _, d := range drafts {
		if ctx.Err() != nil {
			log.Printf("🛑 %s crawl cancelled after %d postings", site, stats.Processed)
			break
		}

		res, err := s.reconciler.Reconcile(ctx, d)
		if err != nil {
			log.Printf("    ❌ Failed to store %q: %v", d.Title, err)
			continue
		}
		stats.Processed++

		switch res.Outcome {
		case dedup.Inserted:
			stats.Inserted++
		case dedup.ExactMatch:
			stats.Exact++
		case dedup.FuzzyMatch:
			stats.Fuzzy++
			continue
		}

		job := res.Job
		if res.Outcome == dedup.ExactMatch && job.HasDescription() {
			continue
		}
		if err := s.enrich(ctx, session, ext, job, profile); err != nil {
			log.Printf("    ⚠️ Failed to save enrichment for %q: %v", job.Title, err)
		} else {
			stats.Enriched++
		}
		if res.Outcome == dedup.Inserted {
			inserted = append(inserted, job)
		}
	}

	log.Printf("✅ %s finished: %d processed, %d new, %d exact, %d fuzzy",
		site, stats.Processed, stats.Inserted, stats.Exact, stats.Fuzzy)
	return stats, inserted, nil
}

// enrich fills the description and scores job, then saves it.
func (s *Service) enrich(ctx context.Context, fetcher browser.Fetcher, ext scraper.Extractor, job *models.Job, profile *models.UserProfile) error {
	if df, ok := ext.(scraper.DescriptionFetcher); ok && s.opts.EnrichDetails && !job.HasDescription() {
		dctx, cancel := context.WithTimeout(ctx, s.detailTimeout())
		desc, ok := df.FetchFullDescription(dctx, fetcher, job.URL)
		cancel()
		if ok {
			job.Description = models.Optional(desc.Text)
			job.DescriptionImageURL = models.Optional(desc.ImageURL)
		} else {
			log.Printf("      📄 No description for %q", job.Title)
		}
	}

	s.score(ctx, job, profile)
	return s.store.SaveEnrichment(ctx, job)
}

// score applies the local rules and, when they pass and there is
// description text to judge, the AI scorer. Without text the posting keeps
// its rule score and stays pending until a later crawl finds a description.
func (s *Service) score(ctx context.Context, job *models.Job, profile *models.UserProfile) {
	verdict := filter.Evaluate(job, profile)
	verdict.Apply(job)
	if verdict.Filtered {
		log.Printf("      🚫 Filtered %q: %s", job.Title, verdict.Summary)
		return
	}
	if !job.HasDescription() {
		log.Printf("      ⏸️ No description text for %q, AI scoring deferred", job.Title)
		return
	}
	s.scorer.Score(ctx, job, profile).Apply(job)
}

// Analyze re-scores one stored posting on demand.
func (s *Service) Analyze(ctx context.Context, id int64) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.HasDescription() {
		return nil, ErrNoDescription
	}

	s.score(ctx, job, s.loadProfile(ctx))
	if err := s.store.SaveEnrichment(ctx, job); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	return job, nil
}

// sites lists the configured sites in crawl order.
func (s *Service) sites() []models.Site {
	sites := make([]models.Site, 0, len(s.extractors))
	for _, site := range models.AllSites {
		if _, ok := s.extractors[site]; ok {
			sites = append(sites, site)
		}
	}
	return sites
}

func (s *Service) loadProfile(ctx context.Context) *models.UserProfile {
	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		log.Printf("⚠️ Could not load profile, scoring with empty profile: %v", err)
		return models.DefaultProfile()
	}
	return profile
}

func (s *Service) detailTimeout() time.Duration {
	if s.opts.DetailTimeout <= 0 {
		return DefaultOptions().DetailTimeout
	}
	return s.opts.DetailTimeout
}

func (s *Service) release(unlock runlock.Unlock) {
	if err := unlock(context.Background()); err != nil {
		log.Printf("⚠️ Failed to release crawl lock: %v", err)
	}
}

// notify sends new postings and one message listing the failed sites,
// best effort.
func (s *Service) notify(ctx context.Context, jobs []*models.Job, failures []error) {
	if s.notifier == nil {
		return
	}
	if len(failures) > 0 {
		if err := s.notifier.SendError(errors.Join(failures...)); err != nil {
			log.Printf("⚠️ Failed to send errors to Telegram: %v", err)
		}
	}
	if len(jobs) == 0 {
		return
	}

	log.Printf("📊 Sending %d new jobs to Telegram", len(jobs))
	pacer := ratelimit.New(s.opts.NotifyDelay, 0)
	sent := 0
	for _, job := range jobs {
		if err := pacer.Acquire(ctx); err != nil {
			break
		}
		if err := s.notifier.SendJob(job); err != nil {
			log.Printf("⚠️ Failed to send job to Telegram: %v", err)
			continue
		}
		sent++
	}

	if err := s.notifier.SendStatus(fmt.Sprintf("✅ Found %d new jobs, sent %d.", len(jobs), sent)); err != nil {
		log.Printf("⚠️ Failed to send status to Telegram: %v", err)
	}
}

func joinSites(sites []models.Site) string {
	names := make([]string, len(sites))
	for i, s := range sites {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
