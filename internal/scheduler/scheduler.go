// Package scheduler triggers a crawl of every active keyword on a fixed
// interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"go-jdcrawler/internal/crawler"
	"go-jdcrawler/internal/runlock"
)

// Runner is the part of crawler.Service the scheduler drives.
type Runner interface {
	CrawlAllActive(ctx context.Context) (crawler.Stats, error)
}

// Status is what GET /api/crawl/status reports.
type Status struct {
	Enabled   bool           `json:"enabled"`
	Running   bool           `json:"running"`
	Interval  string         `json:"interval"`
	NextRun   *time.Time     `json:"next_run,omitempty"`
	LastRun   *time.Time     `json:"last_run,omitempty"`
	LastStats *crawler.Stats `json:"last_stats,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// Scheduler wraps robfig/cron and manages the crawl loop.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	interval time.Duration
	entry    cron.EntryID
	started  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	running   bool
	lastRun   *time.Time
	lastStats *crawler.Stats
	lastErr   string
}

// New creates a Scheduler that fires every interval.
func New(runner Runner, interval time.Duration) (*Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("schedule interval %s is too short", interval)
	}
	logger := cron.VerbosePrintfLogger(log.Default())
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger))),
		runner:   runner,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the job and starts the scheduler. With runNow a crawl
// also starts immediately in the background.
func (s *Scheduler) Start(runNow bool) error {
	spec := "@every " + s.interval.String()
	id, err := s.cron.AddFunc(spec, func() { s.run("scheduled") })
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.entry = id
	s.started = true

	s.cron.Start()
	log.Printf("⏰ Scheduler started: %s", spec)

	if runNow {
		s.RunNow()
	}
	return nil
}

// RunNow starts a crawl in the background. It returns false when one is
// already running.
func (s *Scheduler) RunNow() bool {
	s.mu.Lock()
	busy := s.running
	s.mu.Unlock()
	if busy {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run("manual")
	}()
	return true
}

func (s *Scheduler) run(trigger string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Printf("⏭️ Skipping %s crawl, previous run still in progress", trigger)
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("🔄 Starting %s crawl of all active keywords", trigger)
	stats, err := s.runner.CrawlAllActive(s.ctx)

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = &now
	switch {
	case errors.Is(err, runlock.ErrLocked):
		s.lastErr = err.Error()
	case err != nil:
		log.Printf("❌ %s crawl failed: %v", trigger, err)
		s.lastErr = err.Error()
	default:
		s.lastErr = ""
		s.lastStats = &stats
	}
}

func (s *Scheduler) Status() Status {
	st := Status{Enabled: s.started, Interval: s.interval.String()}
	if s.started {
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st.Running = s.running
	st.LastRun = s.lastRun
	st.LastStats = s.lastStats
	st.LastError = s.lastErr
	return st
}

// Stop stops scheduling and waits for a running crawl. When ctx expires
// first the crawl is cancelled.
func (s *Scheduler) Stop(ctx context.Context) {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Println("⚠️ Crawl still running at shutdown, cancelling")
		s.cancel()
		<-done
	}
	s.cancel()
	log.Println("⏰ Scheduler stopped")
}
