// Package app wires the configured store, lock, scorer and notifier into
// a crawler.Service. Both binaries start from here.
package app

import (
	"context"
	"log"

	"go-jdcrawler/internal/ai"
	"go-jdcrawler/internal/config"
	"go-jdcrawler/internal/crawler"
	"go-jdcrawler/internal/database"
	"go-jdcrawler/internal/runlock"
	"go-jdcrawler/internal/telegram"
)

type App struct {
	Config  *config.Config
	Store   database.Store
	Lock    runlock.Locker
	Crawler *crawler.Service
}

// New connects to every configured backend. Close must be called on the
// returned App.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// ── Store ────────────────────────────────────────────────────────────────
	if cfg.Database.URL != "" {
		log.Println("🐘 Connecting to PostgreSQL…")
		repo, err := database.ConnectDB(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.Store = repo
		log.Println("🐘 PostgreSQL connected ✓")
	} else {
		fs, err := database.NewFileStore(cfg.Database.FilePath)
		if err != nil {
			return nil, err
		}
		a.Store = fs
		log.Printf("💾 Using file store at %s", cfg.Database.FilePath)
	}

	// ── Crawl lock ───────────────────────────────────────────────────────────
	if cfg.RedisURL != "" {
		lock, err := runlock.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Lock = lock
		log.Println("🔒 Redis crawl lock connected ✓")
	} else {
		a.Lock = runlock.NewLocal()
	}

	// ── AI scorer ────────────────────────────────────────────────────────────
	scorer, err := ai.NewScorer(cfg.ScorerConfig())
	if err != nil {
		return nil, err
	}
	if scorer.Enabled() {
		log.Printf("🧠 AI scoring enabled (%s)", cfg.AI.Model)
	} else {
		log.Println("⚠️ No AI API key, postings keep their rule score only.")
	}

	var opts []crawler.Option
	// ── Telegram ─────────────────────────────────────────────────────────────
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Printf("⚠️ Failed to init Telegram Bot: %v. Notifications disabled.", err)
		} else {
			opts = append(opts, crawler.WithNotifier(bot))
			log.Println("🤖 Telegram Bot initialized.")
		}
	}

	a.Crawler = crawler.New(a.Store, scorer, a.Lock, cfg.CrawlerOptions(), opts...)
	ok = true
	return a, nil
}

func (a *App) Close() {
	if a.Lock != nil {
		if err := a.Lock.Close(); err != nil {
			log.Printf("⚠️ Failed to close crawl lock: %v", err)
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
