// inspect renders one page through the fetch engine and prints what the
// extractors make of it. Use it when a site changes its markup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go-jdcrawler/internal/ai"
	"go-jdcrawler/internal/browser"
	"go-jdcrawler/internal/config"
	"go-jdcrawler/internal/crawler"
	"go-jdcrawler/internal/models"
	"go-jdcrawler/internal/scraper"
)

func main() {
	siteName := flag.String("site", "saramin", "saramin, jobkorea or wanted")
	keyword := flag.String("k", "", "search keyword; prints the extracted drafts")
	postingURL := flag.String("url", "", "posting URL; prints the full description")
	score := flag.Bool("score", false, "with -url, also score the description with the AI scorer")
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config")
	visible := flag.Bool("no-headless", false, "show the browser window")
	flag.Parse()

	if (*keyword == "") == (*postingURL == "") {
		log.Fatal("❌ Provide exactly one of -k or -url")
	}

	site, err := models.ParseSite(*siteName)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	if *visible {
		cfg.Crawl.Headless = false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println("🌐 Starting browser...")
	session, err := browser.Open(ctx, cfg.BrowserOptions())
	if err != nil {
		log.Fatalf("❌ Failed to open browser: %v", err)
	}
	defer session.Close()

	ext := crawler.DefaultExtractors(cfg.Crawl.DetailTimeout)[site]

	if *keyword != "" {
		html, err := session.Fetch(ctx, ext.SearchURL(*keyword), browser.FetchOptions{ReadySelector: ext.ReadySelector()})
		if err != nil {
			log.Fatalf("❌ Fetch failed: %v", err)
		}
		drafts, err := ext.ListPostings(html)
		if err != nil {
			log.Fatalf("❌ Parse failed: %v", err)
		}
		if enricher, ok := ext.(scraper.DraftEnricher); ok {
			drafts = enricher.EnrichDrafts(ctx, drafts)
		}
		fmt.Printf("✅ %d drafts\n", len(drafts))
		printJSON(drafts)
		return
	}

	df, ok := ext.(scraper.DescriptionFetcher)
	if !ok {
		log.Fatalf("❌ %s cannot fetch descriptions", site)
	}
	desc, ok := df.FetchFullDescription(ctx, session, *postingURL)
	if !ok {
		log.Fatal("❌ No description found")
	}
	fmt.Printf("✅ Description (%d chars, image %q)\n\n%s\n", len([]rune(desc.Text)), desc.ImageURL, desc.Text)

	if *score {
		scorer, err := ai.NewScorer(cfg.ScorerConfig())
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		job := &models.Job{Title: *postingURL, URL: *postingURL, Site: site, Description: models.Optional(desc.Text)}
		fmt.Println("\n🤖 Scoring with an empty profile...")
		printJSON(scorer.Score(ctx, job, models.DefaultProfile()))
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("⚠️ Failed to encode output: %v", err)
	}
}
