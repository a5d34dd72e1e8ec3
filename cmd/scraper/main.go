package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"go-jdcrawler/internal/app"
	"go-jdcrawler/internal/config"
	"go-jdcrawler/internal/crawler"
	"go-jdcrawler/internal/models"
)

var (
	flagKeyword    string
	flagAll        bool
	flagNoHeadless bool
	flagConfig     string
	flagTimeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "scraper [saramin|jobkorea|wanted]",
	Short: "Crawl job boards once and store the results",
	Long: "scraper crawls saramin, jobkorea and wanted for a keyword (or every active keyword),\n" +
		"deduplicates the postings against the store and scores the new ones.",
	Args:         cobra.MaximumNArgs(1),
	ValidArgs:    []string{string(models.SiteSaramin), string(models.SiteJobKorea), string(models.SiteWanted)},
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagKeyword, "keyword", "k", "", "search keyword")
	rootCmd.Flags().BoolVarP(&flagAll, "all-keywords", "a", false, "crawl all active keywords from the store")
	rootCmd.Flags().BoolVar(&flagNoHeadless, "no-headless", false, "run the browser in visible mode")
	rootCmd.Flags().StringVar(&flagConfig, "config", config.DefaultPath, "path to the YAML config")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Minute, "abort the crawl after this long")
	rootCmd.MarkFlagsMutuallyExclusive("keyword", "all-keywords")
}

func run(cmd *cobra.Command, args []string) error {
	if flagKeyword == "" && !flagAll {
		return errors.New("provide --keyword or --all-keywords")
	}

	var sites []models.Site
	if len(args) == 1 {
		site, err := models.ParseSite(args[0])
		if err != nil {
			return err
		}
		if flagAll {
			log.Printf("⚠️ --all-keywords crawls every site, ignoring %q", site)
		}
		sites = []models.Site{site}
	}

	//load config
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagNoHeadless {
		cfg.Crawl.Headless = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var stats crawler.Stats
	if flagAll {
		log.Println("🔄 Crawling all active keywords from the store...")
		stats, err = a.Crawler.CrawlAllActive(ctx)
	} else {
		stats, err = a.Crawler.CrawlKeyword(ctx, flagKeyword, sites)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "processed=%d inserted=%d exact=%d fuzzy=%d enriched=%d failed_sites=%d\n",
		stats.Processed, stats.Inserted, stats.Exact, stats.Fuzzy, stats.Enriched, stats.FailedSites)
	log.Println("🏁 Execution finished.")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
