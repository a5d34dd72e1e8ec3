// Load envs from .env
// Load YAML config
// Override with env vars
// Validate config

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go-jdcrawler/internal/ai"
	"go-jdcrawler/internal/browser"
	"go-jdcrawler/internal/crawler"
	"go-jdcrawler/internal/dedup"
	"go-jdcrawler/internal/retry"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RedisURL string         `yaml:"redis_url" env:"REDIS_URL"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Schedule ScheduleConfig `yaml:"schedule"`
	AI       AIConfig       `yaml:"ai"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type ServerConfig struct {
	Port        string   `yaml:"port" env:"PORT"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	//Postgres DSN, empty means the JSON file store
	URL      string `yaml:"url" env:"DATABASE_URL"`
	FilePath string `yaml:"file_path"`
}

type CrawlConfig struct {
	Engine         string        `yaml:"engine" env:"CRAWL_ENGINE"`
	Headless       bool          `yaml:"headless" env:"HEADLESS"`
	Delay          time.Duration `yaml:"delay"`
	Jitter         time.Duration `yaml:"jitter"`
	BatchDelay     time.Duration `yaml:"batch_delay"`
	BatchJitter    time.Duration `yaml:"batch_jitter"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	Timeout        time.Duration `yaml:"timeout"`
	WaitUntil      string        `yaml:"wait_until"`
	Humanize       bool          `yaml:"humanize"`
	CookiesPath    string        `yaml:"cookies_path"`
	ScreenshotDir  string        `yaml:"screenshot_dir"`
	DetailTimeout  time.Duration `yaml:"detail_timeout"`
	EnrichDetails  bool          `yaml:"enrich_details"`
}

type DedupConfig struct {
	CompanyThreshold float64 `yaml:"company_threshold"`
	TitleThreshold   float64 `yaml:"title_threshold"`
	RecentWindow     int     `yaml:"recent_window"`
}

type ScheduleConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	RunOnStart bool          `yaml:"run_on_start"`
}

type AIConfig struct {
	APIKey  string        `yaml:"api_key" env:"ZHIPU_API_KEY"`
	BaseURL string        `yaml:"base_url" env:"AI_BASE_URL"`
	Model   string        `yaml:"model" env:"AI_MODEL"`
	Timeout time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	Token  string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
}

// Default is the configuration used for every key the YAML file omits.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{FilePath: "data/jobs.json"},
		Crawl: CrawlConfig{
			Engine:         browser.EnginePlaywright,
			Headless:       true,
			Delay:          3 * time.Second,
			Jitter:         2 * time.Second,
			BatchDelay:     10 * time.Second,
			BatchJitter:    5 * time.Second,
			MaxAttempts:    3,
			RetryBaseDelay: 2 * time.Second,
			Timeout:        20 * time.Second,
			WaitUntil:      browser.WaitDOMContentLoaded,
			ScreenshotDir:  "logs/screenshots",
			DetailTimeout:  10 * time.Second,
			EnrichDetails:  true,
		},
		Dedup: DedupConfig{
			CompanyThreshold: dedup.DefaultThresholds.Company,
			TitleThreshold:   dedup.DefaultThresholds.Title,
			RecentWindow:     dedup.DefaultThresholds.RecentWindow,
		},
		Schedule: ScheduleConfig{Enabled: true, Interval: 4 * time.Hour},
		AI: AIConfig{
			BaseURL: ai.DefaultBaseURL,
			Model:   ai.DefaultModel,
			Timeout: ai.DefaultTimeout,
		},
	}
}

// Load reads .env, then the YAML file at path (DefaultPath when empty),
// then environment overrides. A missing YAML file is only a warning.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	//Load yaml config on top of the defaults
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("⚠️ Could not read %s: %v. Using defaults.", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.AI.APIKey, "ZHIPU_API_KEY", "AI_API_KEY")
	setString(&c.AI.BaseURL, "AI_BASE_URL")
	setString(&c.AI.Model, "AI_MODEL")
	setString(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Server.Port, "PORT")
	setString(&c.Crawl.Engine, "CRAWL_ENGINE")

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}

	if headless := os.Getenv("HEADLESS"); headless != "" {
		v, err := strconv.ParseBool(headless)
		if err != nil {
			return fmt.Errorf("invalid HEADLESS: %w", err)
		}
		c.Crawl.Headless = v
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port != "", "server.port is required")
	check(c.Database.URL != "" || c.Database.FilePath != "", "database.url or database.file_path is required")

	cr := c.Crawl
	check(cr.Engine == browser.EnginePlaywright || cr.Engine == browser.EngineChromedp,
		"crawl.engine must be %q or %q, got %q", browser.EnginePlaywright, browser.EngineChromedp, cr.Engine)
	switch cr.WaitUntil {
	case browser.WaitDOMContentLoaded, browser.WaitLoad, browser.WaitNetworkIdle, browser.WaitCommit:
	default:
		check(false, "crawl.wait_until %q is not supported", cr.WaitUntil)
	}
	check(cr.Delay >= 0 && cr.Jitter >= 0 && cr.BatchDelay >= 0 && cr.BatchJitter >= 0,
		"crawl delays must not be negative")
	check(cr.MaxAttempts >= 1, "crawl.max_attempts must be at least 1")
	check(cr.Timeout > 0, "crawl.timeout must be positive")
	check(cr.DetailTimeout > 0, "crawl.detail_timeout must be positive")

	d := c.Dedup
	check(d.CompanyThreshold > 0 && d.CompanyThreshold <= 100, "dedup.company_threshold must be in (0, 100]")
	check(d.TitleThreshold > 0 && d.TitleThreshold <= 100, "dedup.title_threshold must be in (0, 100]")
	check(d.RecentWindow > 0, "dedup.recent_window must be positive")

	if c.Schedule.Enabled {
		check(c.Schedule.Interval >= time.Minute, "schedule.interval must be at least 1m")
	}
	check(c.AI.Timeout > 0, "ai.timeout must be positive")
	check((c.Telegram.Token == "") == (c.Telegram.ChatID == 0),
		"telegram.token and telegram.chat_id must be set together")

	return errors.Join(errs...)
}

// BrowserOptions maps the crawl section onto the fetch engine.
func (c *Config) BrowserOptions() browser.Options {
	cr := c.Crawl
	return browser.Options{
		Engine:   cr.Engine,
		Headless: cr.Headless,
		Delay:    cr.Delay,
		Jitter:   cr.Jitter,
		Retry: retry.Policy{
			Attempts:  cr.MaxAttempts,
			BaseDelay: cr.RetryBaseDelay,
		},
		Timeout:       cr.Timeout,
		WaitUntil:     cr.WaitUntil,
		Humanize:      cr.Humanize,
		CookiesPath:   cr.CookiesPath,
		ScreenshotDir: cr.ScreenshotDir,
	}
}

func (c *Config) CrawlerOptions() crawler.Options {
	opts := crawler.DefaultOptions()
	opts.Browser = c.BrowserOptions()
	opts.BatchDelay = c.Crawl.BatchDelay
	opts.BatchJitter = c.Crawl.BatchJitter
	opts.DetailTimeout = c.Crawl.DetailTimeout
	opts.EnrichDetails = c.Crawl.EnrichDetails
	opts.Thresholds = dedup.Thresholds{
		Company:      c.Dedup.CompanyThreshold,
		Title:        c.Dedup.TitleThreshold,
		RecentWindow: c.Dedup.RecentWindow,
	}
	return opts
}

func (c *Config) ScorerConfig() ai.Config {
	return ai.Config{
		APIKey:  c.AI.APIKey,
		BaseURL: c.AI.BaseURL,
		Model:   c.AI.Model,
		Timeout: c.AI.Timeout,
	}
}
