// Package browser renders job-board pages through a headless browser that
// is configured to look like a regular Korean desktop Chrome.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-jdcrawler/internal/retry"
)

const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"
)

// Wait-until policies understood by Fetch.
const (
	WaitDOMContentLoaded = "domcontentloaded"
	WaitLoad             = "load"
	WaitNetworkIdle      = "networkidle"
	WaitCommit           = "commit"
)

// ErrBlocked is returned when the page turned out to be an anti-bot
// challenge. It is retryable.
var ErrBlocked = errors.New("blocked by anti-bot challenge")

// FetchOptions tune a single Fetch. Zero values fall back to the session
// options.
type FetchOptions struct {
	// ReadySelector is waited for after navigation. A timeout here is not
	// an error; whatever rendered so far is returned.
	ReadySelector string
	WaitUntil     string
	Timeout       time.Duration
}

// Fetcher returns the rendered HTML of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (string, error)
}

// Session is a browser scoped to one crawl unit. Close must always be
// called; it releases the browser process.
type Session interface {
	Fetcher
	Close() error
}

// Options configure a Session.
type Options struct {
	Engine        string
	Headless      bool
	Delay         time.Duration
	Jitter        time.Duration
	Retry         retry.Policy
	Timeout       time.Duration
	WaitUntil     string
	Humanize      bool
	CookiesPath   string
	ScreenshotDir string
}

// DefaultOptions are the interactive crawl settings.
func DefaultOptions() Options {
	return Options{
		Engine:    EnginePlaywright,
		Headless:  true,
		Delay:     3 * time.Second,
		Jitter:    2 * time.Second,
		Retry:     retry.DefaultPolicy,
		Timeout:   20 * time.Second,
		WaitUntil: WaitDOMContentLoaded,
	}
}

func (o Options) resolve(fo FetchOptions) FetchOptions {
	if fo.Timeout <= 0 {
		fo.Timeout = o.Timeout
	}
	if fo.Timeout <= 0 {
		fo.Timeout = 20 * time.Second
	}
	if fo.WaitUntil == "" {
		fo.WaitUntil = o.WaitUntil
	}
	if fo.WaitUntil == "" {
		fo.WaitUntil = WaitDOMContentLoaded
	}
	if fo.ReadySelector == "" {
		fo.ReadySelector = "body"
	}
	return fo
}

// within cuts the fetch timeout to what is left before ctx's deadline. It
// fails when ctx is already done.
func (fo FetchOptions) within(ctx context.Context) (FetchOptions, error) {
	if err := ctx.Err(); err != nil {
		return fo, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return fo, context.DeadlineExceeded
		}
		if fo.Timeout <= 0 || left < fo.Timeout {
			fo.Timeout = left
		}
	}
	return fo, nil
}

// Open starts a browser session using the configured engine.
func Open(ctx context.Context, opts Options) (Session, error) {
	switch opts.Engine {
	case "", EnginePlaywright:
		s, err := newPlaywrightSession(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case EngineChromedp:
		s, err := newChromedpSession(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported browser engine %q", opts.Engine)
	}
}
