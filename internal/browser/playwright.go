package browser

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/playwright-community/playwright-go"

	"go-jdcrawler/internal/ratelimit"
	"go-jdcrawler/internal/retry"
)

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	limiter *ratelimit.Limiter
	opts    Options
	shots   *ScreenshotDebugger
}

func newPlaywrightSession(opts Options) (*playwrightSession, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     launchArgs,
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	s := &playwrightSession{
		pw:      pw,
		browser: browser,
		limiter: ratelimit.New(opts.Delay, opts.Jitter),
		opts:    opts,
		shots:   NewScreenshotDebugger(opts.ScreenshotDir),
	}

	s.context, err = browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(userAgent),
		Viewport:          &playwright.Size{Width: viewportWidth, Height: viewportHeight},
		DeviceScaleFactor: playwright.Float(1),
		Locale:            playwright.String(locale),
		TimezoneId:        playwright.String(timezoneID),
		ExtraHttpHeaders:  extraHeaders(),
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}

	if err := s.context.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		s.Close()
		return nil, fmt.Errorf("could not install stealth script: %w", err)
	}

	if opts.CookiesPath != "" {
		cookies, err := LoadCookies(opts.CookiesPath)
		if err != nil {
			log.Printf("⚠️ Could not load cookies from %s: %v. Continuing.", opts.CookiesPath, err)
		} else if len(cookies) > 0 {
			pwCookies := make([]playwright.OptionalCookie, len(cookies))
			for i, c := range cookies {
				pwCookies[i] = c.ToPlaywright()
			}
			if err := s.context.AddCookies(pwCookies); err != nil {
				log.Printf("⚠️ Could not add cookies: %v", err)
			} else {
				log.Printf("🍪 Loaded %d cookies", len(cookies))
			}
		}
	}

	return s, nil
}

// Fetch renders url in a fresh page, retrying transient failures.
func (s *playwrightSession) Fetch(ctx context.Context, target string, fo FetchOptions) (string, error) {
	fo = s.opts.resolve(fo)

	var html string
	err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context, attempt int) error {
		if err := s.limiter.Acquire(ctx); err != nil {
			return retry.Permanent(err)
		}
		content, err := s.fetchOnce(ctx, target, fo)
		if err != nil {
			return err
		}
		html = content
		return nil
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

// fetchOnce renders target in a new page. playwright calls take no
// context, so the page timeouts are cut to ctx's deadline and the page is
// closed when ctx ends, which aborts whatever call is in flight.
func (s *playwrightSession) fetchOnce(ctx context.Context, target string, fo FetchOptions) (string, error) {
	fo, err := fo.within(ctx)
	if err != nil {
		return "", retry.Permanent(err)
	}

	page, err := s.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("new page: %w", err)
	}
	closePage := sync.OnceFunc(func() {
		if err := page.Close(); err != nil {
			log.Printf("⚠️ Failed to close page: %v", err)
		}
	})
	defer closePage()
	stop := context.AfterFunc(ctx, closePage)
	defer stop()

	timeout := playwright.Float(float64(fo.Timeout.Milliseconds()))
	if _, err := page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(fo.WaitUntil),
		Timeout:   timeout,
	}); err != nil {
		if ctx.Err() != nil {
			return "", retry.Permanent(fmt.Errorf("navigate %s: %w", target, ctx.Err()))
		}
		return "", fmt.Errorf("navigate %s: %w", target, err)
	}

	if title, _ := page.Title(); isChallengeTitle(title) {
		s.shots.CaptureAndLog(page, "challenge-"+hostOf(target), "🚨 Anti-bot challenge detected on "+target)
		return "", fmt.Errorf("%s: %w", target, ErrBlocked)
	}

	if _, err := page.WaitForSelector(fo.ReadySelector, playwright.PageWaitForSelectorOptions{
		Timeout: timeout,
	}); err != nil {
		log.Printf("    ⏳ Timeout waiting for %q on %s, using partial content", fo.ReadySelector, target)
	}

	if s.opts.Humanize {
		if err := HumanScroll(page); err != nil {
			log.Printf("    ⚠️ Scroll failed: %v", err)
		}
		if err := MouseJiggle(page); err != nil {
			log.Printf("    ⚠️ Mouse move failed: %v", err)
		}
	}

	html, err := page.Content()
	if err != nil {
		if ctx.Err() != nil {
			return "", retry.Permanent(fmt.Errorf("read content: %w", ctx.Err()))
		}
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}

// Close releases the context, the browser and the driver, in that order.
func (s *playwrightSession) Close() error {
	var firstErr error
	if s.context != nil {
		if err := s.context.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func waitUntilState(policy string) *playwright.WaitUntilState {
	switch policy {
	case WaitLoad:
		return playwright.WaitUntilStateLoad
	case WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	case WaitCommit:
		return playwright.WaitUntilStateCommit
	default:
		return playwright.WaitUntilStateDomcontentloaded
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "page"
	}
	return u.Host
}
