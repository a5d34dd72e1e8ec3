package browser

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"go-jdcrawler/internal/ratelimit"
	"go-jdcrawler/internal/retry"
)

// chromedpSession drives Chrome over CDP directly. Navigation always
// waits for the load event; the wait-until policy only matters for
// playwright.
type chromedpSession struct {
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	limiter       *ratelimit.Limiter
	opts          Options
	shots         *ScreenshotDebugger
}

func newChromedpSession(ctx context.Context, opts Options) (*chromedpSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("lang", locale),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(viewportWidth, viewportHeight),
	)
	if p := os.Getenv("CHROME_PATH"); p != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(p))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &chromedpSession{
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		limiter:       ratelimit.New(opts.Delay, opts.Jitter),
		opts:          opts,
		shots:         NewScreenshotDebugger(opts.ScreenshotDir),
	}

	// ensure Chrome starts
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("could not launch chrome: %w", err)
	}

	if opts.CookiesPath != "" {
		cookies, err := LoadCookies(opts.CookiesPath)
		if err != nil {
			log.Printf("⚠️ Could not load cookies from %s: %v. Continuing.", opts.CookiesPath, err)
		} else if err := chromedp.Run(browserCtx, setCookies(cookies)); err != nil {
			log.Printf("⚠️ Could not add cookies: %v", err)
		} else {
			log.Printf("🍪 Loaded %d cookies", len(cookies))
		}
	}

	return s, nil
}

func setCookies(cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				params = params.WithExpires(&expires)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

func (s *chromedpSession) Fetch(ctx context.Context, target string, fo FetchOptions) (string, error) {
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

func (s *chromedpSession) fetchOnce(ctx context.Context, target string, fo FetchOptions) (string, error) {
	// cancelling the tab context closes the tab
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	if err := chromedp.Run(tabCtx); err != nil {
		return "", fmt.Errorf("new tab: %w", err)
	}
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	navCtx, cancelNav := context.WithTimeout(tabCtx, fo.Timeout)
	defer cancelNav()
	err := chromedp.Run(navCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(toNetworkHeaders(extraHeaders())),
		emulation.SetTimezoneOverride(timezoneID),
		emulation.SetLocaleOverride().WithLocale(locale),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(target),
	)
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", target, err)
	}

	var title string
	if err := chromedp.Run(tabCtx, chromedp.Title(&title)); err == nil && isChallengeTitle(title) {
		var png []byte
		if err := chromedp.Run(tabCtx, chromedp.FullScreenshot(&png, 80)); err == nil {
			s.shots.SaveAndLog(png, "challenge-"+hostOf(target), "🚨 Anti-bot challenge detected on "+target)
		}
		return "", fmt.Errorf("%s: %w", target, ErrBlocked)
	}

	readyCtx, cancelReady := context.WithTimeout(tabCtx, fo.Timeout)
	defer cancelReady()
	if err := chromedp.Run(readyCtx, chromedp.WaitReady(fo.ReadySelector, chromedp.ByQuery)); err != nil {
		log.Printf("    ⏳ Timeout waiting for %q on %s, using partial content", fo.ReadySelector, target)
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}

func (s *chromedpSession) Close() error {
	s.cancelBrowser()
	s.cancelAlloc()
	return nil
}

func toNetworkHeaders(h map[string]string) network.Headers {
	out := make(network.Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
