package scraper

import (
	"context"
	"fmt"
	"sync"

	"go-jdcrawler/internal/browser"
)

// StaticFetcher serves canned HTML by URL. It is used by extractor tests
// and by offline crawls against saved pages.
type StaticFetcher struct {
	mu    sync.Mutex
	Pages map[string]string
	Calls []string
}

func (f *StaticFetcher) Fetch(_ context.Context, url string, _ browser.FetchOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, url)
	html, ok := f.Pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return html, nil
}

// Close implements browser.Session.
func (f *StaticFetcher) Close() error { return nil }
