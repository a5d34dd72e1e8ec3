// Package wanted reads search results and postings from wanted.co.kr.
//
// Search cards rarely carry a usable location, so drafts are completed
// from each posting's detail page with a plain HTTP client after listing.
package wanted

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"

	"go-jdcrawler/internal/browser"
	"go-jdcrawler/internal/models"
	"go-jdcrawler/internal/scraper"
)

const (
	Origin = "https://www.wanted.co.kr"

	cardSelector    = "div[class*='JobCard_container']"
	detailUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultDetailTimeout = 10 * time.Second
	DefaultConcurrency   = 16
)

type Extractor struct {
	client      *http.Client
	concurrency int
}

// New creates an extractor whose detail client times out after timeout.
func New(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultDetailTimeout
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Extractor{
		client:      &http.Client{Timeout: timeout, Jar: jar},
		concurrency: DefaultConcurrency,
	}
}

func (e *Extractor) Site() models.Site { return models.SiteWanted }

func (e *Extractor) SearchURL(keyword string) string {
	return Origin + "/search?query=" + url.QueryEscape(keyword) + "&tab=position"
}

func (e *Extractor) ReadySelector() string { return cardSelector }

var (
	titleStrategies = []scraper.FieldStrategy{
		scraper.Text("strong[class*='JobCard_title']"),
		scraper.Text("[class*='JobCard_title']"),
	}
	companyStrategies = []scraper.FieldStrategy{
		scraper.Text("span[class*='__company']"),
		scraper.Text("[class*='JobCard_company_name']"),
	}
	slotStrategies = []scraper.FieldStrategy{
		scraper.Text("span[class*='__location']"),
		scraper.Text("[class*='JobCard_location']"),
	}
	linkStrategies = []scraper.FieldStrategy{
		scraper.Attr("a[href*='/wd/']", "href"),
		scraper.Attr("a[href]", "href"),
	}
)

// ListPostings reads JobCard containers. The slot named "location" on the
// card often shows the required experience instead, so it is classified
// before use.
func (e *Extractor) ListPostings(html string) ([]models.Draft, error) {
	doc, err := scraper.ParseDocument(html)
	if err != nil {
		return nil, err
	}

	var drafts []models.Draft
	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		title := scraper.FirstNonEmpty(card, titleStrategies...)
		company := scraper.FirstNonEmpty(card, companyStrategies...)
		link, ok := scraper.CanonicalURL(Origin, scraper.FirstNonEmpty(card, linkStrategies...))
		if title == "" || company == "" || !ok {
			return
		}

		location, experience := scraper.RouteLocation(scraper.FirstNonEmpty(card, slotStrategies...))
		drafts = append(drafts, models.Draft{
			Title:      title,
			Company:    company,
			URL:        link,
			Site:       models.SiteWanted,
			Location:   location,
			Experience: experience,
		})
	})
	return drafts, nil
}

// EnrichDrafts fills missing locations from the detail pages, one request
// per draft. A failed lookup leaves the draft as it was. Order is kept.
func (e *Extractor) EnrichDrafts(ctx context.Context, drafts []models.Draft) []models.Draft {
	out := make([]models.Draft, len(drafts))
	copy(out, drafts)

	g, ctx := errgroup.WithContext(ctx)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i := range out {
		i := i
		if out[i].Location != "" {
			continue
		}
		g.Go(func() error {
			location, err := e.fetchLocation(ctx, out[i].URL)
			if err != nil {
				log.Printf("      ⚠️ Wanted location lookup failed for %s: %v", out[i].URL, err)
				return nil
			}
			out[i].Location = location
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (e *Extractor) fetchLocation(ctx context.Context, link string) (string, error) {
	doc, err := e.getDocument(ctx, link)
	if err != nil {
		return "", err
	}
	if posting, ok := findJobPosting(doc); ok {
		if loc := posting.location(); loc != "" {
			return loc, nil
		}
	}
	if loc := metaLocation(doc); loc != "" {
		return loc, nil
	}
	return "", nil
}

func (e *Extractor) getDocument(ctx context.Context, link string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", detailUserAgent)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// FetchFullDescription renders the posting and reads the JobDescription
// section, falling back to the JSON-LD description.
func (e *Extractor) FetchFullDescription(ctx context.Context, fetcher browser.Fetcher, link string) (scraper.Description, bool) {
	html, err := fetcher.Fetch(ctx, link, browser.FetchOptions{ReadySelector: "section[class*='JobDescription']"})
	if err != nil {
		log.Printf("      ⚠️ Wanted detail fetch failed for %s: %v", link, err)
		return scraper.Description{}, false
	}
	doc, err := scraper.ParseDocument(html)
	if err != nil {
		return scraper.Description{}, false
	}

	if desc, ok := scraper.ExtractDescription(doc.Selection, Origin, "section[class*='JobDescription']", "[class*='JobContent']"); ok {
		return desc, true
	}
	if posting, ok := findJobPosting(doc); ok && posting.Description != "" {
		return scraper.Description{Text: posting.Description}, true
	}
	return scraper.Description{}, false
}
