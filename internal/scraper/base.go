// Package scraper defines what a job-board extractor has to provide and the
// small parsing helpers the per-site packages share.
package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"go-jdcrawler/internal/browser"
	"go-jdcrawler/internal/models"
)

// Extractor turns a rendered search page of one job board into drafts.
type Extractor interface {
	// Site is the board this extractor reads.
	Site() models.Site

	// SearchURL is the search results page for keyword.
	SearchURL(keyword string) string

	// ReadySelector marks a rendered result list.
	ReadySelector() string

	// ListPostings extracts every complete card in document order. Cards
	// missing a title, company or link are dropped.
	ListPostings(html string) ([]models.Draft, error)
}

// Description is the detail text of a posting. Some postings are a single
// image, in which case only ImageURL is set.
type Description struct {
	Text     string
	ImageURL string
}

// DescriptionFetcher is implemented by extractors that can read the full
// posting. ok is false when nothing usable was found; it never fails the batch.
type DescriptionFetcher interface {
	FetchFullDescription(ctx context.Context, fetcher browser.Fetcher, url string) (desc Description, ok bool)
}

// DraftEnricher is implemented by extractors that complete drafts from
// lightweight detail requests after listing.
type DraftEnricher interface {
	EnrichDrafts(ctx context.Context, drafts []models.Draft) []models.Draft
}

// ParseDocument wraps goquery so extractors report parse errors uniformly.
func ParseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
