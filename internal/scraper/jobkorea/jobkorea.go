// Package jobkorea reads search results and postings from jobkorea.co.kr.
package jobkorea

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"go-jdcrawler/internal/browser"
	"go-jdcrawler/internal/models"
	"go-jdcrawler/internal/scraper"
)

const (
	Origin = "https://www.jobkorea.co.kr"

	cardSelector       = "div[data-sentry-component='CardJob']"
	legacyCardSelector = ".list-post"
	chipSelector       = "div[data-sentry-component='GrayChip'] span, div[class*='GrayChip'] span"
	detailFrame        = "iframe#gib_frame"
)

type Extractor struct {
	now func() time.Time
}

func New() *Extractor {
	return &Extractor{now: time.Now}
}

func (e *Extractor) Site() models.Site { return models.SiteJobKorea }

func (e *Extractor) SearchURL(keyword string) string {
	return Origin + "/Search/?stext=" + url.QueryEscape(keyword)
}

func (e *Extractor) ReadySelector() string { return cardSelector + ", " + legacyCardSelector }

// ListPostings reads the CardJob layout and falls back to the older
// .list-post layout, which is still served to some clients.
func (e *Extractor) ListPostings(html string) ([]models.Draft, error) {
	doc, err := scraper.ParseDocument(html)
	if err != nil {
		return nil, err
	}

	cards := doc.Find(cardSelector)
	parse := e.parseCard
	if cards.Length() == 0 {
		cards = doc.Find(legacyCardSelector)
		parse = e.parseLegacyCard
	}

	now := e.now()
	var drafts []models.Draft
	cards.Each(func(_ int, card *goquery.Selection) {
		if d, ok := parse(card, now); ok {
			drafts = append(drafts, d)
		}
	})
	return drafts, nil
}

var (
	cardLocation = []scraper.FieldStrategy{
		placeChip,
		scraper.Matching(chipSelector, scraper.KindLocation),
	}
	legacyTitle = []scraper.FieldStrategy{
		scraper.Text("h5.title a"),
		scraper.Text(".title a"),
		scraper.Attr(".title a", "title"),
	}
	legacyCompany = []scraper.FieldStrategy{
		scraper.Text("span.company"),
		scraper.Text(".name a"),
		scraper.Text(".name"),
	}
)

func (e *Extractor) parseCard(card *goquery.Selection, now time.Time) (models.Draft, bool) {
	title := scraper.FirstNonEmpty(card, scraper.Text("span[class*='Typography_variant_size18']"))
	company := scraper.FirstNonEmpty(card, scraper.Text("span[class*='Typography_variant_size16']"))
	link, ok := scraper.CanonicalURL(Origin, scraper.FirstNonEmpty(card, scraper.Attr("a[href*='/Recruit/GI_Read/']", "href")))
	if title == "" || company == "" || !ok {
		return models.Draft{}, false
	}

	return models.Draft{
		Title:      title,
		Company:    company,
		URL:        link,
		Site:       models.SiteJobKorea,
		Location:   scraper.FirstNonEmpty(card, cardLocation...),
		Experience: scraper.FirstNonEmpty(card, scraper.Matching(chipSelector, scraper.KindExperience)),
		Salary:     scraper.FirstNonEmpty(card, scraper.Matching(chipSelector, scraper.KindSalary)),
		Deadline:   scraper.NormalizeDeadline(scraper.FirstNonEmpty(card, deadlineChip, deadlineText), now),
	}, true
}

func (e *Extractor) parseLegacyCard(card *goquery.Selection, now time.Time) (models.Draft, bool) {
	title := scraper.FirstNonEmpty(card, legacyTitle...)
	company := scraper.FirstNonEmpty(card, legacyCompany...)
	link, ok := scraper.CanonicalURL(Origin, scraper.FirstNonEmpty(card, scraper.Attr(".title a", "href")))
	if title == "" || company == "" || !ok {
		return models.Draft{}, false
	}

	return models.Draft{
		Title:      title,
		Company:    company,
		URL:        link,
		Site:       models.SiteJobKorea,
		Location:   scraper.FirstNonEmpty(card, scraper.Text(".loc"), scraper.Matching(".etc span", scraper.KindLocation)),
		Experience: scraper.FirstNonEmpty(card, scraper.Text(".exp"), scraper.Matching(".etc span", scraper.KindExperience)),
		Salary:     scraper.FirstNonEmpty(card, scraper.Text(".sal")),
		Deadline:   scraper.NormalizeDeadline(scraper.FirstNonEmpty(card, scraper.Text(".date")), now),
	}, true
}

// placeChip reads the chip carrying the place emoji.
func placeChip(card *goquery.Selection) string {
	chip := card.Find(".emoji--basicemoji-place2").First().Closest("div[data-sentry-component='GrayChip']")
	return scraper.CleanText(chip.Find("span").First().Text())
}

func deadlineChip(card *goquery.Selection) string {
	chip := card.Find(".emoji--basicemoji-calendar").First().Closest("div[data-sentry-component='GrayChip']")
	return scraper.CleanText(chip.Find("span").First().Text())
}

// deadlineText finds "~03/15(일)" or "오늘마감" style spans.
func deadlineText(card *goquery.Selection) string {
	var found string
	card.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := scraper.CleanText(s.Text())
		if strings.HasPrefix(text, "~") || strings.HasSuffix(text, "마감") {
			found = text
			return false
		}
		return true
	})
	return found
}

// FetchFullDescription reads the posting body from the gib_frame iframe,
// falling back to the summary sections of the outer page.
func (e *Extractor) FetchFullDescription(ctx context.Context, fetcher browser.Fetcher, link string) (scraper.Description, bool) {
	html, err := fetcher.Fetch(ctx, link, browser.FetchOptions{ReadySelector: detailFrame + ", article"})
	if err != nil {
		log.Printf("      ⚠️ JobKorea detail fetch failed for %s: %v", link, err)
		return scraper.Description{}, false
	}
	doc, err := scraper.ParseDocument(html)
	if err != nil {
		return scraper.Description{}, false
	}

	if src, ok := doc.Find(detailFrame).Attr("src"); ok {
		if frameURL, ok := scraper.ResolveURL(Origin, src); ok {
			inner, err := fetcher.Fetch(ctx, frameURL, browser.FetchOptions{})
			if err != nil {
				log.Printf("      ⚠️ JobKorea detail frame failed for %s: %v", frameURL, err)
			} else if frameDoc, err := scraper.ParseDocument(inner); err == nil {
				if desc, ok := scraper.ExtractDescription(frameDoc.Selection, Origin, ".detailed-summary-contents", "#detail-content", "body"); ok {
					return desc, true
				}
			}
		}
	}

	return scraper.ExtractDescription(doc.Selection, Origin, ".artReadDetail", "section.section-content", "article")
}
