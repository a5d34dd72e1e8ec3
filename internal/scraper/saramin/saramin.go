// Package saramin reads search results and postings from saramin.co.kr.
package saramin

import (
	"context"
	"log"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"go-jdcrawler/internal/browser"
	"go-jdcrawler/internal/models"
	"go-jdcrawler/internal/scraper"
)

const (
	Origin = "https://www.saramin.co.kr"

	cardSelector      = "div.item_recruit"
	conditionSelector = ".job_condition span"
	detailFrame       = "iframe#iframe_content_0"
)

// identityParams are the query parameters that identify a posting; the
// rest are search tracking.
var identityParams = []string{"rec_idx"}

type Extractor struct {
	now func() time.Time
}

func New() *Extractor {
	return &Extractor{now: time.Now}
}

func (e *Extractor) Site() models.Site { return models.SiteSaramin }

func (e *Extractor) SearchURL(keyword string) string {
	return Origin + "/zf_user/search?searchword=" + url.QueryEscape(keyword)
}

func (e *Extractor) ReadySelector() string { return cardSelector }

var (
	titleStrategies = []scraper.FieldStrategy{
		scraper.Text(".job_tit a"),
		scraper.Attr(".job_tit a", "title"),
	}
	companyStrategies = []scraper.FieldStrategy{
		scraper.Text(".corp_name a"),
		scraper.Text(".corp_name"),
	}
	locationStrategies = []scraper.FieldStrategy{
		scraper.Text(".job_condition .work_place"),
		scraper.Matching(conditionSelector, scraper.KindLocation),
		firstUnclassifiedCondition,
	}
	experienceStrategies = []scraper.FieldStrategy{
		scraper.Text(".job_condition .career"),
		scraper.Matching(conditionSelector, scraper.KindExperience),
	}
	salaryStrategies = []scraper.FieldStrategy{
		scraper.Matching(conditionSelector, scraper.KindSalary),
	}
)

// ListPostings reads every div.item_recruit card.
func (e *Extractor) ListPostings(html string) ([]models.Draft, error) {
	doc, err := scraper.ParseDocument(html)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var drafts []models.Draft
	doc.Find(cardSelector).Each(func(i int, card *goquery.Selection) {
		title := scraper.FirstNonEmpty(card, titleStrategies...)
		company := scraper.FirstNonEmpty(card, companyStrategies...)
		link, ok := scraper.CanonicalURL(Origin, scraper.FirstNonEmpty(card, scraper.Attr(".job_tit a", "href")), identityParams...)
		if title == "" || company == "" || !ok {
			return
		}

		drafts = append(drafts, models.Draft{
			Title:      title,
			Company:    company,
			URL:        link,
			Site:       models.SiteSaramin,
			Location:   scraper.FirstNonEmpty(card, locationStrategies...),
			Experience: scraper.FirstNonEmpty(card, experienceStrategies...),
			Salary:     scraper.FirstNonEmpty(card, salaryStrategies...),
			Deadline:   scraper.NormalizeDeadline(scraper.FirstNonEmpty(card, scraper.Text(".job_date .date")), now),
			PostedAt:   scraper.NormalizePostedAt(scraper.FirstNonEmpty(card, scraper.Text(".job_day")), now),
		})
	})
	return drafts, nil
}

// firstUnclassifiedCondition is the positional fallback: saramin lists the
// location first, so the first condition that is neither experience, salary
// nor education is taken.
func firstUnclassifiedCondition(card *goquery.Selection) string {
	var found string
	card.Find(conditionSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := scraper.CleanText(s.Text())
		if text != "" && scraper.Classify(text) == scraper.KindUnknown {
			found = text
			return false
		}
		return true
	})
	return found
}

// FetchFullDescription reads the posting body, which saramin serves from a
// separate document embedded in an iframe.
func (e *Extractor) FetchFullDescription(ctx context.Context, fetcher browser.Fetcher, link string) (scraper.Description, bool) {
	html, err := fetcher.Fetch(ctx, link, browser.FetchOptions{ReadySelector: detailFrame + ", .jv_cont"})
	if err != nil {
		log.Printf("      ⚠️ Saramin detail fetch failed for %s: %v", link, err)
		return scraper.Description{}, false
	}
	doc, err := scraper.ParseDocument(html)
	if err != nil {
		return scraper.Description{}, false
	}

	if src, ok := doc.Find(detailFrame).Attr("src"); ok {
		if frameURL, ok := scraper.ResolveURL(Origin, src); ok {
			if desc, ok := fetchFrame(ctx, fetcher, frameURL); ok {
				return desc, true
			}
		}
	}

	return scraper.ExtractDescription(doc.Selection, Origin, ".jv_cont .jv_detail", ".user_content", ".jv_cont")
}

func fetchFrame(ctx context.Context, fetcher browser.Fetcher, frameURL string) (scraper.Description, bool) {
	html, err := fetcher.Fetch(ctx, frameURL, browser.FetchOptions{ReadySelector: ".user_content"})
	if err != nil {
		log.Printf("      ⚠️ Saramin detail frame failed for %s: %v", frameURL, err)
		return scraper.Description{}, false
	}
	doc, err := scraper.ParseDocument(html)
	if err != nil {
		return scraper.Description{}, false
	}
	return scraper.ExtractDescription(doc.Selection, Origin, ".user_content", "body")
}
