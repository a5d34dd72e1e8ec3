package wanted

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"go-jdcrawler/internal/scraper"
)

type jobPosting struct {
	Type        json.RawMessage `json:"@type"`
	Description string          `json:"description"`
	JobLocation json.RawMessage `json:"jobLocation"`
}

type place struct {
	Address struct {
		Region   string `json:"addressRegion"`
		Locality string `json:"addressLocality"`
	} `json:"address"`
}

func (p jobPosting) isJobPosting() bool {
	var single string
	if json.Unmarshal(p.Type, &single) == nil {
		return single == "JobPosting"
	}
	var many []string
	if json.Unmarshal(p.Type, &many) == nil {
		for _, t := range many {
			if t == "JobPosting" {
				return true
			}
		}
	}
	return false
}

// location joins region and locality of the first place, which can be a
// single object or a list.
func (p jobPosting) location() string {
	raw := bytes.TrimSpace(p.JobLocation)
	if len(raw) == 0 {
		return ""
	}

	var places []place
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &places); err != nil {
			return ""
		}
	} else {
		var single place
		if err := json.Unmarshal(raw, &single); err != nil {
			return ""
		}
		places = append(places, single)
	}

	for _, pl := range places {
		loc := scraper.CleanText(pl.Address.Region + " " + pl.Address.Locality)
		if loc != "" {
			return loc
		}
	}
	return ""
}

func findJobPosting(doc *goquery.Document) (jobPosting, bool) {
	var found jobPosting
	var ok bool
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var posting jobPosting
		if err := json.Unmarshal([]byte(s.Text()), &posting); err != nil {
			return true
		}
		if posting.isJobPosting() {
			found, ok = posting, true
			return false
		}
		return true
	})
	return found, ok
}

const metaLocationMarker = "회사 위치:"

// metaLocation reads "회사 위치: 서울 송파구" from the meta description.
func metaLocation(doc *goquery.Document) string {
	content, _ := doc.Find("meta[name='description']").Attr("content")
	_, after, found := strings.Cut(content, metaLocationMarker)
	if !found {
		return ""
	}
	after, _, _ = strings.Cut(strings.TrimSpace(after), "\n")
	after, _, _ = strings.Cut(after, "자격 요건")
	return scraper.CleanText(after)
}
