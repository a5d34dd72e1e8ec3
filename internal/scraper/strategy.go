package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// FieldStrategy reads one field from a card, returning "" when it does not
// apply.
type FieldStrategy func(card *goquery.Selection) string

// FirstNonEmpty runs strategies in order and returns the first non-empty
// result.
func FirstNonEmpty(card *goquery.Selection, strategies ...FieldStrategy) string {
	for _, s := range strategies {
		if v := s(card); v != "" {
			return v
		}
	}
	return ""
}

// Text reads the cleaned text of the first match of selector.
func Text(selector string) FieldStrategy {
	return func(card *goquery.Selection) string {
		return CleanText(card.Find(selector).First().Text())
	}
}

// Attr reads attr of the first match of selector.
func Attr(selector, attr string) FieldStrategy {
	return func(card *goquery.Selection) string {
		v, _ := card.Find(selector).First().Attr(attr)
		return strings.TrimSpace(v)
	}
}

// Matching returns the first text among selector matches that classifies
// as kind.
func Matching(selector string, kind Kind) FieldStrategy {
	return func(card *goquery.Selection) string {
		var found string
		card.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := CleanText(s.Text())
			if text != "" && Classify(text) == kind {
				found = text
				return false
			}
			return true
		})
		return found
	}
}

// CleanText composes Hangul to NFC and collapses whitespace. Boards serve
// decomposed jamo now and then, which would otherwise defeat dedup.
func CleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
