package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minDescriptionLength filters out content areas that only hold a heading
// or a "see attached image" line.
const minDescriptionLength = 30

// ExtractDescription returns the text of the first selector whose content
// is long enough. When no area has enough text but one of them holds an
// image, the image is returned instead since some postings are image-only.
func ExtractDescription(root *goquery.Selection, origin string, selectors ...string) (Description, bool) {
	var image string
	for _, sel := range selectors {
		area := root.Find(sel).First()
		if area.Length() == 0 {
			continue
		}
		area.Find("script, style, noscript").Remove()

		text := cleanBlock(area.Text())
		if len([]rune(text)) >= minDescriptionLength {
			return Description{Text: text, ImageURL: firstImage(area, origin)}, true
		}
		if image == "" {
			image = firstImage(area, origin)
		}
	}
	if image != "" {
		return Description{ImageURL: image}, true
	}
	return Description{}, false
}

func firstImage(area *goquery.Selection, origin string) string {
	var found string
	area.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		if src == "" {
			src, _ = img.Attr("data-src")
		}
		if strings.HasPrefix(src, "data:") {
			return true
		}
		if u, ok := ResolveURL(origin, src); ok {
			found = u
			return false
		}
		return true
	})
	return found
}

// cleanBlock keeps line structure but drops blank lines and padding.
func cleanBlock(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = CleanText(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
