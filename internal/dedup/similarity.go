package dedup

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TokenSetRatio scores how alike two short texts are on a 0-100 scale,
// ignoring word order, case, punctuation and repeated words. When every
// word of one text appears in the other the score is 100, so
// "Backend Developer (Python)" fully matches "Python Backend Developer".
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var sect, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}

	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	base := joinSorted(sect)
	withA := strings.TrimSpace(base + " " + joinSorted(onlyA))
	withB := strings.TrimSpace(base + " " + joinSorted(onlyB))

	best := Ratio(withA, withB)
	if base != "" {
		best = max(best, Ratio(base, withA), Ratio(base, withB))
	}
	return best
}

// Ratio is the normalised indel similarity 2*LCS/(len(a)+len(b))*100,
// counted in runes.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcsLength(ra, rb)) / float64(total)
}

func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// tokenSet lowercases, folds full-width forms, turns everything that is not
// a letter or digit into a separator and returns the distinct words.
func tokenSet(s string) map[string]struct{} {
	s = strings.ToLower(norm.NFKC.String(s))
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func joinSorted(words []string) string {
	sort.Strings(words)
	return strings.Join(words, " ")
}
