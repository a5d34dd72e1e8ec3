package scraper

import (
	"strings"
	"unicode"
)

// Kind is what a short condition text on a card describes.
type Kind int

const (
	KindUnknown Kind = iota
	KindLocation
	KindExperience
	KindSalary
	KindEducation
)

func (k Kind) String() string {
	switch k {
	case KindLocation:
		return "location"
	case KindExperience:
		return "experience"
	case KindSalary:
		return "salary"
	case KindEducation:
		return "education"
	default:
		return "unknown"
	}
}

var (
	educationMarkers  = []string{"학력", "대졸", "고졸", "초대졸", "석사", "박사"}
	salaryMarkers     = []string{"만원", "연봉", "월급", "회사내규"}
	experienceMarkers = []string{"신입", "경력", "무관"}
	regionMarkers     = []string{
		"서울", "경기", "인천", "부산", "대구", "광주", "대전", "울산", "세종",
		"강원", "충북", "충남", "전북", "전남", "경북", "경남", "제주",
		"전국", "해외", "재택",
	}
)

// Classify decides which field a condition text belongs to. Education and
// salary win over experience, experience wins over location.
func Classify(text string) Kind {
	text = strings.TrimSpace(text)
	if text == "" {
		return KindUnknown
	}
	switch {
	case containsAny(text, educationMarkers):
		return KindEducation
	case containsAny(text, salaryMarkers):
		return KindSalary
	case containsAny(text, experienceMarkers), strings.HasSuffix(text, "년"), startsWithDigit(text):
		return KindExperience
	case containsAny(text, regionMarkers):
		return KindLocation
	default:
		return KindUnknown
	}
}

// LooksLikeExperience reports whether text would be misfiled as a location.
func LooksLikeExperience(text string) bool {
	return Classify(text) == KindExperience
}

// RouteLocation splits a combined slot such as "서울 강남구 · 경력 3-5년" or
// "서울 강남구 경력 3년" and returns the location part and the experience
// part, either possibly empty. A part matching no marker is taken as the
// location only when no region was recognised.
func RouteLocation(text string) (location, experience string) {
	var unknown string
	var parts []string
	for _, p := range strings.FieldsFunc(text, func(r rune) bool { return r == '·' || r == '|' }) {
		p = CleanText(p)
		if LooksLikeExperience(p) && containsAny(p, regionMarkers) {
			parts = append(parts, splitMixed(p)...)
			continue
		}
		parts = append(parts, p)
	}
	for _, p := range parts {
		switch Classify(p) {
		case KindExperience:
			if experience == "" {
				experience = p
			}
		case KindLocation:
			if location == "" {
				location = p
			}
		case KindUnknown:
			if unknown == "" {
				unknown = p
			}
		}
	}
	if location == "" {
		location = unknown
	}
	return location, experience
}

// splitMixed cuts a slot without separators at each word where it turns
// from region to experience or back. Unmarked words such as "강남구" stay
// with the word before them.
func splitMixed(text string) []string {
	var (
		parts   []string
		current []string
		prev    Kind
	)
	for _, word := range strings.Fields(text) {
		kind := wordKind(word)
		if kind != KindUnknown && prev != KindUnknown && kind != prev {
			parts = append(parts, strings.Join(current, " "))
			current = nil
		}
		if kind != KindUnknown {
			prev = kind
		}
		current = append(current, word)
	}
	if len(current) > 0 {
		parts = append(parts, strings.Join(current, " "))
	}
	return parts
}

// wordKind is stricter than Classify: a leading digit alone does not make
// a word experience, so "2호선" stays with the location.
func wordKind(word string) Kind {
	switch {
	case containsAny(word, experienceMarkers), strings.HasSuffix(word, "년"):
		return KindExperience
	case containsAny(word, regionMarkers):
		return KindLocation
	default:
		return KindUnknown
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}
