package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	fullDateRe  = regexp.MustCompile(`(\d{4})\s*[-./]\s*(\d{1,2})\s*[-./]\s*(\d{1,2})`)
	shortYearRe = regexp.MustCompile(`(?:^|[^\d])(\d{2})[./](\d{1,2})[./](\d{1,2})`)
	monthDayRe  = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})[./](\d{1,2})(?:[^\d./]|$)`)
	daysAgoRe   = regexp.MustCompile(`(\d+)\s*일\s*전`)
	kstLocation = time.FixedZone("KST", 9*60*60)
)

// NormalizeDeadline turns a board's deadline text into YYYY-MM-DD when it
// can be read as a date. A yearless "~ 03/15(금)" more than a month in the
// past is taken to mean next year.
// Anything else ("상시채용", "채용시") is returned cleaned but verbatim.
func NormalizeDeadline(text string, now time.Time) string {
	return normalizeDate(text, now, true)
}

// NormalizePostedAt is NormalizeDeadline for registration dates, where a
// yearless date is assumed to lie in the past.
func NormalizePostedAt(text string, now time.Time) string {
	return normalizeDate(text, now, false)
}

func normalizeDate(text string, now time.Time, future bool) string {
	text = CleanText(text)
	if text == "" {
		return ""
	}
	now = now.In(kstLocation)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, kstLocation)

	switch {
	case strings.Contains(text, "오늘"):
		return today.Format(dateLayout)
	case strings.Contains(text, "내일"):
		return today.AddDate(0, 0, 1).Format(dateLayout)
	case strings.Contains(text, "어제"):
		return today.AddDate(0, 0, -1).Format(dateLayout)
	}

	if m := fullDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return d.Format(dateLayout)
		}
	}
	if m := shortYearRe.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(2000+atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return d.Format(dateLayout)
		}
	}
	if m := daysAgoRe.FindStringSubmatch(text); m != nil {
		return today.AddDate(0, 0, -atoi(m[1])).Format(dateLayout)
	}
	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(today.Year(), atoi(m[1]), atoi(m[2])); ok {
			if future && d.Before(today.AddDate(0, -1, 0)) {
				d = d.AddDate(1, 0, 0)
			}
			if !future && d.After(today) {
				d = d.AddDate(-1, 0, 0)
			}
			return d.Format(dateLayout)
		}
	}
	return text
}

func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, kstLocation)
	// time.Date normalises 02/30 into March
	if d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
