// Package filter applies the local rules that run before any paid AI call.
package filter

import (
	"fmt"
	"strings"

	"go-jdcrawler/internal/models"
)

// Verdict is the outcome of the local rules for one posting.
type Verdict struct {
	Filtered bool
	// MatchedKeyword is the exclude keyword that filtered the posting.
	MatchedKeyword string
	Score          int
	Summary        string
}

// jobText is what keywords and skills are matched against.
func jobText(job *models.Job) string {
	return strings.ToLower(job.Title + " " + models.Deref(job.Description))
}

// ExcludedBy returns the first exclude keyword contained in the posting's
// title or description, ignoring case.
func ExcludedBy(job *models.Job, excludeKeywords []string) (string, bool) {
	text := jobText(job)
	for _, kw := range excludeKeywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(text, needle) {
			return kw, true
		}
	}
	return "", false
}

// RuleScore is the share of the profile's tech stack named in the posting,
// 0-100. An empty stack scores 0.
func RuleScore(job *models.Job, stack []models.TechSkill) int {
	if len(stack) == 0 {
		return 0
	}
	text := jobText(job)
	matched := 0
	for _, skill := range stack {
		name := strings.ToLower(strings.TrimSpace(skill.Name))
		if name != "" && strings.Contains(text, name) {
			matched++
		}
	}
	return matched * 100 / len(stack)
}

// Evaluate runs the exclude check and, when it passes, the rule score.
func Evaluate(job *models.Job, profile *models.UserProfile) Verdict {
	if kw, ok := ExcludedBy(job, profile.ExcludeKeywords); ok {
		return Verdict{
			Filtered:       true,
			MatchedKeyword: kw,
			Summary:        fmt.Sprintf("제외 키워드 '%s' 포함됨", kw),
		}
	}
	return Verdict{Score: RuleScore(job, profile.TechStack)}
}

// Apply writes v onto job. A filtered posting gets status filtered and score
// 0; otherwise the rule score is stored and the status left for the AI step.
func (v Verdict) Apply(job *models.Job) {
	job.Score = v.Score
	if v.Filtered {
		job.ScoreStatus = models.ScoreFiltered
		job.Summary = models.Optional(v.Summary)
	}
}
