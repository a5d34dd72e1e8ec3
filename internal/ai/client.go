// Package ai scores postings against the user profile with an LLM.
package ai

import (
	"context"
	"fmt"
	"strings"

	"go-jdcrawler/internal/models"
)

// Result is what scoring produced. Status is completed or failed.
type Result struct {
	Score   int
	Summary string
	Status  models.ScoreStatus
}

// Scorer rates how well a posting suits the profile. It never returns an
// error: every failure is reported as a failed Result.
type Scorer interface {
	Score(ctx context.Context, job *models.Job, profile *models.UserProfile) Result
	Enabled() bool
}

const disabledSummary = "AI analysis is disabled (missing API key)."

// Disabled is the scorer used when no API key is configured.
type Disabled struct{}

func (Disabled) Score(context.Context, *models.Job, *models.UserProfile) Result {
	return Result{Score: 0, Summary: disabledSummary, Status: models.ScoreFailed}
}

func (Disabled) Enabled() bool { return false }

// Apply stores an AI result on job. On failure the score already on the
// job, the rule score, is kept.
func (r Result) Apply(job *models.Job) {
	job.Summary = models.Optional(r.Summary)
	job.ScoreStatus = r.Status
	if r.Status == models.ScoreCompleted {
		job.Score = r.Score
	}
}

func failed(err error) Result {
	return Result{Summary: fmt.Sprintf("Analysis failed: %v", err), Status: models.ScoreFailed}
}

// buildSystemPrompt creates the system instruction for the AI model
func buildSystemPrompt() string {
	return `You are a professional technical recruiter and career advisor. Analyze job postings against a candidate's profile and return a JSON object with 'score' (0-100) and 'summary' (3-4 concise bullet points in Korean).
Return ONLY the raw JSON object. Do NOT wrap it in markdown blocks.`
}

// buildUserPrompt describes the candidate and the posting
func buildUserPrompt(job *models.Job, profile *models.UserProfile) string {
	skills := make([]string, 0, len(profile.TechStack))
	for _, s := range profile.TechStack {
		detail := fmt.Sprintf("%s (%s", s.Name, s.Level)
		if s.Description != nil && *s.Description != "" {
			detail += " - " + *s.Description
		}
		skills = append(skills, detail+")")
	}

	description := models.Deref(job.Description)
	if description == "" {
		description = "No detailed description available."
	}
	experience := models.Deref(job.Experience)
	if experience == "" {
		experience = "Not specified"
	}

	return fmt.Sprintf(`Candidate Profile:
- Detailed Tech Stack & Proficiency: %s
- Experience: %d years
- Interests: %s
- Exclude Keywords: %s

Job Details:
- Title: %s
- Company: %s
- Experience Required: %s
- Description: %s

Task:
1. Analyze the match between the candidate's skill levels and the job requirements.
2. If a job requires "Expert" or "Lead" level in a skill where the candidate is a "Beginner", reflect this in the score.
3. Consider the specific proficiency descriptions.
4. Evaluate if the job matches the candidate's career interests.
5. Provide a suitability score (0-100).
6. Provide a summary in Korean (3-4 bullet points). Be honest about gaps in skill levels.

Return ONLY a JSON object: {"score": number, "summary": "string"}`,
		strings.Join(skills, ", "), profile.ExperienceYears,
		strings.Join(profile.InterestKeywords, ", "), strings.Join(profile.ExcludeKeywords, ", "),
		job.Title, job.Company, experience, description)
}
