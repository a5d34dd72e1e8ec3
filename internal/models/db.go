package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Site identifies a job board the crawler knows how to read.
type Site string

const (
	SiteSaramin  Site = "saramin"
	SiteJobKorea Site = "jobkorea"
	SiteWanted   Site = "wanted"
)

// AllSites is the crawl order used when no site is requested explicitly.
var AllSites = []Site{SiteSaramin, SiteJobKorea, SiteWanted}

var ErrInvalidSite = errors.New("invalid site")

// ParseSite validates a user supplied site name.
func ParseSite(s string) (Site, error) {
	site := Site(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSites {
		if site == known {
			return site, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSite, s)
}

type ScoreStatus string

const (
	ScorePending   ScoreStatus = "pending"
	ScoreCompleted ScoreStatus = "completed"
	ScoreFiltered  ScoreStatus = "filtered"
	ScoreFailed    ScoreStatus = "failed"
)

// Draft is a freshly extracted posting that has not been reconciled
// against the store yet. Empty optional fields mean "not found on the card".
type Draft struct {
	Title      string `json:"title"`
	Company    string `json:"company"`
	URL        string `json:"url"`
	Site       Site   `json:"site"`
	Location   string `json:"location,omitempty"`
	Salary     string `json:"salary,omitempty"`
	Experience string `json:"experience,omitempty"`
	PostedAt   string `json:"posted_at,omitempty"`
	Deadline   string `json:"deadline,omitempty"`
}

// Job is a stored posting. URL is unique across the store.
type Job struct {
	ID                  int64       `json:"id"`
	Title               string      `json:"title"`
	Company             string      `json:"company"`
	URL                 string      `json:"url"`
	Site                Site        `json:"site"`
	Location            *string     `json:"location,omitempty"`
	Salary              *string     `json:"salary,omitempty"`
	Experience          *string     `json:"experience,omitempty"`
	PostedAt            *string     `json:"posted_at,omitempty"`
	Deadline            *string     `json:"deadline,omitempty"`
	Description         *string     `json:"description,omitempty"`
	DescriptionImageURL *string     `json:"description_image_url,omitempty"`
	IsBookmarked        bool        `json:"is_bookmarked"`
	IsHidden            bool        `json:"is_hidden"`
	Score               int         `json:"score"`
	Summary             *string     `json:"summary,omitempty"`
	ScoreStatus         ScoreStatus `json:"score_status"`
	CreatedAt           time.Time   `json:"created_at"`
}

// NewJobFromDraft builds an unsaved Job with pending score status.
func NewJobFromDraft(d Draft) *Job {
	return &Job{
		Title:       d.Title,
		Company:     d.Company,
		URL:         d.URL,
		Site:        d.Site,
		Location:    Optional(d.Location),
		Salary:      Optional(d.Salary),
		Experience:  Optional(d.Experience),
		PostedAt:    Optional(d.PostedAt),
		Deadline:    Optional(d.Deadline),
		ScoreStatus: ScorePending,
	}
}

// HasDescription reports whether enrichment already filled the description.
func (j *Job) HasDescription() bool {
	return j.Description != nil && strings.TrimSpace(*j.Description) != ""
}

// Optional turns a blank string into nil.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// JobFilter narrows ListJobs. Nil pointers mean "don't care".
type JobFilter struct {
	Search     string
	Site       Site
	Bookmarked *bool
	Hidden     *bool
	Limit      int
	Offset     int
}

var ErrEmptyKeyword = errors.New("keyword cannot be empty")

// Keyword is a saved search term driving scheduled crawls.
type Keyword struct {
	ID        int64     `json:"id"`
	Keyword   string    `json:"keyword"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeKeyword trims the keyword and rejects blank input.
func NormalizeKeyword(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyKeyword
	}
	return s, nil
}
