package models

import "time"

// TechSkill is one entry of the candidate's tech stack.
type TechSkill struct {
	Name        string  `json:"name"`
	Level       string  `json:"level"`
	Description *string `json:"description,omitempty"`
}

// UserProfile describes the user the postings are scored against.
// Exactly one exists; it is created empty on first read and replaced
// as a whole on update.
type UserProfile struct {
	TechStack        []TechSkill `json:"tech_stack"`
	ExperienceYears  int         `json:"experience_years"`
	InterestKeywords []string    `json:"interest_keywords"`
	ExcludeKeywords  []string    `json:"exclude_keywords"`
	UpdatedAt        *time.Time  `json:"updated_at,omitempty"`
}

// DefaultProfile is what GetProfile returns before the user saved one.
func DefaultProfile() *UserProfile {
	return &UserProfile{
		TechStack:        []TechSkill{},
		InterestKeywords: []string{},
		ExcludeKeywords:  []string{},
	}
}

// Normalize replaces nil slices so the profile always serialises as arrays.
func (p *UserProfile) Normalize() {
	if p.TechStack == nil {
		p.TechStack = []TechSkill{}
	}
	if p.InterestKeywords == nil {
		p.InterestKeywords = []string{}
	}
	if p.ExcludeKeywords == nil {
		p.ExcludeKeywords = []string{}
	}
}
