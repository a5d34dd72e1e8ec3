package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSite(t *testing.T) {
	site, err := ParseSite(" Wanted ")
	require.NoError(t, err)
	assert.Equal(t, SiteWanted, site)

	_, err = ParseSite("linkedin")
	assert.ErrorIs(t, err, ErrInvalidSite)
}

func TestNormalizeKeyword(t *testing.T) {
	kw, err := NormalizeKeyword("  golang  ")
	require.NoError(t, err)
	assert.Equal(t, "golang", kw)

	_, err = NormalizeKeyword("   ")
	assert.ErrorIs(t, err, ErrEmptyKeyword)
}

func TestNewJobFromDraft(t *testing.T) {
	job := NewJobFromDraft(Draft{
		Title:      "Backend Engineer",
		Company:    "Acme",
		URL:        "https://example.com/1",
		Site:       SiteSaramin,
		Location:   "서울",
		Experience: "  ",
	})

	assert.Equal(t, ScorePending, job.ScoreStatus)
	assert.Equal(t, "서울", Deref(job.Location))
	assert.Nil(t, job.Experience, "blank fields stay absent")
	assert.False(t, job.HasDescription())
}

func TestDefaultProfileSerialisesEmptyArrays(t *testing.T) {
	data, err := json.Marshal(DefaultProfile())
	require.NoError(t, err)
	assert.JSONEq(t, `{"tech_stack":[],"experience_years":0,"interest_keywords":[],"exclude_keywords":[]}`, string(data))
}
