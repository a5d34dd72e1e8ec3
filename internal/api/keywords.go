package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-jdcrawler/internal/models"
)

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

type keywordActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *Handler) listKeywords(c *gin.Context) {
	activeOnly, ok := optionalBool(c, "active")
	if !ok {
		return
	}
	keywords, err := h.store.ListKeywords(c.Request.Context(), activeOnly != nil && *activeOnly)
	if err != nil {
		storeError(c, err, "Keywords")
		return
	}
	if keywords == nil {
		keywords = []models.Keyword{}
	}
	c.JSON(http.StatusOK, keywords)
}

func (h *Handler) createKeyword(c *gin.Context) {
	var req keywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	kw, err := h.store.CreateKeyword(c.Request.Context(), req.Keyword)
	if errors.Is(err, models.ErrEmptyKeyword) {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		storeError(c, err, "Keyword")
		return
	}
	c.JSON(http.StatusCreated, kw)
}

func (h *Handler) setKeywordActive(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req keywordActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		jsonError(c, http.StatusBadRequest, "is_active is required")
		return
	}
	kw, err := h.store.SetKeywordActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		storeError(c, err, "Keyword")
		return
	}
	c.JSON(http.StatusOK, kw)
}

func (h *Handler) deleteKeyword(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.store.DeleteKeyword(c.Request.Context(), id); err != nil {
		storeError(c, err, "Keyword")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := h.store.GetProfile(c.Request.Context())
	if err != nil {
		storeError(c, err, "Profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var profile models.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid profile: "+err.Error())
		return
	}
	if profile.ExperienceYears < 0 {
		jsonError(c, http.StatusBadRequest, "experience_years must not be negative")
		return
	}
	for _, s := range profile.TechStack {
		if s.Name == "" {
			jsonError(c, http.StatusBadRequest, "tech_stack entries need a name")
			return
		}
	}
	profile.Normalize()

	saved, err := h.store.UpdateProfile(c.Request.Context(), &profile)
	if err != nil {
		storeError(c, err, "Profile")
		return
	}
	c.JSON(http.StatusOK, saved)
}
