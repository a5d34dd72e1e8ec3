package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"go-jdcrawler/internal/models"
)

func (h *Handler) listJobs(c *gin.Context) {
	filter := models.JobFilter{Search: strings.TrimSpace(c.Query("q"))}

	if raw := c.Query("site"); raw != "" {
		site, err := models.ParseSite(raw)
		if err != nil {
			jsonError(c, http.StatusBadRequest, "Invalid site")
			return
		}
		filter.Site = site
	}

	var ok bool
	if filter.Bookmarked, ok = optionalBool(c, "bookmarked"); !ok {
		return
	}
	if filter.Hidden, ok = optionalBool(c, "hidden"); !ok {
		return
	}
	if filter.Limit, ok = intQuery(c, "limit", 100); !ok {
		return
	}
	if filter.Offset, ok = intQuery(c, "offset", 0); !ok {
		return
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		storeError(c, err, "Jobs")
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) jobStats(c *gin.Context) {
	stats, err := h.store.JobStats(c.Request.Context())
	if err != nil {
		storeError(c, err, "Stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) getJob(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	job, err := h.store.GetJob(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Job")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) toggleBookmark(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	job, err := h.store.ToggleBookmark(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Job")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) toggleHidden(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	job, err := h.store.ToggleHidden(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Job")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) newJobsCount(c *gin.Context) {
	ctx := c.Request.Context()
	since, err := h.store.NotificationCursor(ctx)
	if err != nil {
		storeError(c, err, "Cursor")
		return
	}
	count, err := h.store.CountJobsSince(ctx, since)
	if err != nil {
		storeError(c, err, "Jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) markRead(c *gin.Context) {
	if err := h.store.SetNotificationCursor(c.Request.Context(), time.Now()); err != nil {
		storeError(c, err, "Cursor")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
