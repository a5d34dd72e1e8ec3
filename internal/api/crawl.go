package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-jdcrawler/internal/crawler"
	"go-jdcrawler/internal/database"
	"go-jdcrawler/internal/models"
	"go-jdcrawler/internal/runlock"
	"go-jdcrawler/internal/scheduler"
)

type crawlRequest struct {
	Site    string `json:"site"`
	Keyword string `json:"keyword"`
}

type crawlResponse struct {
	Status      string        `json:"status"`
	Site        models.Site   `json:"site"`
	Keyword     string        `json:"keyword"`
	JobsCrawled int           `json:"jobs_crawled"`
	Message     string        `json:"message"`
	Stats       crawler.Stats `json:"stats"`
}

type crawlStatusResponse struct {
	State string `json:"status"`
	scheduler.Status
}

// crawl runs one (site, keyword) and answers when it is done.
func (h *Handler) crawl(c *gin.Context) {
	var req crawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	site, err := models.ParseSite(req.Site)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "Invalid site")
		return
	}
	keyword, err := models.NormalizeKeyword(req.Keyword)
	if err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.crawler.CrawlKeyword(c.Request.Context(), keyword, []models.Site{site})
	switch {
	case errors.Is(err, runlock.ErrLocked):
		jsonError(c, http.StatusConflict, "a crawl is already running")
		return
	case errors.Is(err, models.ErrInvalidSite), errors.Is(err, models.ErrEmptyKeyword):
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("[api] crawl %s/%q: %v", site, keyword, err)
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, crawlResponse{
		Status:      "completed",
		Site:        site,
		Keyword:     keyword,
		JobsCrawled: stats.Processed,
		Message:     fmt.Sprintf("Successfully crawled %d jobs from %s", stats.Processed, site),
		Stats:       stats,
	})
}

func (h *Handler) crawlAll(c *gin.Context) {
	if !h.scheduler.RunNow() {
		jsonError(c, http.StatusConflict, "a crawl is already running")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "message": "Crawling started in background"})
}

func (h *Handler) crawlStatus(c *gin.Context) {
	st := h.scheduler.Status()
	state := "stopped"
	switch {
	case st.Running:
		state = "crawling"
	case st.Enabled:
		state = "scheduled"
	}
	c.JSON(http.StatusOK, crawlStatusResponse{State: state, Status: st})
}

type analysisResponse struct {
	Score   int                `json:"score"`
	Summary string             `json:"summary"`
	Status  models.ScoreStatus `json:"status"`
}

func (h *Handler) analyze(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	job, err := h.crawler.Analyze(c.Request.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		jsonError(c, http.StatusNotFound, "Job not found")
		return
	case errors.Is(err, crawler.ErrNoDescription):
		jsonError(c, http.StatusBadRequest, "Job description is required for AI analysis")
		return
	case err != nil:
		storeError(c, err, "Job")
		return
	}
	c.JSON(http.StatusOK, analysisResponse{
		Score:   job.Score,
		Summary: models.Deref(job.Summary),
		Status:  job.ScoreStatus,
	})
}
