// Package api implements the HTTP API used by the dashboard.
//
// Routes:
//
//	GET    /health
//	GET    /api/jobs                          → list (q, site, bookmarked, hidden, limit, offset)
//	GET    /api/jobs/stats                    → job count per site
//	GET    /api/jobs/:id
//	PATCH  /api/jobs/:id/bookmark             → toggle bookmark
//	PATCH  /api/jobs/:id/hidden               → toggle hidden
//	GET    /api/keywords
//	POST   /api/keywords                      → create (idempotent)
//	PATCH  /api/keywords/:id                  → set is_active
//	DELETE /api/keywords/:id
//	GET    /api/profile
//	POST   /api/profile                       → replace the profile
//	GET    /api/notifications/new-jobs-count
//	POST   /api/notifications/mark-read
//	POST   /api/crawl                         → crawl one (site, keyword), synchronous
//	POST   /api/crawl/all                     → crawl all active keywords in the background
//	GET    /api/crawl/status
//	POST   /api/analysis/:id                  → AI-score one stored job
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-jdcrawler/internal/crawler"
	"go-jdcrawler/internal/database"
	"go-jdcrawler/internal/models"
	"go-jdcrawler/internal/scheduler"
)

// Crawler is the part of crawler.Service the API triggers.
type Crawler interface {
	CrawlKeyword(ctx context.Context, keyword string, sites []models.Site) (crawler.Stats, error)
	Analyze(ctx context.Context, id int64) (*models.Job, error)
}

// Scheduler runs background crawls and reports their state.
type Scheduler interface {
	RunNow() bool
	Status() scheduler.Status
}

// Handler holds shared dependencies.
type Handler struct {
	store     database.Store
	crawler   Crawler
	scheduler Scheduler
}

func NewHandler(store database.Store, c Crawler, s Scheduler) *Handler {
	return &Handler{store: store, crawler: c, scheduler: s}
}

// NewRouter builds the gin engine with CORS for corsOrigins.
func NewRouter(h *Handler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors(corsOrigins))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts every route on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	jobs := api.Group("/jobs")
	jobs.GET("", h.listJobs)
	jobs.GET("/stats", h.jobStats)
	jobs.GET("/:id", h.getJob)
	jobs.PATCH("/:id/bookmark", h.toggleBookmark)
	jobs.PATCH("/:id/hidden", h.toggleHidden)

	keywords := api.Group("/keywords")
	keywords.GET("", h.listKeywords)
	keywords.POST("", h.createKeyword)
	keywords.PATCH("/:id", h.setKeywordActive)
	keywords.DELETE("/:id", h.deleteKeyword)

	api.GET("/profile", h.getProfile)
	api.POST("/profile", h.updateProfile)

	api.GET("/notifications/new-jobs-count", h.newJobsCount)
	api.POST("/notifications/mark-read", h.markRead)

	api.POST("/crawl", h.crawl)
	api.POST("/crawl/all", h.crawlAll)
	api.GET("/crawl/status", h.crawlStatus)

	api.POST("/analysis/:id", h.analyze)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func jsonError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// storeError maps store errors to responses. what names the missing entity.
func storeError(c *gin.Context, err error, what string) {
	if errors.Is(err, database.ErrNotFound) {
		jsonError(c, http.StatusNotFound, what+" not found")
		return
	}
	log.Printf("[api] %s %s: %v", c.Request.Method, c.FullPath(), err)
	jsonError(c, http.StatusInternalServerError, "database error")
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// optionalBool parses a query flag. Absent means nil.
func optionalBool(c *gin.Context, key string) (*bool, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid "+key)
		return nil, false
	}
	return &v, true
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		jsonError(c, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return v, true
}
