// Package api exposes the query service over HTTP: search, the summary
// WebSocket channel, and the operational endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/summary"
)

// Searcher is the search surface the handlers call.
type Searcher interface {
	Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResult, error)
	CacheStats() map[string]any
}

// Pinger reports whether the index store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP request handlers.
type Handler struct {
	cfg       *config.Config
	search    Searcher
	summaries *summary.Coordinator
	store     Pinger
	log       logger.Logger
	started   time.Time
}

// NewHandler creates a handler instance.
func NewHandler(cfg *config.Config, searcher Searcher, summaries *summary.Coordinator, store Pinger, log logger.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		search:    searcher,
		summaries: summaries,
		store:     store,
		log:       log,
		started:   time.Now(),
	}
}

// ErrorResponse is the error body returned by all endpoints.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// Search handles search requests, GET with query parameters or POST
// with a JSON body.
func (h *Handler) Search(c *gin.Context) {
	var req domain.SearchRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid request: " + err.Error(),
			Code:      "INVALID_REQUEST",
			Timestamp: time.Now(),
		})
		return
	}

	if err := req.Validate(h.cfg.Search.MaxLimit, h.cfg.Search.DefaultLimit); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      "VALIDATION_ERROR",
			Timestamp: time.Now(),
		})
		return
	}

	result, err := h.search.Search(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Search failed",
			logger.Error(err),
			logger.String("query", req.Query),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     err.Error(),
			Code:      "SEARCH_ERROR",
			Timestamp: time.Now(),
		})
		return
	}

	if req.Summarize {
		// Work on a copy: the service may share this result with its cache.
		withSummary := *result
		withSummary.SummaryID = h.summaries.Start(req.Query, withSummary.Results)
		c.JSON(http.StatusOK, &withSummary)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SummaryResult serves the buffered terminal state of a summary task for
// clients that never attached over WebSocket.
func (h *Handler) SummaryResult(c *gin.Context) {
	id := c.Param("id")
	result, ok := h.summaries.Result(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "no buffered summary for request " + id,
			Code:      "SUMMARY_NOT_FOUND",
			Timestamp: time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id": id,
		"state":      result.State,
		"summary":    result.Summary,
	})
}

// HealthCheck reports process liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        h.cfg.Service.Name,
		"version":        h.cfg.Service.Version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// ReadinessCheck reports whether the index store is reachable.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Stats reports cache and summary-channel statistics.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cache":           h.search.CacheStats(),
		"summary_tasks":   h.summaries.TaskCount(),
		"uptime_seconds":  int64(time.Since(h.started).Seconds()),
		"service":         h.cfg.Service.Name,
		"service_version": h.cfg.Service.Version,
	})
}

// Config exposes the non-secret runtime configuration.
func (h *Handler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": gin.H{
			"name":    h.cfg.Service.Name,
			"version": h.cfg.Service.Version,
			"debug":   h.cfg.Service.Debug,
		},
		"search": gin.H{
			"max_limit":          h.cfg.Search.MaxLimit,
			"default_limit":      h.cfg.Search.DefaultLimit,
			"cache_size":         h.cfg.Search.CacheSize,
			"preview_max_length": h.cfg.Search.PreviewMaxLength,
		},
		"summarizer": gin.H{
			"enabled":     h.cfg.Summarizer.Endpoint != "",
			"max_length":  h.cfg.Summarizer.MaxLength,
			"top_results": h.cfg.Summarizer.TopResults,
		},
	})
}
