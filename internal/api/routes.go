package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/metrics"
)

// SetupRoutes registers all service routes on the engine.
func SetupRoutes(router *gin.Engine, handler *Handler, cfg *config.ServiceConfig) {
	router.Use(metrics.GinMiddleware())

	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadinessCheck)
	router.GET("/search", handler.Search)
	router.GET("/stats", handler.Stats)
	if cfg.ExposeConfig {
		router.GET("/config", handler.Config)
	}
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handler.HealthCheck)
		v1.GET("/ready", handler.ReadinessCheck)
		v1.GET("/stats", handler.Stats)
		if cfg.ExposeConfig {
			v1.GET("/config", handler.Config)
		}

		v1.GET("/search", handler.Search)
		v1.POST("/search", handler.Search)
		v1.GET("/summary/:id", handler.SummaryResult)
	}

	router.GET("/summary/:id", handler.SummaryResult)
	router.GET("/ws/summary/:id", handler.SummarySocket)
}
