// Command httpd runs the query service: chunk search with document
// merge, the LRU result cache, and the AI-summary WebSocket channel.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-search/internal/api"
	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/httpserver"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/opensearch"
	"github.com/jonesrussell/north-search/internal/search"
	"github.com/jonesrussell/north-search/internal/summary"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()
	log = log.With(logger.String("service", "httpd"))

	log.Info("Starting query service",
		logger.String("name", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
		logger.Bool("debug", cfg.Service.Debug),
	)

	client, err := opensearch.NewClient(&cfg.OpenSearch)
	if err != nil {
		log.Error("Failed to create index store client", logger.Error(err))
		return 1
	}

	searchService, err := search.NewService(&cfg.Search, &cfg.OpenSearch, client, log)
	if err != nil {
		log.Error("Failed to create search service", logger.Error(err))
		return 1
	}

	summarizer := summary.NewCoordinator(&cfg.Summarizer, summary.NewClient(&cfg.Summarizer), log)
	handler := api.NewHandler(cfg, searchService, summarizer, client, log)

	server := httpserver.New(&cfg.Service, &cfg.CORS, log, func(router *gin.Engine) {
		api.SetupRoutes(router, handler, &cfg.Service)
	})

	if err := server.RunWithGracefulShutdown(context.Background()); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}
	return 0
}
