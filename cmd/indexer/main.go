// Command indexer runs the long-running indexing service: the fresh and
// backlog directory scanner, the dual-priority queue, and the bulk
// flusher with offline mode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/indexer"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/opensearch"
	"github.com/jonesrussell/north-search/internal/queue"
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
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()
	log = log.With(logger.String("service", "indexer"))

	log.Info("Starting indexer service",
		logger.String("fresh_dir", cfg.Indexer.FreshDir),
		logger.String("backlog_dir", cfg.Indexer.BacklogDir),
		logger.Int("bulk_chunk_size", cfg.Indexer.BulkChunkSize),
	)

	client, err := opensearch.NewClient(&cfg.OpenSearch)
	if err != nil {
		log.Error("Failed to create index store client", logger.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Templates, aliases, and the retention policy are best-effort at
	// startup; an unreachable cluster means the worker starts offline
	// and recovers when health returns.
	admin := opensearch.NewAdmin(client, log)
	if err := admin.EnsureAll(ctx); err != nil {
		log.Warn("Index setup incomplete; starting in offline mode", logger.Error(err))
	}

	q := queue.New(cfg.Indexer.HighCapacity, cfg.Indexer.StandardCapacity)
	flusher := indexer.NewFlusher(&cfg.Indexer, &cfg.OpenSearch, client, q, log)
	worker := indexer.NewWorker(&cfg.Indexer, client, q, flusher, log)

	flusherDone := make(chan struct{})
	go func() {
		defer close(flusherDone)
		flusher.Run(ctx)
	}()

	if err := worker.Run(ctx); err != nil {
		log.Error("Worker stopped with error", logger.Error(err))
		stop()
		<-flusherDone
		return 1
	}

	<-flusherDone
	log.Info("Indexer stopped")
	return 0
}
