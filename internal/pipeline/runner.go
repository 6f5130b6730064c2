package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/metrics"
	"github.com/jonesrussell/north-search/internal/processor"
)

// Stats summarizes one pipeline run.
type Stats struct {
	Files     int
	Records   int64
	Documents int64
	Chunks    int64
	Rejected  int64
	Duration  time.Duration
}

// Runner drives one batch pass: every raw file in the input directory is
// streamed through a pool of processor workers and written out as part
// files.
type Runner struct {
	cfg       *config.PipelineConfig
	logger    logger.Logger
	processor *processor.Processor
}

// NewRunner creates a pipeline runner.
func NewRunner(cfg *config.PipelineConfig, log logger.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		logger:    log,
		processor: processor.New(cfg, log),
	}
}

// Run processes every raw file. Cancellation stops between records; the
// part file being written is flushed so nothing already processed is lost.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	started := time.Now()

	files, err := r.discoverFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		r.logger.Info("No raw files to process", logger.String("dir", r.cfg.RawDir))
		return &Stats{Duration: time.Since(started)}, nil
	}

	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	stats := &Stats{Files: len(files)}
	for _, path := range files {
		if ctx.Err() != nil {
			r.logger.Warn("Run cancelled; stopping before next file")
			break
		}
		if err := r.processFile(ctx, path, stats); err != nil {
			return nil, err
		}
	}

	stats.Duration = time.Since(started)
	r.renderSummary(stats)
	return stats, nil
}

func (r *Runner) discoverFiles() ([]string, error) {
	entries, err := os.ReadDir(r.cfg.RawDir)
	if err != nil {
		return nil, fmt.Errorf("read raw dir %s: %w", r.cfg.RawDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".jsonl") {
			files = append(files, filepath.Join(r.cfg.RawDir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// processFile fans one file's records out to the worker pool and funnels
// results into a single part writer.
func (r *Runner) processFile(ctx context.Context, path string, stats *Stats) error {
	batch := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".json"), ".jsonl")
	writer := NewPartWriter(r.cfg.OutDir, batch, r.cfg.MaxItemsPerFile)

	r.logger.Info("Processing raw file", logger.String("file", path))

	jobs := make(chan domain.RawRecord, r.cfg.MaxWorkers)
	results := make(chan *domain.ProcessResult, r.cfg.MaxWorkers)

	var records, rejected int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				rec := rec
				result, err := r.processor.Process(&rec)
				if err != nil {
					atomic.AddInt64(&rejected, 1)
					r.logger.Debug("Record rejected",
						logger.String("url", rec.URL),
						logger.Error(err),
					)
					continue
				}
				results <- result
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	readErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		readErr <- StreamRecords(path, r.logger, func(rec domain.RawRecord) error {
			select {
			case jobs <- rec:
				atomic.AddInt64(&records, 1)
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	var writeErr error
	for result := range results {
		if writeErr != nil {
			continue // drain so workers are never blocked
		}
		if err := writer.WriteDocument(result.Document); err != nil {
			writeErr = err
			continue
		}
		stats.Documents++
		for i := range result.Chunks {
			if err := writer.WriteChunk(&result.Chunks[i]); err != nil {
				writeErr = err
				break
			}
			stats.Chunks++
		}
	}

	if err := writer.Close(); err != nil && writeErr == nil {
		writeErr = err
	}

	err := <-readErr
	switch {
	case writeErr != nil:
		metrics.FilesProcessed.WithLabelValues("failed").Inc()
		return writeErr
	case err != nil && ctx.Err() == nil:
		metrics.FilesProcessed.WithLabelValues("failed").Inc()
		return err
	}

	stats.Records += atomic.LoadInt64(&records)
	stats.Rejected += atomic.LoadInt64(&rejected)
	metrics.FilesProcessed.WithLabelValues("ok").Inc()

	r.logger.Info("Raw file processed",
		logger.String("file", path),
		logger.Int64("records", atomic.LoadInt64(&records)),
		logger.Int64("rejected", atomic.LoadInt64(&rejected)),
		logger.Int("parts", len(writer.Files())),
	)
	return nil
}

func (r *Runner) renderSummary(stats *Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Files", "Records", "Documents", "Chunks", "Rejected", "Duration"})
	t.AppendRow(table.Row{
		stats.Files,
		stats.Records,
		stats.Documents,
		stats.Chunks,
		stats.Rejected,
		stats.Duration.Round(time.Millisecond),
	})
	t.Render()
}
