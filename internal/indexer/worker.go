package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/metrics"
	"github.com/jonesrussell/north-search/internal/queue"
)

// errBackpressure signals that a Put timed out; the file stays in place
// for the next pass.
var errBackpressure = errors.New("queue backpressure")

// maxLineBytes bounds one queue-file line.
const maxLineBytes = 16 * 1024 * 1024

// HealthChecker is the slice of the index client the worker needs.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Worker is the indexer's control loop: it polls the fresh directory,
// streams file lines into the queue, drains backlog when idle, and flips
// offline mode on cluster health.
type Worker struct {
	cfg     *config.IndexerConfig
	health  HealthChecker
	queue   *queue.Queue
	flusher *Flusher
	log     logger.Logger

	mu             sync.Mutex
	filesProcessed int64
	filesFailed    int64
	filesDeferred  int64
	linesEnqueued  int64
	lastScan       time.Time
}

// NewWorker creates a worker.
func NewWorker(
	cfg *config.IndexerConfig,
	health HealthChecker,
	q *queue.Queue,
	flusher *Flusher,
	log logger.Logger,
) *Worker {
	return &Worker{
		cfg:     cfg,
		health:  health,
		queue:   q,
		flusher: flusher,
		log:     log,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for _, dir := range []string{w.cfg.FreshDir, w.cfg.BacklogDir, w.cfg.ProcessedDir, w.cfg.FailedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create queue dir %s: %w", dir, err)
		}
	}

	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()
	health := time.NewTicker(w.cfg.HealthInterval)
	defer health.Stop()
	stats := time.NewTicker(w.cfg.StatsInterval)
	defer stats.Stop()

	w.checkHealth(ctx)
	w.iterate(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker stopping")
			return nil
		case <-health.C:
			w.checkHealth(ctx)
		case <-stats.C:
			w.logStats()
		case <-poll.C:
			w.iterate(ctx)
		}
	}
}

// checkHealth probes the cluster and flips offline mode accordingly.
func (w *Worker) checkHealth(ctx context.Context) {
	probe, cancel := context.WithTimeout(ctx, w.cfg.HealthInterval)
	defer cancel()

	if err := w.health.HealthCheck(probe); err != nil {
		if !w.flusher.Offline() {
			w.log.Warn("Index store unhealthy", logger.Error(err))
		}
		w.flusher.SetOffline(true)
		return
	}
	w.flusher.SetOffline(false)
}

// iterate runs one scan pass: fresh files at high priority, then backlog
// at standard priority when there is nothing fresh. Scanning continues in
// offline mode; the flusher drops instead of indexing, so files keep
// moving to processed even while the store is down.
func (w *Worker) iterate(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	w.mu.Lock()
	w.lastScan = time.Now()
	w.mu.Unlock()

	fresh, err := listQueueFiles(w.cfg.FreshDir)
	if err != nil {
		w.log.Error("Fresh dir scan failed", logger.Error(err))
		return
	}

	if len(fresh) > 0 {
		w.processFiles(ctx, fresh, domain.PriorityHigh)
		return
	}

	backlog, err := listQueueFiles(w.cfg.BacklogDir)
	if err != nil {
		w.log.Error("Backlog dir scan failed", logger.Error(err))
		return
	}
	if len(backlog) > w.cfg.BacklogBatchSize {
		backlog = backlog[:w.cfg.BacklogBatchSize]
	}
	w.processFiles(ctx, backlog, domain.PriorityStandard)
}

func (w *Worker) processFiles(ctx context.Context, files []string, priority domain.Priority) {
	for _, path := range files {
		if ctx.Err() != nil || w.queue.IsFull() {
			return
		}
		lines, err := w.processFile(ctx, path, priority)
		switch {
		case errors.Is(err, errBackpressure):
			// Leave the file in place; duplicate lines on the next pass
			// overwrite by id.
			w.addDeferred()
			metrics.FilesProcessed.WithLabelValues("deferred").Inc()
			w.log.Warn("File deferred under backpressure",
				logger.String("file", path),
				logger.Int("lines_enqueued", lines),
			)
			return
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			w.addFailed()
			metrics.FilesProcessed.WithLabelValues("failed").Inc()
			w.log.Error("File failed", logger.String("file", path), logger.Error(err))
			w.moveFile(path, w.cfg.FailedDir)
		default:
			w.addProcessed(int64(lines))
			metrics.FilesProcessed.WithLabelValues("ok").Inc()
			w.log.Info("File enqueued",
				logger.String("file", path),
				logger.Int("lines", lines),
				logger.String("priority", priority.String()),
			)
			w.moveFile(path, w.cfg.ProcessedDir)
		}
	}
}

// processFile streams one queue file into the queue. Returns the number
// of lines enqueued and errBackpressure when a Put timed out.
func (w *Worker) processFile(ctx context.Context, path string, priority domain.Priority) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open queue file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	enqueued := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if ctx.Err() != nil {
			return enqueued, context.Canceled
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var header domain.IndexLine
		if err := json.Unmarshal(raw, &header); err != nil {
			return enqueued, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if header.Type != domain.LineTypeDocument && header.Type != domain.LineTypeChunk {
			return enqueued, fmt.Errorf("line %d: unknown type %q", lineNo, header.Type)
		}

		data := make([]byte, len(raw))
		copy(data, raw)
		item := domain.QueueItem{
			Type:       header.Type,
			Data:       data,
			FilePath:   path,
			Priority:   priority,
			EnqueuedAt: time.Now(),
		}
		if !w.queue.Put(item, w.cfg.PutTimeout) {
			return enqueued, errBackpressure
		}
		enqueued++
	}
	if err := scanner.Err(); err != nil {
		return enqueued, fmt.Errorf("scan queue file: %w", err)
	}
	return enqueued, nil
}

// moveFile relocates a consumed file, prefixing a timestamp so repeated
// batch names never collide in the archive.
func (w *Worker) moveFile(path, destDir string) {
	name := fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102T150405"), filepath.Base(path))
	if err := os.Rename(path, filepath.Join(destDir, name)); err != nil {
		w.log.Error("Failed to move file",
			logger.String("file", path),
			logger.String("dest", destDir),
			logger.Error(err),
		)
	}
}

func listQueueFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (w *Worker) addProcessed(lines int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filesProcessed++
	w.linesEnqueued += lines
}

func (w *Worker) addFailed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filesFailed++
}

func (w *Worker) addDeferred() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filesDeferred++
}

func (w *Worker) logStats() {
	stats := w.Stats()
	high, standard := w.queue.Sizes()
	w.log.Info("Indexer stats",
		logger.Any("worker", stats),
		logger.Int("queue_high", high),
		logger.Int("queue_standard", standard),
		logger.Any("flusher", w.flusher.Stats()),
	)
}

// Stats reports worker counters.
func (w *Worker) Stats() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return map[string]any{
		"files_processed": w.filesProcessed,
		"files_failed":    w.filesFailed,
		"files_deferred":  w.filesDeferred,
		"lines_enqueued":  w.linesEnqueued,
		"last_scan":       w.lastScan,
	}
}
