// Package indexer implements the long-running indexing service: a file
// reader feeding the dual-priority queue and a flusher committing batches
// to the index store.
package indexer

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/metrics"
	"github.com/jonesrussell/north-search/internal/opensearch"
	"github.com/jonesrussell/north-search/internal/queue"
	"github.com/jonesrussell/north-search/internal/retry"
)

// maxLoggedFailures bounds per-batch failure logging; one poisoned batch
// should not flood the log.
const maxLoggedFailures = 5

// Store is the slice of the index client the flusher needs.
type Store interface {
	Bulk(ctx context.Context, actions []domain.BulkAction) (*opensearch.BulkResult, error)
}

// Flusher drains the queue into bulk commits. Batches close on size or
// timeout, whichever comes first; high-priority items always lead the
// request body.
type Flusher struct {
	cfg   *config.IndexerConfig
	osCfg *config.OpenSearchConfig
	store Store
	queue *queue.Queue
	log   logger.Logger

	buffer  []domain.QueueItem
	offline atomic.Bool

	mu            sync.Mutex
	itemsIndexed  int64
	itemsFailed   int64
	itemsDropped  int64
	flushesOK     int64
	flushesFailed int64
	lastFlush     time.Time
}

// NewFlusher creates a flusher.
func NewFlusher(
	cfg *config.IndexerConfig,
	osCfg *config.OpenSearchConfig,
	store Store,
	q *queue.Queue,
	log logger.Logger,
) *Flusher {
	return &Flusher{
		cfg:   cfg,
		osCfg: osCfg,
		store: store,
		queue: q,
		log:   log,
	}
}

// Run drains the queue until the context is cancelled, then performs one
// final flush of everything still buffered.
func (f *Flusher) Run(ctx context.Context) {
	for {
		item, ok := f.queue.Get(ctx)
		if !ok {
			f.finalFlush()
			return
		}
		f.buffer = append(f.buffer, item)
		f.fillBatch(ctx)
		f.flush(ctx)

		if ctx.Err() != nil {
			f.finalFlush()
			return
		}
	}
}

// fillBatch tops up the buffer until it reaches the bulk size or the
// batch timeout elapses.
func (f *Flusher) fillBatch(ctx context.Context) {
	deadline := time.Now().Add(f.cfg.BatchTimeout)
	for len(f.buffer) < f.cfg.BulkChunkSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		waitCtx, cancel := context.WithTimeout(ctx, remaining)
		item, ok := f.queue.Get(waitCtx)
		cancel()
		if !ok {
			return
		}
		f.buffer = append(f.buffer, item)
	}
}

// flush commits the buffer. While offline the batch is dropped instead of
// committed; queue files already moved to processed by then, so offline
// indexing is best-effort by contract.
func (f *Flusher) flush(ctx context.Context) {
	if len(f.buffer) == 0 {
		return
	}
	if f.offline.Load() {
		dropped := len(f.buffer)
		f.buffer = nil
		f.recordOfflineDrop(int64(dropped))
		f.log.Debug("Offline; batch dropped without indexing",
			logger.Int("items", dropped),
		)
		return
	}

	// High-priority items lead the request so fresh work commits even if
	// the store dies mid-request.
	sort.SliceStable(f.buffer, func(i, j int) bool {
		return f.buffer[i].Priority == domain.PriorityHigh &&
			f.buffer[j].Priority != domain.PriorityHigh
	})

	items := f.buffer
	f.buffer = nil

	actions, actionItems := f.translate(items)
	if len(actions) == 0 {
		return
	}

	retryCfg := retry.Config{
		MaxAttempts:  f.cfg.RetryAttempts,
		InitialDelay: f.cfg.RetryInitial,
		MaxDelay:     f.cfg.RetryMax,
		Multiplier:   2.0,
		IsRetryable:  retry.DefaultIsRetryable,
	}

	var result *opensearch.BulkResult
	err := retry.Do(ctx, retryCfg, func() error {
		var bulkErr error
		result, bulkErr = f.store.Bulk(ctx, actions)
		return bulkErr
	})
	if err != nil {
		metrics.BulkFlushes.WithLabelValues("failed").Inc()
		f.recordFlush(0, int64(len(actions)), false)
		f.log.Error("Bulk flush failed after retries",
			logger.Int("items", len(actions)),
			logger.Error(err),
		)
		if f.cfg.RequeueFailed {
			f.requeue(actionItems)
		}
		return
	}

	metrics.BulkFlushes.WithLabelValues("ok").Inc()
	f.recordFlush(int64(result.Succeeded), int64(len(result.Failures)), true)
	f.countIndexed(actionItems, result)

	for i, failure := range result.Failures {
		if i == maxLoggedFailures {
			f.log.Warn("Further item failures suppressed",
				logger.Int("total", len(result.Failures)),
			)
			break
		}
		f.log.Warn("Bulk item rejected",
			logger.String("index", failure.Action.Index),
			logger.String("id", failure.Action.ID),
			logger.Int("status", failure.Status),
			logger.String("reason", failure.Reason),
		)
	}
}

// translate builds bulk actions from queue items. Items route to the
// daily index for their enqueue date; the returned slice is parallel to
// the actions for requeue bookkeeping.
func (f *Flusher) translate(items []domain.QueueItem) ([]domain.BulkAction, []domain.QueueItem) {
	now := time.Now().UTC().Format(time.RFC3339)

	actions := make([]domain.BulkAction, 0, len(items))
	kept := make([]domain.QueueItem, 0, len(items))
	for _, item := range items {
		var source map[string]any
		if err := json.Unmarshal(item.Data, &source); err != nil {
			f.log.Warn("Dropping undecodable queue item",
				logger.String("file", item.FilePath),
				logger.Error(err),
			)
			continue
		}
		delete(source, "type")
		source["indexed_at"] = now
		source["@timestamp"] = item.EnqueuedAt.UTC().Format(time.RFC3339)

		base := f.osCfg.DocumentsBase
		idField := "document_id"
		if item.Type == domain.LineTypeChunk {
			base = f.osCfg.ChunksBase
			idField = "chunk_id"
		}
		id, _ := source[idField].(string)
		if id == "" {
			f.log.Warn("Dropping queue item without id",
				logger.String("file", item.FilePath),
				logger.String("field", idField),
			)
			continue
		}

		actions = append(actions, domain.BulkAction{
			Index:  opensearch.DailyIndexName(base, item.EnqueuedAt),
			ID:     id,
			Source: source,
		})
		kept = append(kept, item)
	}
	return actions, kept
}

func (f *Flusher) countIndexed(items []domain.QueueItem, result *opensearch.BulkResult) {
	failedIDs := make(map[string]bool, len(result.Failures))
	for _, failure := range result.Failures {
		failedIDs[failure.Action.ID] = true
	}
	for _, item := range items {
		if !failedIDs[actionID(item)] {
			metrics.ItemsIndexed.WithLabelValues(item.Type).Inc()
		}
	}
}

func actionID(item domain.QueueItem) string {
	var partial struct {
		DocumentID string `json:"document_id"`
		ChunkID    string `json:"chunk_id"`
	}
	_ = json.Unmarshal(item.Data, &partial)
	if item.Type == domain.LineTypeChunk {
		return partial.ChunkID
	}
	return partial.DocumentID
}

// requeue puts failed items back for a later batch; items that no longer
// fit are dropped with a log line rather than blocking the flusher.
func (f *Flusher) requeue(items []domain.QueueItem) {
	dropped := 0
	for _, item := range items {
		if !f.queue.Put(item, time.Second) {
			dropped++
		}
	}
	if dropped > 0 {
		f.log.Warn("Requeue overflow; items dropped",
			logger.Int("dropped", dropped),
		)
	}
}

// finalFlush commits whatever is buffered during shutdown, bounded by the
// configured shutdown timeout.
func (f *Flusher) finalFlush() {
	if len(f.buffer) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.ShutdownTimeout)
	defer cancel()
	f.log.Info("Final flush on shutdown", logger.Int("items", len(f.buffer)))
	f.flush(ctx)
}

// SetOffline flips offline mode. While offline no bulk calls are made;
// queue consumption continues and batches are dropped.
func (f *Flusher) SetOffline(offline bool) {
	if f.offline.Swap(offline) != offline {
		if offline {
			metrics.OfflineMode.Set(1)
			f.log.Warn("Entering offline mode; index calls suspended")
		} else {
			metrics.OfflineMode.Set(0)
			f.log.Info("Leaving offline mode; indexing resumed")
		}
	}
}

// Offline reports whether the flusher is dropping commits.
func (f *Flusher) Offline() bool {
	return f.offline.Load()
}

func (f *Flusher) recordOfflineDrop(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemsDropped += n
	f.lastFlush = time.Now()
}

func (f *Flusher) recordFlush(ok, failed int64, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemsIndexed += ok
	f.itemsFailed += failed
	if success {
		f.flushesOK++
	} else {
		f.flushesFailed++
	}
	f.lastFlush = time.Now()
}

// Stats reports flusher counters.
func (f *Flusher) Stats() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]any{
		"items_indexed":         f.itemsIndexed,
		"items_failed":          f.itemsFailed,
		"items_dropped_offline": f.itemsDropped,
		"flushes_ok":            f.flushesOK,
		"flushes_failed":        f.flushesFailed,
		"last_flush":            f.lastFlush,
		"offline":               f.offline.Load(),
	}
}
