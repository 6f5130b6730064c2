package indexer_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/indexer"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/opensearch"
	"github.com/jonesrussell/north-search/internal/queue"
)

type fakeStore struct {
	mu       sync.Mutex
	batches  [][]domain.BulkAction
	err      error
	failures []opensearch.BulkItemFailure
}

func (s *fakeStore) Bulk(_ context.Context, actions []domain.BulkAction) (*opensearch.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	batch := make([]domain.BulkAction, len(actions))
	copy(batch, actions)
	s.batches = append(s.batches, batch)
	return &opensearch.BulkResult{
		Succeeded: len(actions) - len(s.failures),
		Failures:  s.failures,
	}, nil
}

func (s *fakeStore) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *fakeStore) allActions() []domain.BulkAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.BulkAction
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

type fakeHealth struct {
	mu  sync.Mutex
	err error
}

func (h *fakeHealth) HealthCheck(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func indexerConfig() *config.IndexerConfig {
	return &config.IndexerConfig{
		HighCapacity:     100,
		StandardCapacity: 100,
		PutTimeout:       time.Second,
		BulkChunkSize:    10,
		BatchTimeout:     50 * time.Millisecond,
		PollInterval:     10 * time.Millisecond,
		StatsInterval:    time.Hour,
		HealthInterval:   time.Hour,
		BacklogBatchSize: 3,
		ShutdownTimeout:  time.Second,
		RetryInitial:     time.Millisecond,
		RetryMax:         10 * time.Millisecond,
		RetryAttempts:    2,
	}
}

func osConfig() *config.OpenSearchConfig {
	return &config.OpenSearchConfig{DocumentsBase: "documents", ChunksBase: "chunks"}
}

func chunkItem(id string, priority domain.Priority) domain.QueueItem {
	raw, _ := json.Marshal(map[string]any{
		"type":       domain.LineTypeChunk,
		"chunk_id":   id,
		"text_chunk": "body",
	})
	return domain.QueueItem{
		Type:       domain.LineTypeChunk,
		Data:       raw,
		Priority:   priority,
		EnqueuedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func docItem(id string, priority domain.Priority) domain.QueueItem {
	raw, _ := json.Marshal(map[string]any{
		"type":        domain.LineTypeDocument,
		"document_id": id,
		"title":       "t",
	})
	return domain.QueueItem{
		Type:       domain.LineTypeDocument,
		Data:       raw,
		Priority:   priority,
		EnqueuedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func TestFlusherCommitsBatch(t *testing.T) {
	store := &fakeStore{}
	q := queue.New(100, 100)
	f := indexer.NewFlusher(indexerConfig(), osConfig(), store, q, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	require.True(t, q.Put(docItem("d1", domain.PriorityHigh), time.Second))
	require.True(t, q.Put(chunkItem("c1", domain.PriorityHigh), time.Second))

	require.Eventually(t, func() bool { return store.batchCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	actions := store.allActions()
	require.Len(t, actions, 2)

	byID := map[string]domain.BulkAction{}
	for _, a := range actions {
		byID[a.ID] = a
	}
	require.Contains(t, byID, "d1")
	require.Contains(t, byID, "c1")
	assert.Equal(t, "documents-2026-08-24", byID["d1"].Index)
	assert.Equal(t, "chunks-2026-08-24", byID["c1"].Index)

	source := byID["c1"].Source
	assert.Equal(t, "2026-08-24T12:00:00Z", source["@timestamp"])
	assert.NotContains(t, source, "type")
	assert.NotEmpty(t, source["indexed_at"])
}

func TestFlusherHighLeadsBatch(t *testing.T) {
	store := &fakeStore{}
	cfg := indexerConfig()
	cfg.BatchTimeout = 200 * time.Millisecond
	q := queue.New(100, 100)
	f := indexer.NewFlusher(cfg, osConfig(), store, q, logger.NewNop())

	require.True(t, q.Put(chunkItem("s1", domain.PriorityStandard), time.Second))
	require.True(t, q.Put(chunkItem("s2", domain.PriorityStandard), time.Second))
	require.True(t, q.Put(chunkItem("h1", domain.PriorityHigh), time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.batchCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	actions := store.allActions()
	require.Len(t, actions, 3)
	assert.Equal(t, "h1", actions[0].ID)
}

func TestFlusherOfflineDropsWithoutIndexing(t *testing.T) {
	store := &fakeStore{}
	q := queue.New(100, 100)
	f := indexer.NewFlusher(indexerConfig(), osConfig(), store, q, logger.NewNop())
	f.SetOffline(true)

	require.True(t, q.Put(chunkItem("c1", domain.PriorityHigh), time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	f.Run(ctx)

	// Offline mode makes zero store calls; the queue still drains.
	assert.Equal(t, 0, store.batchCount())
	assert.True(t, f.Offline())
	high, standard := q.Sizes()
	assert.Equal(t, 0, high+standard)
	assert.Equal(t, int64(1), f.Stats()["items_dropped_offline"])
}

func TestFlusherRetriesTransientErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	q := queue.New(100, 100)
	f := indexer.NewFlusher(indexerConfig(), osConfig(), store, q, logger.NewNop())

	require.True(t, q.Put(chunkItem("c1", domain.PriorityHigh), time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	f.Run(ctx)

	stats := f.Stats()
	assert.Equal(t, int64(1), stats["flushes_failed"])
	assert.Equal(t, 0, store.batchCount())
}

func TestFlusherRequeuesOnTotalFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	cfg := indexerConfig()
	cfg.RequeueFailed = true
	q := queue.New(100, 100)
	f := indexer.NewFlusher(cfg, osConfig(), store, q, logger.NewNop())

	require.True(t, q.Put(chunkItem("c1", domain.PriorityHigh), time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	f.Run(ctx)

	high, standard := q.Sizes()
	assert.GreaterOrEqual(t, high+standard, 1)
}

func writeQueueFile(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func chunkLine(id string) string {
	raw, _ := json.Marshal(map[string]any{
		"type":       domain.LineTypeChunk,
		"chunk_id":   id,
		"text_chunk": "body",
	})
	return string(raw)
}

func workerDirs(t *testing.T, cfg *config.IndexerConfig) {
	t.Helper()
	base := t.TempDir()
	cfg.FreshDir = filepath.Join(base, "fresh")
	cfg.BacklogDir = filepath.Join(base, "backlog")
	cfg.ProcessedDir = filepath.Join(base, "processed")
	cfg.FailedDir = filepath.Join(base, "failed")
	for _, dir := range []string{cfg.FreshDir, cfg.BacklogDir, cfg.ProcessedDir, cfg.FailedDir} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
}

func runWorker(t *testing.T, w *indexer.Worker, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, w.Run(ctx))
}

func globCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestWorkerEnqueuesFreshFile(t *testing.T) {
	cfg := indexerConfig()
	workerDirs(t, cfg)
	writeQueueFile(t, cfg.FreshDir, "batch_part_001.jsonl", []string{
		chunkLine("c1"), chunkLine("c2"), chunkLine("c3"),
	})

	q := queue.New(100, 100)
	f := indexer.NewFlusher(cfg, osConfig(), &fakeStore{}, q, logger.NewNop())
	w := indexer.NewWorker(cfg, &fakeHealth{}, q, f, logger.NewNop())

	runWorker(t, w, 150*time.Millisecond)

	high, standard := q.Sizes()
	assert.Equal(t, 3, high)
	assert.Equal(t, 0, standard)
	assert.Equal(t, 0, globCount(t, cfg.FreshDir))
	assert.Equal(t, 1, globCount(t, cfg.ProcessedDir))
}

func TestWorkerMovesBadFileToFailed(t *testing.T) {
	cfg := indexerConfig()
	workerDirs(t, cfg)
	writeQueueFile(t, cfg.FreshDir, "bad.jsonl", []string{"{not json"})

	q := queue.New(100, 100)
	f := indexer.NewFlusher(cfg, osConfig(), &fakeStore{}, q, logger.NewNop())
	w := indexer.NewWorker(cfg, &fakeHealth{}, q, f, logger.NewNop())

	runWorker(t, w, 150*time.Millisecond)

	assert.Equal(t, 0, globCount(t, cfg.FreshDir))
	assert.Equal(t, 1, globCount(t, cfg.FailedDir))
}

func TestWorkerDrainsBacklogWhenIdle(t *testing.T) {
	cfg := indexerConfig()
	workerDirs(t, cfg)
	writeQueueFile(t, cfg.BacklogDir, "old_part_001.jsonl", []string{chunkLine("b1")})

	q := queue.New(100, 100)
	f := indexer.NewFlusher(cfg, osConfig(), &fakeStore{}, q, logger.NewNop())
	w := indexer.NewWorker(cfg, &fakeHealth{}, q, f, logger.NewNop())

	runWorker(t, w, 150*time.Millisecond)

	item, ok := q.TryGet()
	require.True(t, ok)
	assert.Equal(t, domain.PriorityStandard, item.Priority)
	assert.Equal(t, 0, globCount(t, cfg.BacklogDir))
}

func TestWorkerDefersFileUnderBackpressure(t *testing.T) {
	cfg := indexerConfig()
	cfg.PutTimeout = 20 * time.Millisecond
	workerDirs(t, cfg)
	writeQueueFile(t, cfg.FreshDir, "big_part_001.jsonl", []string{
		chunkLine("c1"), chunkLine("c2"), chunkLine("c3"),
	})

	q := queue.New(1, 1)
	f := indexer.NewFlusher(cfg, osConfig(), &fakeStore{}, q, logger.NewNop())
	w := indexer.NewWorker(cfg, &fakeHealth{}, q, f, logger.NewNop())

	runWorker(t, w, 150*time.Millisecond)

	// The file stays in fresh for the next pass.
	assert.Equal(t, 1, globCount(t, cfg.FreshDir))
	assert.Equal(t, 0, globCount(t, cfg.ProcessedDir))
	stats := w.Stats()
	assert.GreaterOrEqual(t, stats["files_deferred"].(int64), int64(1))
}

func TestWorkerConsumesFilesWhileOffline(t *testing.T) {
	cfg := indexerConfig()
	cfg.HealthInterval = 10 * time.Millisecond
	workerDirs(t, cfg)
	writeQueueFile(t, cfg.FreshDir, "batch_part_001.jsonl", []string{chunkLine("c1")})

	store := &fakeStore{}
	q := queue.New(100, 100)
	f := indexer.NewFlusher(cfg, osConfig(), store, q, logger.NewNop())
	w := indexer.NewWorker(cfg, &fakeHealth{err: errors.New("cluster status is red")}, q, f, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	flusherDone := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(flusherDone)
	}()
	require.NoError(t, w.Run(ctx))
	<-flusherDone

	// Files keep moving to processed while offline; no index call is made.
	assert.True(t, f.Offline())
	assert.Equal(t, 0, globCount(t, cfg.FreshDir))
	assert.Equal(t, 1, globCount(t, cfg.ProcessedDir))
	assert.Equal(t, 0, store.batchCount())
	assert.Equal(t, int64(1), w.Stats()["files_processed"])
}

func TestWorkerRecoversFromOffline(t *testing.T) {
	cfg := indexerConfig()
	cfg.HealthInterval = 20 * time.Millisecond
	workerDirs(t, cfg)
	writeQueueFile(t, cfg.FreshDir, "batch_part_001.jsonl", []string{chunkLine("c1")})

	health := &fakeHealth{err: errors.New("unreachable")}
	q := queue.New(100, 100)
	f := indexer.NewFlusher(cfg, osConfig(), &fakeStore{}, q, logger.NewNop())
	w := indexer.NewWorker(cfg, health, q, f, logger.NewNop())

	go func() {
		time.Sleep(60 * time.Millisecond)
		health.mu.Lock()
		health.err = nil
		health.mu.Unlock()
	}()

	runWorker(t, w, 300*time.Millisecond)

	assert.False(t, f.Offline())
	assert.Equal(t, 0, globCount(t, cfg.FreshDir))
	assert.Equal(t, 1, globCount(t, cfg.ProcessedDir))
}
