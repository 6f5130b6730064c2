package search

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/metrics"
	"github.com/jonesrussell/north-search/internal/opensearch"
)

// Search methods reported in results.
const (
	MethodChunkSearch = "chunk_search"
	MethodFallback    = "fallback"
)

// Store is the slice of the index client the query service needs.
type Store interface {
	Search(ctx context.Context, index string, query map[string]any) (*opensearch.SearchResponse, error)
	Mget(ctx context.Context, index string, ids []string) (map[string]map[string]any, error)
}

// Service answers search requests against the chunk and document indices.
type Service struct {
	cfg   *config.SearchConfig
	osCfg *config.OpenSearchConfig
	store Store
	cache *Cache
	log   logger.Logger
}

// NewService creates the query service.
func NewService(
	cfg *config.SearchConfig,
	osCfg *config.OpenSearchConfig,
	store Store,
	log logger.Logger,
) (*Service, error) {
	cache, err := NewCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:   cfg,
		osCfg: osCfg,
		store: store,
		cache: cache,
		log:   log,
	}, nil
}

// Search runs one validated request: cache, primary query, fallback
// query, diversification, parent merge, preview.
func (s *Service) Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResult, error) {
	started := time.Now()
	key := CacheKey(req)

	if cached, ok := s.cache.Get(key); ok {
		metrics.SearchRequests.WithLabelValues("hit").Inc()
		result := *cached
		result.FromCache = true
		result.SearchTimeMs = time.Since(started).Milliseconds()
		return &result, nil
	}
	metrics.SearchRequests.WithLabelValues("miss").Inc()

	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	hits, total, method, err := s.queryChunks(searchCtx, req)
	if err != nil {
		return nil, err
	}

	hits = Diversify(hits, req.Limit)
	results, err := s.mergeParents(searchCtx, req, hits)
	if err != nil {
		// Results without parent enrichment beat no results.
		s.log.Warn("Parent document fetch failed", logger.Error(err))
		results = s.shapeHits(req, hits, nil)
	}

	result := &domain.SearchResult{
		Query:        req.Query,
		Results:      results,
		TotalFound:   total,
		SearchTimeMs: time.Since(started).Milliseconds(),
		SearchMethod: method,
	}
	s.cache.Put(key, result)
	metrics.SearchLatency.Observe(time.Since(started).Seconds())
	return result, nil
}

// queryChunks runs the primary query and falls back to the looser one
// when nothing matches.
func (s *Service) queryChunks(ctx context.Context, req *domain.SearchRequest) ([]domain.ChunkHit, int64, string, error) {
	res, err := s.store.Search(ctx, s.osCfg.ChunksBase, BuildPrimaryQuery(req.Query, req.Limit))
	if err != nil {
		return nil, 0, "", fmt.Errorf("chunk search: %w", err)
	}
	if len(res.Hits.Hits) > 0 {
		return parseChunkHits(res), res.Hits.Total.Value, MethodChunkSearch, nil
	}

	res, err = s.store.Search(ctx, s.osCfg.ChunksBase, BuildFallbackQuery(req.Query, req.Limit))
	if err != nil {
		return nil, 0, "", fmt.Errorf("fallback search: %w", err)
	}
	return parseChunkHits(res), res.Hits.Total.Value, MethodFallback, nil
}

func parseChunkHits(res *opensearch.SearchResponse) []domain.ChunkHit {
	hits := make([]domain.ChunkHit, 0, len(res.Hits.Hits))
	for _, raw := range res.Hits.Hits {
		src := raw.Source
		hits = append(hits, domain.ChunkHit{
			ChunkID:           raw.ID,
			DocumentID:        sourceString(src, "document_id"),
			Title:             sourceString(src, "title"),
			URL:               sourceString(src, "url"),
			Domain:            sourceString(src, "domain"),
			TextChunk:         sourceString(src, "text_chunk"),
			Score:             raw.Score,
			DomainScore:       sourceFloat(src, "domain_score"),
			QualityScore:      sourceFloat(src, "quality_score"),
			ContentCategories: sourceStrings(src, "content_categories"),
			Keywords:          sourceStrings(src, "keywords"),
		})
	}
	return hits
}

// mergeParents fetches each hit's parent document and merges it in. Chunk
// fields win on conflict; the parent only fills what the chunk lacks.
func (s *Service) mergeParents(ctx context.Context, req *domain.SearchRequest, hits []domain.ChunkHit) ([]domain.SearchHit, error) {
	ids := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, hit := range hits {
		if hit.DocumentID != "" && !seen[hit.DocumentID] {
			seen[hit.DocumentID] = true
			ids = append(ids, hit.DocumentID)
		}
	}

	var parents map[string]map[string]any
	if len(ids) > 0 {
		var err error
		parents, err = s.store.Mget(ctx, s.osCfg.DocumentsBase, ids)
		if err != nil {
			return nil, err
		}
	}
	return s.shapeHits(req, hits, parents), nil
}

func (s *Service) shapeHits(req *domain.SearchRequest, hits []domain.ChunkHit, parents map[string]map[string]any) []domain.SearchHit {
	results := make([]domain.SearchHit, 0, len(hits))
	for _, hit := range hits {
		parent := parents[hit.DocumentID]

		title := hit.Title
		if title == "" {
			title = sourceString(parent, "title")
		}
		pageURL := hit.URL
		if pageURL == "" {
			pageURL = sourceString(parent, "url")
		}
		host := hit.Domain
		if host == "" {
			host = sourceString(parent, "domain")
		}
		categories := hit.ContentCategories
		if len(categories) == 0 {
			categories = sourceStrings(parent, "categories")
		}
		keywords := hit.Keywords
		if len(keywords) == 0 {
			keywords = sourceStrings(parent, "keywords")
		}

		results = append(results, domain.SearchHit{
			ID:                hit.DocumentID,
			URL:               pageURL,
			Title:             title,
			ContentPreview:    BuildPreview(hit.TextChunk, req.Query, s.cfg.PreviewMaxLength),
			Domain:            host,
			RelevanceScore:    relevance(hit),
			ChunkScore:        hit.Score,
			DomainScore:       hit.DomainScore,
			QualityScore:      hit.QualityScore,
			ContentCategories: categories,
			Keywords:          keywords,
		})
	}
	return results
}

// relevance blends the text score with the stored quality and authority
// signals so near-tied text matches order by page strength.
func relevance(hit domain.ChunkHit) float64 {
	return hit.Score * (1.0 + 0.3*hit.QualityScore + 0.2*hit.DomainScore)
}

// CacheStats reports cache occupancy for the stats endpoint.
func (s *Service) CacheStats() map[string]any {
	return map[string]any{
		"entries":  s.cache.Len(),
		"capacity": s.cfg.CacheSize,
	}
}

func sourceString(src map[string]any, key string) string {
	if src == nil {
		return ""
	}
	v, _ := src[key].(string)
	return v
}

func sourceFloat(src map[string]any, key string) float64 {
	if src == nil {
		return 0
	}
	v, _ := src[key].(float64)
	return v
}

func sourceStrings(src map[string]any, key string) []string {
	if src == nil {
		return nil
	}
	raw, ok := src[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
