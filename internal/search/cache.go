// Package search implements the query service: chunk search with
// fallback, domain diversification, parent-document merging, smart
// previews, and an LRU result cache.
package search

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jonesrussell/north-search/internal/domain"
)

// Cache is a fixed-size LRU over complete search results.
type Cache struct {
	entries *lru.Cache[string, *domain.SearchResult]
}

// NewCache creates a cache holding size results.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, *domain.SearchResult](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// CacheKey derives the cache key from the normalized query and limit.
// Summarize is excluded on purpose: the summary side-channel never
// changes the result list.
func CacheKey(req *domain.SearchRequest) string {
	return fmt.Sprintf("%s|%d", req.NormalizedQuery(), req.Limit)
}

// Get returns the cached result for a key.
func (c *Cache) Get(key string) (*domain.SearchResult, bool) {
	return c.entries.Get(key)
}

// Put stores a result.
func (c *Cache) Put(key string, result *domain.SearchResult) {
	c.entries.Add(key, result)
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	return c.entries.Len()
}
