package domain

import (
	"fmt"
	"strings"
)

// SearchRequest is a validated search query.
type SearchRequest struct {
	Query     string `json:"query" form:"q"`
	Limit     int    `json:"limit" form:"limit"`
	Summarize bool   `json:"summarize" form:"summarize"`
}

// Validate normalizes the request in place and rejects unusable queries.
func (r *SearchRequest) Validate(maxLimit, defaultLimit int) error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	if r.Limit <= 0 {
		r.Limit = defaultLimit
	}
	if r.Limit > maxLimit {
		r.Limit = maxLimit
	}
	return nil
}

// NormalizedQuery is the canonical cache-key form of the query.
func (r *SearchRequest) NormalizedQuery() string {
	return strings.ToLower(strings.TrimSpace(r.Query))
}

// SearchHit is one merged chunk+document result.
type SearchHit struct {
	ID                string   `json:"id"`
	URL               string   `json:"url"`
	Title             string   `json:"title"`
	ContentPreview    string   `json:"content_preview"`
	Domain            string   `json:"domain"`
	RelevanceScore    float64  `json:"relevance_score"`
	ChunkScore        float64  `json:"chunk_score"`
	DomainScore       float64  `json:"domain_score"`
	QualityScore      float64  `json:"quality_score"`
	ContentCategories []string `json:"content_categories,omitempty"`
	Keywords          []string `json:"keywords,omitempty"`
}

// SearchResult is the full response of one search call.
type SearchResult struct {
	Query        string      `json:"query"`
	Results      []SearchHit `json:"results"`
	TotalFound   int64       `json:"total_found"`
	SearchTimeMs int64       `json:"search_time_ms"`
	SearchMethod string      `json:"search_method"`
	Error        string      `json:"error,omitempty"`
	FromCache    bool        `json:"from_cache"`
	SummaryID    string      `json:"summary_id,omitempty"`
}

// ChunkHit is one raw hit from the chunks index before merging.
type ChunkHit struct {
	ChunkID           string
	DocumentID        string
	Title             string
	URL               string
	Domain            string
	TextChunk         string
	Score             float64
	DomainScore       float64
	QualityScore      float64
	ContentCategories []string
	Keywords          []string
}
