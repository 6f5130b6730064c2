// Package summary runs the AI-summary side channel: search results are
// registered under a request id, the browser attaches over WebSocket, and
// the summary streams back in small fragments.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
)

// Client calls the external summarizer service.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a summarizer client. An empty endpoint yields a
// client whose Generate always fails, which callers turn into the
// template fallback.
func NewClient(cfg *config.SummarizerConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.GenerateTimeout},
	}
}

type generateRequest struct {
	Query     string           `json:"query"`
	Results   []generateResult `json:"results"`
	MaxLength int              `json:"max_length"`
}

type generateResult struct {
	Title   string `json:"title"`
	Preview string `json:"preview"`
}

// Generate asks the summarizer for a summary of the top results.
func (c *Client) Generate(ctx context.Context, query string, results []domain.SearchHit, topN, maxLength int) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("summarizer endpoint not configured")
	}
	if len(results) > topN {
		results = results[:topN]
	}

	payload := generateRequest{Query: query, MaxLength: maxLength}
	for _, hit := range results {
		payload.Results = append(payload.Results, generateResult{
			Title:   hit.Title,
			Preview: hit.ContentPreview,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build summarize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize call failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer returned status %d", res.StatusCode)
	}

	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode summarize response: %w", err)
	}
	if parsed.Summary == "" {
		return "", fmt.Errorf("summarizer returned empty summary")
	}
	return parsed.Summary, nil
}
