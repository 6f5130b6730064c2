// Package opensearch wraps the OpenSearch client with the operations the
// indexer and query service perform: bulk commits, multi-get, chunk search,
// index admin, and cluster health.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	opensearchclient "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/jonesrussell/north-search/internal/config"
)

// Client wraps the OpenSearch client.
type Client struct {
	os     *opensearchclient.Client
	config *config.OpenSearchConfig
}

// NewClient creates a client from configuration. The connection is not
// verified here; callers that need a live cluster use Ping or HealthCheck
// so the indexer can start in offline mode against a dead cluster.
func NewClient(cfg *config.OpenSearchConfig) (*Client, error) {
	addr := cfg.Host
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}

	clientConfig := opensearchclient.Config{
		Addresses:  []string{addr},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.AuthType == "basic" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}
	if cfg.Insecure {
		clientConfig.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed dev clusters
		}
	}

	osClient, err := opensearchclient.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	return &Client{os: osClient, config: cfg}, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return fmt.Errorf("ping returned status %d", res.StatusCode)
	}
	return nil
}

// HealthCheck checks cluster health. A red cluster is reported as an error;
// yellow is tolerated (single-node clusters are yellow by construction).
func (c *Client) HealthCheck(ctx context.Context) error {
	res, err := opensearchapi.ClusterHealthRequest{}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return fmt.Errorf("cluster health returned status %d", res.StatusCode)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if health.Status == "red" {
		return fmt.Errorf("cluster status is red")
	}
	return nil
}

// Search executes a query against the given index or alias.
func (c *Client) Search(ctx context.Context, index string, query map[string]any) (*SearchResponse, error) {
	body, err := encodeBody(query)
	if err != nil {
		return nil, err
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  body,
	}.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError("search", res)
	}

	var parsed SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &parsed, nil
}

// Mget fetches multiple documents by id from an index or alias.
func (c *Client) Mget(ctx context.Context, index string, ids []string) (map[string]map[string]any, error) {
	if len(ids) == 0 {
		return map[string]map[string]any{}, nil
	}

	body, err := encodeBody(map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}

	res, err := opensearchapi.MgetRequest{
		Index: index,
		Body:  body,
	}.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("mget request failed: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError("mget", res)
	}

	var parsed struct {
		Docs []struct {
			ID     string         `json:"_id"`
			Found  bool           `json:"found"`
			Source map[string]any `json:"_source"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode mget response: %w", err)
	}

	out := make(map[string]map[string]any, len(parsed.Docs))
	for _, doc := range parsed.Docs {
		if doc.Found {
			out[doc.ID] = doc.Source
		}
	}
	return out, nil
}

// SearchResponse is the subset of the search response the query service reads.
type SearchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Config returns the client configuration.
func (c *Client) Config() *config.OpenSearchConfig {
	return c.config
}

func encodeBody(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return &buf, nil
}

func closeBody(res *opensearchapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}

func responseError(op string, res *opensearchapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("%s returned error [%d]: %s", op, res.StatusCode, string(body))
}

// perform issues a raw request against the cluster; used for plugin APIs
// (ISM) that the generated API surface does not cover.
func (c *Client) perform(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := encodeBody(body)
		if err != nil {
			return nil, err
		}
		reader = encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.os.Perform(req)
}

// DailyIndexName returns base-YYYY-MM-DD for the given day in UTC.
func DailyIndexName(base string, day time.Time) string {
	return fmt.Sprintf("%s-%s", base, day.UTC().Format("2006-01-02"))
}
