package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/jonesrussell/north-search/internal/domain"
)

// BulkItemFailure describes one action rejected inside an otherwise
// successful bulk call.
type BulkItemFailure struct {
	Action domain.BulkAction
	Status int
	Reason string
}

// BulkResult summarizes one bulk call.
type BulkResult struct {
	Succeeded int
	Failures  []BulkItemFailure
}

// Bulk commits actions in a single _bulk call. A transport or top-level
// error is returned as err; per-item rejections are reported in the result
// so the caller can retry or log them without failing the batch.
func (c *Client) Bulk(ctx context.Context, actions []domain.BulkAction) (*BulkResult, error) {
	if len(actions) == 0 {
		return &BulkResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range actions {
		meta := map[string]any{
			"index": map[string]any{
				"_index": actions[i].Index,
				"_id":    actions[i].ID,
			},
		}
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("encode bulk action meta: %w", err)
		}
		if err := enc.Encode(actions[i].Source); err != nil {
			return nil, fmt.Errorf("encode bulk action source: %w", err)
		}
	}

	res, err := opensearchapi.BulkRequest{Body: &buf}.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("bulk request failed: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError("bulk", res)
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}

	result := &BulkResult{}
	if !parsed.Errors {
		result.Succeeded = len(actions)
		return result, nil
	}

	for i, item := range parsed.Items {
		if i >= len(actions) {
			break
		}
		op, ok := item["index"]
		if !ok || op.Error == nil {
			result.Succeeded++
			continue
		}
		result.Failures = append(result.Failures, BulkItemFailure{
			Action: actions[i],
			Status: op.Status,
			Reason: fmt.Sprintf("%s: %s", op.Error.Type, op.Error.Reason),
		})
	}
	return result, nil
}
