package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/jonesrussell/north-search/internal/logger"
)

// Admin performs the idempotent startup routine: index templates, today's
// daily indices, base aliases, and the retention policy.
type Admin struct {
	client *Client
	logger logger.Logger
}

// NewAdmin creates an index admin.
func NewAdmin(client *Client, log logger.Logger) *Admin {
	return &Admin{client: client, logger: log}
}

// EnsureAll runs the full startup routine. Every step is idempotent; a
// failing retention-policy step is logged and tolerated because not every
// cluster ships the ISM plugin.
func (a *Admin) EnsureAll(ctx context.Context) error {
	cfg := a.client.Config()

	if err := a.EnsureTemplate(ctx, cfg.DocumentsBase, documentTemplate(cfg.DocumentsBase)); err != nil {
		return err
	}
	if err := a.EnsureTemplate(ctx, cfg.ChunksBase, chunkTemplate(cfg.ChunksBase)); err != nil {
		return err
	}

	today := time.Now().UTC()
	for _, base := range []string{cfg.DocumentsBase, cfg.ChunksBase} {
		index := DailyIndexName(base, today)
		if err := a.EnsureIndex(ctx, index); err != nil {
			return err
		}
		if err := a.EnsureAlias(ctx, base, index); err != nil {
			return err
		}
	}

	if err := a.EnsureRetentionPolicy(ctx); err != nil {
		a.logger.Warn("Retention policy not applied; falling back to manual cleanup",
			logger.Error(err),
		)
		if delErr := a.DeleteExpiredIndices(ctx); delErr != nil {
			a.logger.Warn("Manual index cleanup failed", logger.Error(delErr))
		}
	}

	return nil
}

// EnsureTemplate installs a composable index template.
func (a *Admin) EnsureTemplate(ctx context.Context, base string, template map[string]any) error {
	body, err := encodeBody(template)
	if err != nil {
		return err
	}

	res, err := opensearchapi.IndicesPutIndexTemplateRequest{
		Name: base + "-template",
		Body: body,
	}.Do(ctx, a.client.os)
	if err != nil {
		return fmt.Errorf("put index template %s: %w", base, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("put index template "+base, res)
	}

	a.logger.Debug("Index template ensured", logger.String("base", base))
	return nil
}

// EnsureIndex creates the index if it does not exist.
func (a *Admin) EnsureIndex(ctx context.Context, index string) error {
	exists, err := opensearchapi.IndicesExistsRequest{
		Index: []string{index},
	}.Do(ctx, a.client.os)
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	closeBody(exists)
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	res, err := opensearchapi.IndicesCreateRequest{Index: index}.Do(ctx, a.client.os)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer closeBody(res)

	// A concurrent creator winning the race is fine.
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return responseError("create index "+index, res)
	}

	a.logger.Info("Index created", logger.String("index", index))
	return nil
}

// EnsureAlias points the base alias at the given index, removing the alias
// from any older daily index in one atomic update.
func (a *Admin) EnsureAlias(ctx context.Context, alias, index string) error {
	actions := map[string]any{
		"actions": []map[string]any{
			{"remove": map[string]any{"index": alias + "-*", "alias": alias, "must_exist": false}},
			{"add": map[string]any{"index": index, "alias": alias}},
		},
	}
	body, err := encodeBody(actions)
	if err != nil {
		return err
	}

	res, err := opensearchapi.IndicesUpdateAliasesRequest{Body: body}.Do(ctx, a.client.os)
	if err != nil {
		return fmt.Errorf("update alias %s: %w", alias, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("update alias "+alias, res)
	}

	a.logger.Debug("Alias ensured",
		logger.String("alias", alias),
		logger.String("index", index),
	)
	return nil
}

// RetentionPolicyName is the ISM policy id managing daily index expiry.
const RetentionPolicyName = "north-search-retention"

// EnsureRetentionPolicy installs the ISM delete-after-retention policy.
// Conflict (policy already present) is treated as success.
func (a *Admin) EnsureRetentionPolicy(ctx context.Context) error {
	cfg := a.client.Config()
	policy := retentionPolicy(cfg.RetentionDays, []string{
		cfg.DocumentsBase + "-*",
		cfg.ChunksBase + "-*",
	})

	res, err := a.client.perform(ctx, http.MethodPut, "/_plugins/_ism/policies/"+RetentionPolicyName, policy)
	if err != nil {
		return fmt.Errorf("put ism policy: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusConflict:
		return nil
	case res.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("ism policy returned [%d]: %s", res.StatusCode, string(body))
	}

	a.logger.Info("Retention policy ensured",
		logger.String("policy", RetentionPolicyName),
		logger.Int("retention_days", cfg.RetentionDays),
	)
	return nil
}

// DeleteExpiredIndices removes daily indices older than the retention
// window. Used when the cluster has no ISM plugin.
func (a *Admin) DeleteExpiredIndices(ctx context.Context) error {
	cfg := a.client.Config()
	cutoff := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays)

	for _, base := range []string{cfg.DocumentsBase, cfg.ChunksBase} {
		indices, err := a.listIndices(ctx, base+"-*")
		if err != nil {
			return err
		}
		for _, index := range indices {
			day, ok := parseDailyIndexDate(base, index)
			if !ok || !day.Before(cutoff) {
				continue
			}
			if err := a.deleteIndex(ctx, index); err != nil {
				a.logger.Warn("Failed to delete expired index",
					logger.String("index", index),
					logger.Error(err),
				)
				continue
			}
			a.logger.Info("Expired index deleted", logger.String("index", index))
		}
	}
	return nil
}

func (a *Admin) listIndices(ctx context.Context, pattern string) ([]string, error) {
	res, err := opensearchapi.CatIndicesRequest{
		Index:  []string{pattern},
		Format: "json",
	}.Do(ctx, a.client.os)
	if err != nil {
		return nil, fmt.Errorf("list indices %s: %w", pattern, err)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, responseError("list indices "+pattern, res)
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode indices list: %w", err)
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Index)
	}
	return out, nil
}

func (a *Admin) deleteIndex(ctx context.Context, index string) error {
	res, err := opensearchapi.IndicesDeleteRequest{Index: []string{index}}.Do(ctx, a.client.os)
	if err != nil {
		return err
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("delete index "+index, res)
	}
	return nil
}

// parseDailyIndexDate extracts the date suffix from base-YYYY-MM-DD.
func parseDailyIndexDate(base, index string) (time.Time, bool) {
	suffix, ok := strings.CutPrefix(index, base+"-")
	if !ok {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", suffix)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
