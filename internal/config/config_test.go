package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-search/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "north-search", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "http://localhost:9200", cfg.OpenSearch.Host)
	assert.Equal(t, "documents", cfg.OpenSearch.DocumentsBase)
	assert.Equal(t, 90, cfg.OpenSearch.RetentionDays)
	assert.Equal(t, 2000, cfg.Pipeline.MaxChunkSize)
	assert.Equal(t, 400, cfg.Pipeline.MinChunkSize)
	assert.Equal(t, 500, cfg.Indexer.BulkChunkSize)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, 100*time.Millisecond, cfg.Summarizer.StreamInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
service:
  port: 9090
  debug: true
opensearch:
  host: http://search:9200
  documents_base: docs
indexer:
  bulk_chunk_size: 250
  batch_timeout: 2s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Service.Port)
	assert.True(t, cfg.Service.Debug)
	assert.Equal(t, "http://search:9200", cfg.OpenSearch.Host)
	assert.Equal(t, "docs", cfg.OpenSearch.DocumentsBase)
	assert.Equal(t, 250, cfg.Indexer.BulkChunkSize)
	assert.Equal(t, 2*time.Second, cfg.Indexer.BatchTimeout)
	// Untouched sections still get defaults.
	assert.Equal(t, "chunks", cfg.OpenSearch.ChunksBase)
}

func TestEnvOverridesWin(t *testing.T) {
	path := writeConfig(t, `
opensearch:
  host: http://file-wins:9200
`)
	t.Setenv("OPENSEARCH_HOST", "http://env-wins:9200")
	t.Setenv("BACKEND_PORT", "7070")
	t.Setenv("CHECK_INTERVAL_SECONDS", "15")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env-wins:9200", cfg.OpenSearch.Host)
	assert.Equal(t, 7070, cfg.Service.Port)
	// Bare integer durations are seconds.
	assert.Equal(t, 15*time.Second, cfg.Indexer.PollInterval)
}

func TestValidationRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad port", "service:\n  port: 99999\n"},
		{"bad auth type", "opensearch:\n  auth_type: token\n"},
		{"basic auth without username", "opensearch:\n  auth_type: basic\n"},
		{"min chunk above max", "pipeline:\n  min_chunk_size: 5000\n  max_chunk_size: 1000\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yml", config.GetConfigPath("config.yml"))

	t.Setenv("CONFIG_PATH", "/etc/search/config.yml")
	assert.Equal(t, "/etc/search/config.yml", config.GetConfigPath("config.yml"))
}
