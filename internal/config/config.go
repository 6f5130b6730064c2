package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds all configuration for the pipeline, indexer, and query
// service binaries. Each binary reads only the sections it needs.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Search     SearchConfig     `yaml:"search"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Logging    LoggingConfig    `yaml:"logging"`
	CORS       CORSConfig       `yaml:"cors"`
}

// ServiceConfig holds service-level configuration for the HTTP binary.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	Host            string        `yaml:"host" env:"BACKEND_HOST"`
	Port            int           `yaml:"port" env:"BACKEND_PORT"`
	Debug           bool          `yaml:"debug" env:"SEARCH_DEBUG"`
	ShutdownGrace   time.Duration `yaml:"shutdown_grace"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	ExposeConfig    bool          `yaml:"expose_config"`
	RequestLogLevel string        `yaml:"request_log_level"`
}

// OpenSearchConfig holds index store connection configuration.
type OpenSearchConfig struct {
	Host          string        `yaml:"host" env:"OPENSEARCH_HOST"`
	AuthType      string        `yaml:"auth_type" env:"OPENSEARCH_AUTH_TYPE"`
	Username      string        `yaml:"username" env:"OPENSEARCH_USERNAME"`
	Password      string        `yaml:"password" env:"OPENSEARCH_PASSWORD"`
	Insecure      bool          `yaml:"insecure" env:"OPENSEARCH_INSECURE"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	DocumentsBase string        `yaml:"documents_base"`
	ChunksBase    string        `yaml:"chunks_base"`
	RetentionDays int           `yaml:"retention_days" env:"RETENTION_DAYS"`
}

// PipelineConfig holds document-processing pipeline configuration.
type PipelineConfig struct {
	RawDir           string `yaml:"raw_dir" env:"RAW_DATA_DIR"`
	OutDir           string `yaml:"out_dir" env:"TO_INDEX_DIR"`
	MaxWorkers       int    `yaml:"max_workers" env:"MAX_WORKERS"`
	MaxItemsPerFile  int    `yaml:"max_items_per_file"`
	MinContentLength int    `yaml:"min_content_length" env:"MIN_CONTENT_LENGTH"`
	MinChunkWords    int    `yaml:"min_chunk_words"`
	MaxChunkChars    int    `yaml:"max_chunk_chars"`
	MaxChunkSize     int    `yaml:"max_chunk_size" env:"MAX_CHUNK_SIZE"`
	MinChunkSize     int    `yaml:"min_chunk_size"`
	PreserveContext  bool   `yaml:"preserve_context"`
	MaxKeywords      int    `yaml:"max_keywords"`
	PreviewLength    int    `yaml:"preview_length"`
}

// IndexerConfig holds the long-running indexer service configuration.
type IndexerConfig struct {
	FreshDir         string        `yaml:"fresh_dir" env:"FRESH_DIR"`
	BacklogDir       string        `yaml:"backlog_dir" env:"BACKLOG_DIR"`
	ProcessedDir     string        `yaml:"processed_dir" env:"PROCESSED_DIR"`
	FailedDir        string        `yaml:"failed_dir" env:"FAILED_DIR"`
	HighCapacity     int           `yaml:"high_capacity"`
	StandardCapacity int           `yaml:"standard_capacity"`
	PutTimeout       time.Duration `yaml:"put_timeout"`
	BulkChunkSize    int           `yaml:"bulk_chunk_size" env:"BATCH_SIZE"`
	BatchTimeout     time.Duration `yaml:"batch_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval" env:"CHECK_INTERVAL_SECONDS"`
	StatsInterval    time.Duration `yaml:"stats_interval"`
	HealthInterval   time.Duration `yaml:"health_interval"`
	BacklogBatchSize int           `yaml:"backlog_batch_size"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	RetryInitial     time.Duration `yaml:"retry_initial"`
	RetryMax         time.Duration `yaml:"retry_max"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	RequeueFailed    bool          `yaml:"requeue_failed_batches"`
}

// SearchConfig holds query service configuration.
type SearchConfig struct {
	MaxLimit         int           `yaml:"max_limit"`
	DefaultLimit     int           `yaml:"default_limit"`
	CacheSize        int           `yaml:"cache_size"`
	SearchTimeout    time.Duration `yaml:"search_timeout"`
	PreviewMaxLength int           `yaml:"preview_max_length"`
}

// SummarizerConfig holds the AI summarizer side-channel configuration.
type SummarizerConfig struct {
	Endpoint        string        `yaml:"endpoint" env:"SUMMARIZER_ENDPOINT"`
	QuickTimeout    time.Duration `yaml:"quick_timeout"`
	GenerateTimeout time.Duration `yaml:"generate_timeout"`
	AttachWait      time.Duration `yaml:"attach_wait"`
	StreamInterval  time.Duration `yaml:"stream_interval"`
	MaxLength       int           `yaml:"max_length"`
	TopResults      int           `yaml:"top_results"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// CORSConfig holds CORS configuration for the query service.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins" env:"CORS_ORIGINS"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

const (
	defaultPort             = 8080
	defaultMaxWorkers       = 2
	defaultItemsPerFile     = 1000
	defaultMinContentLength = 400
	defaultMinChunkWords    = 50
	defaultMaxChunkChars    = 8000
	defaultMaxChunkSize     = 2000
	defaultMinChunkSize     = 400
	defaultMaxKeywords      = 10
	defaultPreviewLength    = 300
	defaultQueueCapacity    = 1000
	defaultBulkChunkSize    = 500
	defaultBacklogBatch     = 3
	defaultRetention        = 90
	defaultMaxLimit         = 50
	defaultCacheSize        = 1000
	defaultRetryAttempts    = 5
)

func (c *Config) setDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "north-search"
	}
	if c.Service.Version == "" {
		c.Service.Version = "1.0.0"
	}
	if c.Service.Host == "" {
		c.Service.Host = "0.0.0.0"
	}
	if c.Service.Port == 0 {
		c.Service.Port = defaultPort
	}
	if c.Service.ShutdownGrace == 0 {
		c.Service.ShutdownGrace = 30 * time.Second
	}
	if c.Service.ReadTimeout == 0 {
		c.Service.ReadTimeout = 30 * time.Second
	}
	if c.Service.WriteTimeout == 0 {
		c.Service.WriteTimeout = 60 * time.Second
	}
	if c.Service.IdleTimeout == 0 {
		c.Service.IdleTimeout = 120 * time.Second
	}

	if c.OpenSearch.Host == "" {
		c.OpenSearch.Host = "http://localhost:9200"
	}
	if c.OpenSearch.AuthType == "" {
		c.OpenSearch.AuthType = "none"
	}
	if c.OpenSearch.Timeout == 0 {
		c.OpenSearch.Timeout = 30 * time.Second
	}
	if c.OpenSearch.MaxRetries == 0 {
		c.OpenSearch.MaxRetries = 3
	}
	if c.OpenSearch.DocumentsBase == "" {
		c.OpenSearch.DocumentsBase = "documents"
	}
	if c.OpenSearch.ChunksBase == "" {
		c.OpenSearch.ChunksBase = "chunks"
	}
	if c.OpenSearch.RetentionDays == 0 {
		c.OpenSearch.RetentionDays = defaultRetention
	}

	if c.Pipeline.RawDir == "" {
		c.Pipeline.RawDir = "data/raw"
	}
	if c.Pipeline.OutDir == "" {
		c.Pipeline.OutDir = "data/toIndex"
	}
	if c.Pipeline.MaxWorkers == 0 {
		c.Pipeline.MaxWorkers = defaultWorkerCount()
	}
	if c.Pipeline.MaxItemsPerFile == 0 {
		c.Pipeline.MaxItemsPerFile = defaultItemsPerFile
	}
	if c.Pipeline.MinContentLength == 0 {
		c.Pipeline.MinContentLength = defaultMinContentLength
	}
	if c.Pipeline.MinChunkWords == 0 {
		c.Pipeline.MinChunkWords = defaultMinChunkWords
	}
	if c.Pipeline.MaxChunkChars == 0 {
		c.Pipeline.MaxChunkChars = defaultMaxChunkChars
	}
	if c.Pipeline.MaxChunkSize == 0 {
		c.Pipeline.MaxChunkSize = defaultMaxChunkSize
	}
	if c.Pipeline.MinChunkSize == 0 {
		c.Pipeline.MinChunkSize = defaultMinChunkSize
	}
	if c.Pipeline.MaxKeywords == 0 {
		c.Pipeline.MaxKeywords = defaultMaxKeywords
	}
	if c.Pipeline.PreviewLength == 0 {
		c.Pipeline.PreviewLength = defaultPreviewLength
	}

	if c.Indexer.FreshDir == "" {
		c.Indexer.FreshDir = "data/toIndex/fresh"
	}
	if c.Indexer.BacklogDir == "" {
		c.Indexer.BacklogDir = "data/toIndex/backlog"
	}
	if c.Indexer.ProcessedDir == "" {
		c.Indexer.ProcessedDir = "data/toIndex/processed"
	}
	if c.Indexer.FailedDir == "" {
		c.Indexer.FailedDir = "data/toIndex/failed"
	}
	if c.Indexer.HighCapacity == 0 {
		c.Indexer.HighCapacity = defaultQueueCapacity
	}
	if c.Indexer.StandardCapacity == 0 {
		c.Indexer.StandardCapacity = defaultQueueCapacity
	}
	if c.Indexer.PutTimeout == 0 {
		c.Indexer.PutTimeout = 30 * time.Second
	}
	if c.Indexer.BulkChunkSize == 0 {
		c.Indexer.BulkChunkSize = defaultBulkChunkSize
	}
	if c.Indexer.BatchTimeout == 0 {
		c.Indexer.BatchTimeout = 5 * time.Second
	}
	if c.Indexer.PollInterval == 0 {
		c.Indexer.PollInterval = 5 * time.Second
	}
	if c.Indexer.StatsInterval == 0 {
		c.Indexer.StatsInterval = time.Minute
	}
	if c.Indexer.HealthInterval == 0 {
		c.Indexer.HealthInterval = 30 * time.Second
	}
	if c.Indexer.BacklogBatchSize == 0 {
		c.Indexer.BacklogBatchSize = defaultBacklogBatch
	}
	if c.Indexer.ShutdownTimeout == 0 {
		c.Indexer.ShutdownTimeout = 30 * time.Second
	}
	if c.Indexer.RetryInitial == 0 {
		c.Indexer.RetryInitial = 2 * time.Second
	}
	if c.Indexer.RetryMax == 0 {
		c.Indexer.RetryMax = 600 * time.Second
	}
	if c.Indexer.RetryAttempts == 0 {
		c.Indexer.RetryAttempts = defaultRetryAttempts
	}

	if c.Search.MaxLimit == 0 {
		c.Search.MaxLimit = defaultMaxLimit
	}
	if c.Search.DefaultLimit == 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.CacheSize == 0 {
		c.Search.CacheSize = defaultCacheSize
	}
	if c.Search.SearchTimeout == 0 {
		c.Search.SearchTimeout = 30 * time.Second
	}
	if c.Search.PreviewMaxLength == 0 {
		c.Search.PreviewMaxLength = defaultPreviewLength
	}

	if c.Summarizer.QuickTimeout == 0 {
		c.Summarizer.QuickTimeout = 5 * time.Second
	}
	if c.Summarizer.GenerateTimeout == 0 {
		c.Summarizer.GenerateTimeout = 30 * time.Second
	}
	if c.Summarizer.AttachWait == 0 {
		c.Summarizer.AttachWait = 10 * time.Second
	}
	if c.Summarizer.StreamInterval == 0 {
		c.Summarizer.StreamInterval = 100 * time.Millisecond
	}
	if c.Summarizer.MaxLength == 0 {
		c.Summarizer.MaxLength = 200
	}
	if c.Summarizer.TopResults == 0 {
		c.Summarizer.TopResults = 5
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Content-Type", "Authorization"}
	}
}

// defaultWorkerCount sizes the pipeline pool for small hosts: at least one
// worker, at most two unless the host has spare cores beyond that.
func defaultWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	if n > 2 {
		n = 2
	}
	return n
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &ValidationError{Field: "service.port", Message: fmt.Sprintf("invalid port: %d", c.Service.Port)}
	}
	if c.OpenSearch.Host == "" {
		return &ValidationError{Field: "opensearch.host", Message: "is required"}
	}
	switch c.OpenSearch.AuthType {
	case "none", "basic":
	default:
		return &ValidationError{Field: "opensearch.auth_type", Message: "must be none or basic"}
	}
	if c.OpenSearch.AuthType == "basic" && c.OpenSearch.Username == "" {
		return &ValidationError{Field: "opensearch.username", Message: "required for basic auth"}
	}
	if c.Pipeline.MaxWorkers < 1 {
		return &ValidationError{Field: "pipeline.max_workers", Message: "must be greater than 0"}
	}
	if c.Pipeline.MinChunkSize > c.Pipeline.MaxChunkSize {
		return &ValidationError{Field: "pipeline.min_chunk_size", Message: "must not exceed max_chunk_size"}
	}
	if c.Indexer.BulkChunkSize < 1 {
		return &ValidationError{Field: "indexer.bulk_chunk_size", Message: "must be greater than 0"}
	}
	if c.Search.MaxLimit < 1 {
		return &ValidationError{Field: "search.max_limit", Message: "must be greater than 0"}
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return &ValidationError{Field: "search.default_limit", Message: fmt.Sprintf("must be between 1 and %d", c.Search.MaxLimit)}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return &ValidationError{Field: "logging.level", Message: "invalid log level"}
	}
	return nil
}
