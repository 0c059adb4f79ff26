package config

import "os"

// Config is the root configuration structure for the application.
type Config struct {
	LogLevel   string           `yaml:"log_level" mapstructure:"log_level"`
	LogFile    string           `yaml:"log_file" mapstructure:"log_file"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Bus        BusConfig        `yaml:"bus" mapstructure:"bus"`
	Vector     VectorConfig     `yaml:"vector" mapstructure:"vector"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Watchdog   WatchdogConfig   `yaml:"watchdog" mapstructure:"watchdog"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort           int    `yaml:"http_port" mapstructure:"http_port"`
	HTTPBind           string `yaml:"http_bind" mapstructure:"http_bind"`
	ShutdownTimeout    int    `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	MaxUploadBytes     int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// StorageConfig holds relational, scratch, and blob storage configuration.
type StorageConfig struct {
	DBPath     string     `yaml:"db_path" mapstructure:"db_path"`
	ScratchDir string     `yaml:"scratch_dir" mapstructure:"scratch_dir"`
	Blob       BlobConfig `yaml:"blob" mapstructure:"blob"`
}

// BlobConfig holds object storage (MinIO/S3-compatible) configuration.
type BlobConfig struct {
	Endpoint     string  `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey    string  `yaml:"access_key" mapstructure:"access_key"`
	SecretKey    *string `yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	SecretKeyEnv string  `yaml:"secret_key_env" mapstructure:"secret_key_env"`
	Bucket       string  `yaml:"bucket" mapstructure:"bucket"`
	UseSSL       bool    `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// ResolveSecretKey returns the secret key from config or falls back to the
// environment variable.
func (c *BlobConfig) ResolveSecretKey() string {
	if c.SecretKey != nil && *c.SecretKey != "" {
		return *c.SecretKey
	}
	return os.Getenv(c.SecretKeyEnv)
}

// BusConfig holds the Redis Streams command bus configuration.
type BusConfig struct {
	RedisAddr              string `yaml:"redis_addr" mapstructure:"redis_addr"`
	PasswordEnv            string `yaml:"password_env" mapstructure:"password_env"`
	Stream                 string `yaml:"stream" mapstructure:"stream"`
	Group                  string `yaml:"group" mapstructure:"group"`
	Consumer               string `yaml:"consumer" mapstructure:"consumer"`
	ConcurrentMessageLimit int    `yaml:"concurrent_message_limit" mapstructure:"concurrent_message_limit"`
	ClaimIdleSeconds       int    `yaml:"claim_idle_seconds" mapstructure:"claim_idle_seconds"`
}

// ResolvePassword returns the Redis password from the environment.
func (c *BusConfig) ResolvePassword() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// VectorConfig holds vector database (Qdrant) configuration.
type VectorConfig struct {
	Host                  string `yaml:"host" mapstructure:"host"`
	Port                  int    `yaml:"port" mapstructure:"port"`
	CollectionPrefix      string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	PerProjectCollections bool   `yaml:"per_project_collections" mapstructure:"per_project_collections"`
	FailOnIndexingFailure bool   `yaml:"fail_on_indexing_failure" mapstructure:"fail_on_indexing_failure"`
}

// EmbeddingsConfig holds embeddings provider configuration.
type EmbeddingsConfig struct {
	Model           string  `yaml:"model" mapstructure:"model"`
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	Dimension       int     `yaml:"dimension" mapstructure:"dimension"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	TokensPerMinute int     `yaml:"tokens_per_minute" mapstructure:"tokens_per_minute"`
	BatchSize       int     `yaml:"batch_size" mapstructure:"batch_size"`
	APIKey          *string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv       string  `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// ResolveAPIKey returns the API key from config or falls back to the
// environment variable.
func (c *EmbeddingsConfig) ResolveAPIKey() string {
	if c.APIKey != nil && *c.APIKey != "" {
		return *c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

// LLMConfig holds chat completion provider configuration.
type LLMConfig struct {
	Provider         string  `yaml:"provider" mapstructure:"provider"`
	Model            string  `yaml:"model" mapstructure:"model"`
	MaxParallelCalls int     `yaml:"max_parallel_calls" mapstructure:"max_parallel_calls"`
	APIKey           *string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv        string  `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// ResolveAPIKey returns the API key from config or falls back to the
// environment variable.
func (c *LLMConfig) ResolveAPIKey() string {
	if c.APIKey != nil && *c.APIKey != "" {
		return *c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

// AnalysisConfig holds pipeline thresholds and budgets.
type AnalysisConfig struct {
	DirectSendThresholdBytes    int64   `yaml:"direct_send_threshold_bytes" mapstructure:"direct_send_threshold_bytes"`
	RagChunkThresholdBytes      int64   `yaml:"rag_chunk_threshold_bytes" mapstructure:"rag_chunk_threshold_bytes"`
	AllowLargeFiles             bool    `yaml:"allow_large_files" mapstructure:"allow_large_files"`
	MaxChunkTokens              int     `yaml:"max_chunk_tokens" mapstructure:"max_chunk_tokens"`
	MinChunkTokens              int     `yaml:"min_chunk_tokens" mapstructure:"min_chunk_tokens"`
	OverlapTokens               int     `yaml:"overlap_tokens" mapstructure:"overlap_tokens"`
	WarnThresholdTokens         int64   `yaml:"warn_threshold_tokens" mapstructure:"warn_threshold_tokens"`
	ApprovalThresholdTokens     int64   `yaml:"approval_threshold_tokens" mapstructure:"approval_threshold_tokens"`
	ApprovalThresholdCost       float64 `yaml:"approval_threshold_cost" mapstructure:"approval_threshold_cost"`
	PricePerMillionTokens       float64 `yaml:"price_per_million_tokens" mapstructure:"price_per_million_tokens"`
	RiskThreshold               float64 `yaml:"risk_threshold" mapstructure:"risk_threshold"`
	DeepDiveComplexityThreshold int     `yaml:"deep_dive_complexity_threshold" mapstructure:"deep_dive_complexity_threshold"`
	DeepDiveLineCountThreshold  int     `yaml:"deep_dive_line_count_threshold" mapstructure:"deep_dive_line_count_threshold"`
	MaxRetryAttempts            int     `yaml:"max_retry_attempts" mapstructure:"max_retry_attempts"`
}

// WatchdogConfig holds stuck-job detection configuration.
type WatchdogConfig struct {
	CheckIntervalSeconds        int  `yaml:"check_interval_seconds" mapstructure:"check_interval_seconds"`
	MaxHeartbeatIntervalSeconds int  `yaml:"max_heartbeat_interval_seconds" mapstructure:"max_heartbeat_interval_seconds"`
	MaxProjectDurationSeconds   int  `yaml:"max_project_duration_seconds" mapstructure:"max_project_duration_seconds"`
	AutoCancelStuck             bool `yaml:"auto_cancel_stuck" mapstructure:"auto_cancel_stuck"`
}
