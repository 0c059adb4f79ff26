package config

import "github.com/spf13/viper"

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "~/.config/archlens/archlens.log"

	DefaultHTTPPort           = 7810
	DefaultHTTPBind           = "127.0.0.1"
	DefaultShutdownTimeout    = 30 // seconds
	DefaultRateLimitPerMinute = 120
	DefaultMaxUploadBytes     = 256 << 20

	DefaultDBPath     = "~/.config/archlens/archlens.db"
	DefaultScratchDir = "~/.cache/archlens/scratch"

	DefaultBlobEndpoint  = "127.0.0.1:9000"
	DefaultBlobAccessKey = "archlens"
	DefaultBlobSecretEnv = "ARCHLENS_BLOB_SECRET_KEY"
	DefaultBlobBucket    = "archlens-projects"

	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultBusStream        = "archlens:analysis"
	DefaultBusGroup         = "analyzers"
	DefaultBusConcurrency   = 2
	DefaultClaimIdleSeconds = 300

	DefaultVectorHost           = "127.0.0.1"
	DefaultVectorPort           = 6334
	DefaultCollectionPrefix     = "archlens"
	DefaultPerProjectCollection = true
	DefaultFailOnIndexing       = true

	DefaultEmbeddingsModel   = "text-embedding-3-small"
	DefaultEmbeddingsKeyEnv  = "OPENAI_API_KEY"
	DefaultEmbeddingDim      = 1536
	DefaultEmbeddingConc     = 5
	DefaultTokensPerMinute   = 1_000_000
	DefaultEmbeddingBatch    = 16
	DefaultLLMProvider       = "openai"
	DefaultLLMModel          = "gpt-4o-mini"
	DefaultLLMKeyEnv         = "OPENAI_API_KEY"
	DefaultMaxParallelCalls  = 4
	DefaultDirectSendBytes   = 10240
	DefaultRagChunkBytes     = 204800
	DefaultMaxChunkTokens    = 1600
	DefaultMinChunkTokens    = 50
	DefaultOverlapTokens     = 100
	DefaultWarnTokens        = 500_000
	DefaultApprovalTokens    = 2_000_000
	DefaultApprovalCost      = 50.0
	DefaultPricePerMillion   = 0.15
	DefaultRiskThreshold     = 0.5
	DefaultDeepDiveCx        = 20
	DefaultDeepDiveLines     = 500
	DefaultMaxRetryAttempts  = 3
	DefaultWatchdogInterval  = 30
	DefaultHeartbeatInterval = 120
	DefaultMaxProjectSeconds = 3600
)

// setViperDefaults registers all default configuration values.
// Called before reading config files so absent keys resolve to defaults.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)

	v.SetDefault("server.http_port", DefaultHTTPPort)
	v.SetDefault("server.http_bind", DefaultHTTPBind)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("server.rate_limit_per_minute", DefaultRateLimitPerMinute)
	v.SetDefault("server.max_upload_bytes", DefaultMaxUploadBytes)

	v.SetDefault("storage.db_path", DefaultDBPath)
	v.SetDefault("storage.scratch_dir", DefaultScratchDir)
	v.SetDefault("storage.blob.endpoint", DefaultBlobEndpoint)
	v.SetDefault("storage.blob.access_key", DefaultBlobAccessKey)
	v.SetDefault("storage.blob.secret_key_env", DefaultBlobSecretEnv)
	v.SetDefault("storage.blob.bucket", DefaultBlobBucket)
	v.SetDefault("storage.blob.use_ssl", false)

	v.SetDefault("bus.redis_addr", DefaultRedisAddr)
	v.SetDefault("bus.password_env", "ARCHLENS_REDIS_PASSWORD")
	v.SetDefault("bus.stream", DefaultBusStream)
	v.SetDefault("bus.group", DefaultBusGroup)
	v.SetDefault("bus.consumer", "")
	v.SetDefault("bus.concurrent_message_limit", DefaultBusConcurrency)
	v.SetDefault("bus.claim_idle_seconds", DefaultClaimIdleSeconds)

	v.SetDefault("vector.host", DefaultVectorHost)
	v.SetDefault("vector.port", DefaultVectorPort)
	v.SetDefault("vector.collection_prefix", DefaultCollectionPrefix)
	v.SetDefault("vector.per_project_collections", DefaultPerProjectCollection)
	v.SetDefault("vector.fail_on_indexing_failure", DefaultFailOnIndexing)

	v.SetDefault("embeddings.model", DefaultEmbeddingsModel)
	v.SetDefault("embeddings.base_url", "https://api.openai.com/v1")
	v.SetDefault("embeddings.dimension", DefaultEmbeddingDim)
	v.SetDefault("embeddings.concurrency", DefaultEmbeddingConc)
	v.SetDefault("embeddings.tokens_per_minute", DefaultTokensPerMinute)
	v.SetDefault("embeddings.batch_size", DefaultEmbeddingBatch)
	v.SetDefault("embeddings.api_key_env", DefaultEmbeddingsKeyEnv)

	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("llm.model", DefaultLLMModel)
	v.SetDefault("llm.max_parallel_calls", DefaultMaxParallelCalls)
	v.SetDefault("llm.api_key_env", DefaultLLMKeyEnv)

	v.SetDefault("analysis.direct_send_threshold_bytes", DefaultDirectSendBytes)
	v.SetDefault("analysis.rag_chunk_threshold_bytes", DefaultRagChunkBytes)
	v.SetDefault("analysis.allow_large_files", false)
	v.SetDefault("analysis.max_chunk_tokens", DefaultMaxChunkTokens)
	v.SetDefault("analysis.min_chunk_tokens", DefaultMinChunkTokens)
	v.SetDefault("analysis.overlap_tokens", DefaultOverlapTokens)
	v.SetDefault("analysis.warn_threshold_tokens", DefaultWarnTokens)
	v.SetDefault("analysis.approval_threshold_tokens", DefaultApprovalTokens)
	v.SetDefault("analysis.approval_threshold_cost", DefaultApprovalCost)
	v.SetDefault("analysis.price_per_million_tokens", DefaultPricePerMillion)
	v.SetDefault("analysis.risk_threshold", DefaultRiskThreshold)
	v.SetDefault("analysis.deep_dive_complexity_threshold", DefaultDeepDiveCx)
	v.SetDefault("analysis.deep_dive_line_count_threshold", DefaultDeepDiveLines)
	v.SetDefault("analysis.max_retry_attempts", DefaultMaxRetryAttempts)

	v.SetDefault("watchdog.check_interval_seconds", DefaultWatchdogInterval)
	v.SetDefault("watchdog.max_heartbeat_interval_seconds", DefaultHeartbeatInterval)
	v.SetDefault("watchdog.max_project_duration_seconds", DefaultMaxProjectSeconds)
	v.SetDefault("watchdog.auto_cancel_stuck", false)
}
