// Package serve implements the 'archlens serve' command: it builds every
// pipeline component from the loaded configuration and runs the service
// until interrupted.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/agents"
	"github.com/archlens/archlens/internal/blob"
	"github.com/archlens/archlens/internal/bus"
	"github.com/archlens/archlens/internal/chunker"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/embedding"
	"github.com/archlens/archlens/internal/jobs"
	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/progress"
	"github.com/archlens/archlens/internal/report"
	"github.com/archlens/archlens/internal/retrieval"
	"github.com/archlens/archlens/internal/router"
	"github.com/archlens/archlens/internal/server"
	"github.com/archlens/archlens/internal/service"
	"github.com/archlens/archlens/internal/store"
	"github.com/archlens/archlens/internal/tokenizer"
	"github.com/archlens/archlens/internal/vectorstore"
	"github.com/archlens/archlens/internal/version"
	"github.com/archlens/archlens/internal/watchdog"
)

// ServeCmd runs the review service in foreground mode.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review service in foreground mode",
	Long: "Run the review service in foreground mode.\n\n" +
		"The service exposes the HTTP API, consumes analysis commands from the " +
		"message bus, and runs the full review pipeline: archive extraction, file " +
		"routing, chunking, embedding, vector indexing, agent analysis, and report " +
		"aggregation. Logs go to the configured log file. Use standard backgrounding " +
		"methods like '&', 'nohup', or a service runner (launchd, systemd) to run " +
		"the service in the background.",
	Example: `  # Run the service in foreground
  archlens serve

  # Run the service in background
  nohup archlens serve &`,
	PreRunE: validateServe,
	RunE:    runServe,
}

func validateServe(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage layer: relational store, blob store, vector store.
	st, err := store.Open(ctx, config.ExpandHome(cfg.Storage.DBPath))
	if err != nil {
		return fmt.Errorf("failed to open project store; %w", err)
	}
	defer st.Close()

	blobs, err := blob.New(cfg.Storage.Blob, blob.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to build blob client; %w", err)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure blob bucket; %w", err)
	}

	vectors, err := vectorstore.New(ctx, vectorstore.Config{
		Host:                  cfg.Vector.Host,
		Port:                  cfg.Vector.Port,
		CollectionPrefix:      cfg.Vector.CollectionPrefix,
		PerProjectCollections: cfg.Vector.PerProjectCollections,
		Dimension:             cfg.Embeddings.Dimension,
		FailOnIndexingFailure: cfg.Vector.FailOnIndexingFailure,
	}, vectorstore.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to connect to vector store; %w", err)
	}
	defer vectors.Close()

	// Model providers: embeddings and chat completion.
	tok := tokenizer.Shared()
	embedder := embedding.NewClient(
		embedding.NewOpenAIProvider(
			embedding.WithModel(cfg.Embeddings.Model),
			embedding.WithBaseURL(cfg.Embeddings.BaseURL),
			embedding.WithDimensions(cfg.Embeddings.Dimension),
			embedding.WithAPIKey(cfg.Embeddings.ResolveAPIKey()),
		),
		embedding.Config{
			Concurrency:      cfg.Embeddings.Concurrency,
			TokensPerMinute:  cfg.Embeddings.TokensPerMinute,
			BatchSize:        cfg.Embeddings.BatchSize,
			Dimension:        cfg.Embeddings.Dimension,
			MaxRetryAttempts: cfg.Analysis.MaxRetryAttempts,
		},
		embedding.WithClientLogger(logger),
		embedding.WithTokenCounter(tok.Count),
	)

	registry, err := llm.FromConfig(ctx, cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to build chat providers; %w", err)
	}
	chat, err := registry.Default()
	if err != nil {
		return fmt.Errorf("no chat provider available; %w", err)
	}
	logger.Info("chat provider selected", "provider", chat.Name(), "model", cfg.LLM.Model)

	// Agents and report aggregation.
	qualityCfg := agents.DefaultCodeQualityConfig()
	if cfg.LLM.MaxParallelCalls > 0 {
		qualityCfg.MaxParallelCalls = cfg.LLM.MaxParallelCalls
	}
	if cfg.Analysis.DeepDiveComplexityThreshold > 0 {
		qualityCfg.DeepDiveComplexityThreshold = cfg.Analysis.DeepDiveComplexityThreshold
	}
	if cfg.Analysis.DeepDiveLineCountThreshold > 0 {
		qualityCfg.DeepDiveLineCountThreshold = cfg.Analysis.DeepDiveLineCountThreshold
	}

	retriever := retrieval.New(embedder, vectors, retrieval.WithLogger(logger))

	agentSet := []agents.Agent{
		agents.NewStructureAgent(logger),
		agents.NewCodeQualityAgent(chat, qualityCfg, logger,
			agents.WithCodeQualityRetriever(retriever)),
		agents.NewSecurityAgent(chat, logger,
			agents.WithSecurityRetriever(retriever)),
		agents.NewArchitectureAdvisorAgent(chat, logger),
	}

	info := version.Get()
	aggregator := report.New(chat, report.WithLogger(logger), report.WithVersion(info.Version))

	// Supervision collaborators shared by the runner and the HTTP layer.
	tracker := watchdog.NewTracker(watchdog.Config{
		CheckInterval:        time.Duration(cfg.Watchdog.CheckIntervalSeconds) * time.Second,
		MaxHeartbeatInterval: time.Duration(cfg.Watchdog.MaxHeartbeatIntervalSeconds) * time.Second,
		MaxProjectDuration:   time.Duration(cfg.Watchdog.MaxProjectDurationSeconds) * time.Second,
		AutoCancelStuck:      cfg.Watchdog.AutoCancelStuck,
	}, watchdog.WithLogger(logger), watchdog.WithOnStuck(func(op watchdog.StuckOp) {
		logger.Warn("stuck operation detected",
			"project_id", op.ProjectID,
			"phase", op.Phase,
			"reason", op.Reason,
			"since", op.Since,
		)
	}))

	broker := progress.NewBroker(progress.WithLogger(logger))
	defer broker.Close()

	producer := bus.NewProducer(cfg.Bus, bus.WithProducerLogger(logger))
	defer producer.Close()

	// The job runner and its bus consumer.
	runner := jobs.NewRunner(
		jobs.Deps{
			Store:      st,
			Blob:       blobs,
			Vectors:    vectors,
			Chunker: chunker.New(chunker.Config{
				MaxChunkTokens: cfg.Analysis.MaxChunkTokens,
				MinChunkTokens: cfg.Analysis.MinChunkTokens,
				OverlapTokens:  cfg.Analysis.OverlapTokens,
			}, chunker.WithTokenCounter(tok.Count), chunker.WithLogger(logger)),
			Embedder:   embedder,
			Agents:     agentSet,
			Aggregator: aggregator,
			Producer:   producer,
			Progress:   broker,
			Watchdog:   tracker,
		},
		jobs.Config{
			ScratchDir: config.ExpandHome(cfg.Storage.ScratchDir),
			Router: router.Config{
				DirectSendThresholdBytes: cfg.Analysis.DirectSendThresholdBytes,
				RagChunkThresholdBytes:   cfg.Analysis.RagChunkThresholdBytes,
				AllowLargeFiles:          cfg.Analysis.AllowLargeFiles,
				RiskThreshold:            cfg.Analysis.RiskThreshold,
			},
			Preflight: router.PreflightConfig{
				WarnThresholdTokens:     cfg.Analysis.WarnThresholdTokens,
				ApprovalThresholdTokens: cfg.Analysis.ApprovalThresholdTokens,
				ApprovalThresholdCost:   cfg.Analysis.ApprovalThresholdCost,
				PricePerMillionTokens:   cfg.Analysis.PricePerMillionTokens,
			},
			BatchSize: cfg.Embeddings.BatchSize,
			Version:   info.Version,
		},
		jobs.WithLogger(logger),
	)

	consumer := bus.NewConsumer(cfg.Bus, cfg.Analysis.MaxRetryAttempts, runner.Handle,
		bus.WithConsumerLogger(logger),
		bus.WithDeadLetterFunc(runner.FailFromDeadLetter),
	)

	// HTTP surface and runtime supervision.
	health := service.NewHealthManager()
	srv := server.NewServer(cfg.Server, server.Deps{
		Store:    st,
		Blob:     blobs,
		Producer: producer,
		Runner:   runner,
		Progress: broker,
		Ready:    health,
	}, server.WithLogger(logger), server.WithVersion(info.Version))

	runtime := service.NewRuntime(service.Config{
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeout) * time.Second,
	}, health, srv, service.WithRuntimeLogger(logger))

	runtime.Add(service.Func{
		ComponentName: "bus-consumer",
		StartFn:       consumer.Run,
		StopFn:        func(context.Context) error { return consumer.Close() },
	}, service.RestartOnFailure)

	runtime.Add(service.Func{
		ComponentName: "watchdog",
		StartFn:       tracker.Run,
	}, service.RestartOnFailure)

	logger.Info("starting service",
		"http_bind", cfg.Server.HTTPBind,
		"http_port", cfg.Server.HTTPPort,
		"stream", cfg.Bus.Stream,
		"version", info.Version,
	)

	if err := runtime.Run(ctx); err != nil {
		return fmt.Errorf("service error; %w", err)
	}

	return nil
}
