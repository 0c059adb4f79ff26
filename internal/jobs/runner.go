// Package jobs runs analysis jobs consumed from the command bus: it
// resolves the project archive, routes and chunks files, drives the
// embedding and indexing pipeline, orchestrates the agents, and persists
// the final report. It also carries the administrative reset and delete
// operations, which share the runner's collaborators.
package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/archlens/archlens/internal/agents"
	"github.com/archlens/archlens/internal/apperr"
	"github.com/archlens/archlens/internal/blob"
	"github.com/archlens/archlens/internal/bus"
	"github.com/archlens/archlens/internal/chunker"
	"github.com/archlens/archlens/internal/embedding"
	"github.com/archlens/archlens/internal/metrics"
	"github.com/archlens/archlens/internal/orchestrator"
	"github.com/archlens/archlens/internal/progress"
	"github.com/archlens/archlens/internal/report"
	"github.com/archlens/archlens/internal/resilience"
	"github.com/archlens/archlens/internal/review"
	"github.com/archlens/archlens/internal/router"
	"github.com/archlens/archlens/internal/staticanalysis"
	"github.com/archlens/archlens/internal/store"
	"github.com/archlens/archlens/internal/vectorstore"
	"github.com/archlens/archlens/internal/watchdog"
)

// ErrApprovalRequired marks a job refused by the preflight gate: the
// estimate crossed an approval threshold and the command did not carry
// the approval flag. The project is failed with this exact message so
// clients can detect it and re-submit with approval.
var ErrApprovalRequired = errors.New("approval_required")

// checkpointPhaseIndexing is the checkpoint phase recorded after each
// indexed embedding batch.
const checkpointPhaseIndexing = "indexing"

// Config carries the runner's tunables. Zero values fall back to
// defaults in NewRunner.
type Config struct {
	// ScratchDir is the parent directory for per-job extraction trees.
	ScratchDir string

	// Router and Preflight configure file routing and the approval gate.
	Router    router.Config
	Preflight router.PreflightConfig

	// BatchSize is the number of chunks embedded and indexed per batch.
	BatchSize int

	// MaxExtractBytes bounds total uncompressed archive size.
	MaxExtractBytes int64

	// Version is stamped into progress messages and logs.
	Version string
}

// Deps are the runner's collaborators, built once in the composition
// root and shared across jobs.
type Deps struct {
	Store      *store.Store
	Blob       *blob.Client
	Vectors    *vectorstore.Store
	Chunker    *chunker.Chunker
	Embedder   *embedding.Client
	Agents     []agents.Agent
	Aggregator *report.Aggregator
	Producer   *bus.Producer
	Progress   *progress.Broker
	Watchdog   *watchdog.Tracker
}

// Runner executes analysis jobs. One Runner serves all concurrent jobs;
// per-job state lives on the stack of Handle.
type Runner struct {
	deps   Deps
	cfg    Config
	router *router.Router
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner builds a runner over the given collaborators.
func NewRunner(deps Deps, cfg Config, opts ...Option) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.MaxExtractBytes <= 0 {
		cfg.MaxExtractBytes = DefaultMaxExtractBytes
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	r := &Runner{
		deps:   deps,
		cfg:    cfg,
		router: router.New(cfg.Router),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one StartAnalysisCommand. It satisfies bus.Handler:
// a returned transient error leaves the message pending for redelivery,
// any other error settles it. Non-transient failures move the project to
// failed and emit AnalysisFailedEvent before returning.
func (r *Runner) Handle(ctx context.Context, cmd bus.StartAnalysisCommand, delivery int) error {
	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()
	start := time.Now()

	log := r.logger.With(
		"project_id", cmd.ProjectID,
		"correlation_id", cmd.CorrelationID,
		"delivery", delivery)

	project, err := r.deps.Store.GetProject(ctx, cmd.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load project; %w", err)
	}
	if err := r.claim(ctx, project, delivery); err != nil {
		return err
	}

	if err := r.deps.Producer.PublishStarted(ctx, bus.AnalysisStartedEvent{
		ProjectID:     cmd.ProjectID,
		CorrelationID: cmd.CorrelationID,
		StartedAt:     start.UTC(),
	}); err != nil {
		log.Warn("failed to publish started event", "error", err)
	}

	// The job owns a cancellation signal linked to the watchdog; a stuck
	// sweep may cancel it independently of the consumer's context.
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	handle := r.deps.Watchdog.Track(cmd.ProjectID, 0, 0, cancel)
	defer handle.Release()

	log.Info("analysis started", "status", project.Status)
	err = r.analyze(jobCtx, cmd, start, log)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown: leave the project and the message as they are;
			// the bus redelivers and the next attempt resumes.
			return fmt.Errorf("analysis interrupted; %w", ctx.Err())
		}
		if jobCtx.Err() != nil {
			// Only the watchdog cancels the job context on its own.
			err = apperr.Wrap(apperr.CodeWatchdogStuck, "job cancelled by watchdog", err)
		}
		if retryable(err) {
			r.revertForRetry(ctx, cmd.ProjectID, log)
			log.Warn("analysis attempt failed, leaving for redelivery", "error", err, "duration", elapsed)
			return fmt.Errorf("analysis attempt %d failed; %w", delivery, err)
		}
		r.failProject(ctx, cmd, err, delivery, log)
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		metrics.JobDuration.Observe(elapsed.Seconds())
		return fmt.Errorf("analysis failed; %w", err)
	}

	metrics.JobsTotal.WithLabelValues("completed").Inc()
	metrics.JobDuration.Observe(elapsed.Seconds())
	log.Info("analysis completed", "duration", elapsed)
	return nil
}

// claim moves the project into analyzing state. First deliveries require
// files_ready; redeliveries may find the project already queued or
// analyzing after a crash and resume it.
func (r *Runner) claim(ctx context.Context, project *store.Project, delivery int) error {
	switch project.Status {
	case store.StatusFilesReady:
		if err := r.deps.Store.UpdateProjectStatus(ctx, project.ID, store.StatusQueued); err != nil {
			return fmt.Errorf("failed to queue project; %w", err)
		}
		r.publish(progress.Update{ProjectID: project.ID, Phase: progress.PhaseQueued})
		if err := r.deps.Store.UpdateProjectStatus(ctx, project.ID, store.StatusAnalyzing); err != nil {
			return fmt.Errorf("failed to start analysis; %w", err)
		}
		return nil
	case store.StatusQueued:
		if delivery <= 1 {
			return apperr.Newf(apperr.CodeProjectAlreadyAnalyzing, "project %s is already queued", project.ID)
		}
		if err := r.deps.Store.UpdateProjectStatus(ctx, project.ID, store.StatusAnalyzing); err != nil {
			return fmt.Errorf("failed to start analysis; %w", err)
		}
		return nil
	case store.StatusAnalyzing:
		if delivery <= 1 {
			return apperr.Newf(apperr.CodeProjectAlreadyAnalyzing, "project %s is already analyzing", project.ID)
		}
		// Redelivery after a crash mid-run; keep the status and resume.
		return nil
	default:
		return fmt.Errorf("project %s is not ready for analysis (status %s)", project.ID, project.Status)
	}
}

// analyze runs the pipeline for one claimed job. The caller settles
// project state on error.
func (r *Runner) analyze(ctx context.Context, cmd bus.StartAnalysisCommand, start time.Time, log *slog.Logger) error {
	projectID := cmd.ProjectID

	if err := os.MkdirAll(r.cfg.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch root; %w", err)
	}
	scratch, err := os.MkdirTemp(r.cfg.ScratchDir, projectID+"-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory; %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn("failed to remove scratch directory", "path", scratch, "error", err)
		}
	}()

	tree, err := r.fetchTree(ctx, projectID, scratch)
	if err != nil {
		return err
	}
	r.deps.Watchdog.Heartbeat(projectID)

	r.deps.Watchdog.UpdatePhase(projectID, string(progress.PhaseRouting))
	r.publish(progress.Update{ProjectID: projectID, Phase: progress.PhaseRouting, Percent: 10})
	plans, err := r.router.Walk(tree)
	if err != nil {
		return fmt.Errorf("failed to route files; %w", err)
	}

	records, totalLOC, processed, err := buildRecords(ctx, projectID, plans)
	if err != nil {
		return err
	}
	if processed == 0 {
		return apperr.Newf(apperr.CodeProjectNoFiles, "project %s has no analyzable files", projectID)
	}
	if err := r.deps.Store.ReplaceFileRecords(ctx, projectID, records); err != nil {
		return fmt.Errorf("failed to persist file records; %w", err)
	}
	if err := r.deps.Store.UpdateProjectCounts(ctx, projectID, processed, totalLOC); err != nil {
		return fmt.Errorf("failed to update project counts; %w", err)
	}

	estimate := router.Estimate(plans, r.cfg.Preflight)
	if estimate.RequiresApproval && !cmd.Approved {
		log.Warn("preflight requires approval",
			"estimated_tokens", estimate.EstimatedTokens,
			"estimated_cost", estimate.EstimatedCost)
		return ErrApprovalRequired
	}

	chunks, err := r.chunkFiles(ctx, projectID, plans, processed)
	if err != nil {
		return err
	}
	if err := r.indexChunks(ctx, projectID, chunks); err != nil {
		return err
	}

	responses, err := r.runAgents(ctx, projectID, tree)
	if err != nil {
		return err
	}

	r.deps.Watchdog.UpdatePhase(projectID, string(progress.PhaseReporting))
	r.publish(progress.Update{ProjectID: projectID, Phase: progress.PhaseReporting, Percent: 95})
	rep, err := r.deps.Aggregator.Aggregate(ctx, projectID, responses, time.Since(start))
	if err != nil {
		return apperr.Wrap(apperr.CodeReportGenerationFailed, "failed to aggregate report", err)
	}
	if err := r.deps.Store.SaveReport(ctx, rep); err != nil {
		return fmt.Errorf("failed to persist report; %w", err)
	}

	if err := r.deps.Store.UpdateProjectStatus(ctx, projectID, store.StatusCompleted); err != nil {
		return fmt.Errorf("failed to complete project; %w", err)
	}
	if err := r.deps.Store.DeleteCheckpoints(ctx, projectID); err != nil {
		log.Warn("failed to clear checkpoints", "error", err)
	}

	if err := r.deps.Producer.PublishCompleted(ctx, bus.AnalysisCompletedEvent{
		ProjectID:     projectID,
		ReportID:      rep.ID,
		Success:       true,
		DurationMS:    time.Since(start).Milliseconds(),
		CorrelationID: cmd.CorrelationID,
		CompletedAt:   time.Now().UTC(),
	}); err != nil {
		log.Warn("failed to publish completed event", "error", err)
	}
	r.publish(progress.Update{
		ProjectID: projectID,
		Phase:     progress.PhaseCompleted,
		Percent:   100,
		Message:   fmt.Sprintf("health score %d, %d findings", rep.HealthScore, len(rep.Findings)),
	})
	return nil
}

// fetchTree downloads the project archive into the scratch directory and
// extracts it. Returns the extraction root.
func (r *Runner) fetchTree(ctx context.Context, projectID, scratch string) (string, error) {
	r.deps.Watchdog.UpdatePhase(projectID, string(progress.PhaseExtracting))
	r.publish(progress.Update{ProjectID: projectID, Phase: progress.PhaseExtracting, Percent: 5, Message: "downloading archive"})

	archivePath := filepath.Join(scratch, "source.zip")
	if err := r.deps.Blob.DownloadToFile(ctx, blob.ObjectKey(projectID), archivePath); err != nil {
		return "", fmt.Errorf("failed to download archive; %w", err)
	}

	tree := filepath.Join(scratch, "tree")
	count, err := extractArchive(ctx, archivePath, tree, r.cfg.MaxExtractBytes)
	if err != nil {
		return "", fmt.Errorf("failed to extract archive; %w", err)
	}
	r.publish(progress.Update{
		ProjectID:  projectID,
		Phase:      progress.PhaseExtracting,
		Percent:    8,
		TotalFiles: count,
		Message:    fmt.Sprintf("extracted %d files", count),
	})
	return tree, nil
}

// chunkFiles runs the semantic chunker over every rag-routed file in
// walk order. Chunk rows are persisted before embedding so identity
// survives a retried job.
func (r *Runner) chunkFiles(ctx context.Context, projectID string, plans []router.FilePlan, totalFiles int) ([]chunker.Chunk, error) {
	r.deps.Watchdog.UpdatePhase(projectID, string(progress.PhaseChunking))

	var chunks []chunker.Chunk
	done := 0
	for _, plan := range plans {
		if plan.Decision != router.DecisionRagChunks {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := os.ReadFile(plan.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s; %w", plan.RelPath, err)
		}
		fileChunks, err := r.deps.Chunker.ChunkFile(ctx, projectID, plan.RelPath, string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to chunk %s; %w", plan.RelPath, err)
		}
		chunks = append(chunks, fileChunks...)

		done++
		r.deps.Watchdog.Heartbeat(projectID)
		r.publish(progress.Update{
			ProjectID:      projectID,
			Phase:          progress.PhaseChunking,
			Percent:        10 + 20*float64(done)/float64(totalFiles),
			CurrentFile:    plan.RelPath,
			FilesProcessed: done,
			TotalFiles:     totalFiles,
		})
	}

	if len(chunks) > 0 {
		if err := r.deps.Store.SaveChunks(ctx, chunks); err != nil {
			return nil, fmt.Errorf("failed to persist chunks; %w", err)
		}
	}
	return chunks, nil
}

// indexChunks embeds and indexes chunks in batches, checkpointing after
// each batch. A redelivered job resumes from the last checkpoint: chunk
// identity is deterministic, so the skipped prefix is already indexed.
func (r *Runner) indexChunks(ctx context.Context, projectID string, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	offset := 0
	if resume, ok, err := r.deps.Store.GetCheckpoint(ctx, projectID, checkpointPhaseIndexing); err != nil {
		return fmt.Errorf("failed to load checkpoint; %w", err)
	} else if ok && resume > 0 && resume <= len(chunks) {
		offset = resume
		r.logger.Info("resuming indexing from checkpoint", "project_id", projectID, "offset", offset, "total", len(chunks))
	}

	r.deps.Watchdog.UpdatePhase(projectID, string(progress.PhaseEmbedding))
	total := len(chunks)
	for start := offset; start < total; start += r.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+r.cfg.BatchSize, total)
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		vectors, err := r.deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch at %d; %w", start, err)
		}
		if err := r.deps.Vectors.IndexBatch(ctx, batch, vectors); err != nil {
			return fmt.Errorf("failed to index batch at %d; %w", start, err)
		}
		if err := r.deps.Store.SaveCheckpoint(ctx, projectID, checkpointPhaseIndexing, end); err != nil {
			return fmt.Errorf("failed to save checkpoint; %w", err)
		}

		r.deps.Watchdog.Heartbeat(projectID)
		r.deps.Watchdog.UpdateOffset(projectID, end)
		r.publish(progress.Update{
			ProjectID:      projectID,
			Phase:          progress.PhaseIndexing,
			Percent:        30 + 40*float64(end)/float64(total),
			FilesProcessed: end,
			TotalFiles:     total,
			Message:        "indexing chunks",
		})
	}
	return nil
}

// runAgents orchestrates the agent set over the extracted tree. The
// orchestrator is built per job so its per-agent hook can heartbeat this
// project.
func (r *Runner) runAgents(ctx context.Context, projectID, tree string) ([]review.AgentResponse, error) {
	orch := orchestrator.New(r.deps.Agents,
		orchestrator.WithLogger(r.logger),
		orchestrator.WithOnAgent(func(name string, index, total int) {
			r.deps.Watchdog.Heartbeat(projectID)
			r.publish(progress.Update{
				ProjectID: projectID,
				Phase:     progress.PhaseAnalyzing,
				Percent:   70 + 25*float64(index)/float64(total),
				Message:   "running " + name,
			})
		}))

	r.deps.Watchdog.UpdatePhase(projectID, string(progress.PhaseAnalyzing))
	responses, err := orch.Run(ctx, projectID, tree)
	if err != nil {
		return nil, fmt.Errorf("agent run failed; %w", err)
	}
	return responses, nil
}

// buildRecords reads every routed file once to compute the persisted
// per-file facts: content hash, language, lines of code, and complexity.
// Skipped files keep their routing decision and reason but are not read.
func buildRecords(ctx context.Context, projectID string, plans []router.FilePlan) ([]store.FileRecord, int, int, error) {
	records := make([]store.FileRecord, 0, len(plans))
	totalLOC := 0
	processed := 0

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}
		rec := store.FileRecord{
			ProjectID: projectID,
			RelPath:   plan.RelPath,
			Extension: plan.Ext,
			Size:      plan.Size,
		}
		if !plan.Processed() {
			rec.Decision = store.DecisionSkip
			rec.SkipReason = string(plan.SkipReason)
			records = append(records, rec)
			continue
		}

		content, err := os.ReadFile(plan.AbsPath)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read %s; %w", plan.RelPath, err)
		}
		summary := staticanalysis.Analyze(plan.RelPath, string(content))

		rec.Decision = store.DecisionAnalyze
		sum := sha256.Sum256(content)
		rec.ContentHash = hex.EncodeToString(sum[:])
		rec.Language = summary.Language
		rec.LOC = summary.LOC
		rec.Complexity = summary.Complexity
		records = append(records, rec)

		totalLOC += summary.LOC
		processed++
	}
	return records, totalLOC, processed, nil
}

// failProject settles a non-transient failure: project to failed with
// the cause message, AnalysisFailedEvent on the bus, terminal progress
// update. Best-effort; errors are logged, not returned, because the
// message is settled either way.
func (r *Runner) failProject(ctx context.Context, cmd bus.StartAnalysisCommand, cause error, delivery int, log *slog.Logger) {
	msg := cause.Error()
	switch {
	case errors.Is(cause, ErrApprovalRequired):
		msg = ErrApprovalRequired.Error()
	case apperr.HasCode(cause, apperr.CodeWatchdogStuck):
		msg = "cancelled"
	}
	exceptionType := ""
	if code, ok := apperr.CodeOf(cause); ok {
		exceptionType = string(code)
	}

	if err := r.forceFail(ctx, cmd.ProjectID, msg); err != nil {
		log.Error("failed to mark project failed", "error", err)
	}
	if err := r.deps.Producer.PublishFailed(ctx, bus.AnalysisFailedEvent{
		ProjectID:     cmd.ProjectID,
		ErrorMessage:  msg,
		ExceptionType: exceptionType,
		RetryCount:    delivery - 1,
		FailedAt:      time.Now().UTC(),
		CorrelationID: cmd.CorrelationID,
	}); err != nil {
		log.Warn("failed to publish failed event", "error", err)
	}
	r.publish(progress.Update{ProjectID: cmd.ProjectID, Phase: progress.PhaseFailed, Percent: 100, Message: msg})
}

// forceFail walks the project to failed along legal transitions. A
// crashed job can leave the project in queued, which cannot fail
// directly; it is moved through analyzing first.
func (r *Runner) forceFail(ctx context.Context, projectID, msg string) error {
	project, err := r.deps.Store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status == store.StatusQueued || project.Status == store.StatusFilesReady {
		if project.Status == store.StatusFilesReady {
			if err := r.deps.Store.UpdateProjectStatus(ctx, projectID, store.StatusQueued); err != nil {
				return err
			}
		}
		if err := r.deps.Store.UpdateProjectStatus(ctx, projectID, store.StatusAnalyzing); err != nil {
			return err
		}
	}
	return r.deps.Store.MarkProjectFailed(ctx, projectID, msg)
}

// revertForRetry returns an interrupted project to files_ready so the
// redelivered attempt can claim it again. Checkpoints are kept; the next
// attempt resumes indexing where this one stopped.
func (r *Runner) revertForRetry(ctx context.Context, projectID string, log *slog.Logger) {
	project, err := r.deps.Store.GetProject(ctx, projectID)
	if err != nil {
		log.Warn("failed to load project for retry revert", "error", err)
		return
	}
	if project.Status != store.StatusAnalyzing && project.Status != store.StatusQueued {
		return
	}
	if err := r.deps.Store.UpdateProjectStatus(ctx, projectID, store.StatusFilesReady); err != nil {
		log.Warn("failed to revert project for retry", "error", err)
	}
}

// FailFromDeadLetter settles a project whose command exhausted its
// delivery budget. Wired as the consumer's dead-letter callback.
func (r *Runner) FailFromDeadLetter(ctx context.Context, cmd bus.StartAnalysisCommand, deliveries int) {
	log := r.logger.With("project_id", cmd.ProjectID, "correlation_id", cmd.CorrelationID)

	const msg = "transient_exhausted"
	if err := r.forceFail(ctx, cmd.ProjectID, msg); err != nil {
		log.Error("failed to fail dead-lettered project", "error", err)
	}
	if err := r.deps.Producer.PublishFailed(ctx, bus.AnalysisFailedEvent{
		ProjectID:     cmd.ProjectID,
		ErrorMessage:  msg,
		RetryCount:    deliveries - 1,
		FailedAt:      time.Now().UTC(),
		CorrelationID: cmd.CorrelationID,
	}); err != nil {
		log.Warn("failed to publish failed event", "error", err)
	}
	r.publish(progress.Update{ProjectID: cmd.ProjectID, Phase: progress.PhaseFailed, Percent: 100, Message: msg})
}

// retryable reports whether the bus should redeliver after this error.
// Approval refusals and other business errors settle immediately.
func retryable(err error) bool {
	if errors.Is(err, ErrApprovalRequired) {
		return false
	}
	if apperr.HasCode(err, apperr.CodeEmbeddingRateLimited) {
		return true
	}
	if code, ok := apperr.CodeOf(err); ok && code != "" {
		return false
	}
	return resilience.IsTransient(err)
}

func (r *Runner) publish(u progress.Update) {
	r.deps.Progress.Publish(u)
}
