package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/archlens/archlens/internal/blob"
	"github.com/archlens/archlens/internal/router"
)

// Reset clears every derived artifact for a project and returns it to
// files_ready, so it can be analyzed again from the stored archive.
// Vectors are removed first; the chunk rows and checkpoints go with the
// status change in one transaction.
func (r *Runner) Reset(ctx context.Context, projectID string) error {
	if _, err := r.deps.Store.GetProject(ctx, projectID); err != nil {
		return err
	}
	if err := r.deps.Vectors.DeleteByProject(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete vectors; %w", err)
	}
	if err := r.deps.Store.ResetProject(ctx, projectID); err != nil {
		return err
	}
	r.logger.Info("project reset", "project_id", projectID)
	return nil
}

// Delete removes a project entirely: vectors, blob objects, and all
// relational rows. The relational part is one transaction; vector and
// blob deletion happen first so a failure there aborts before any row
// is lost.
func (r *Runner) Delete(ctx context.Context, projectID string) error {
	if _, err := r.deps.Store.GetProject(ctx, projectID); err != nil {
		return err
	}
	if err := r.deps.Vectors.DeleteByProject(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete vectors; %w", err)
	}
	if err := r.deps.Blob.DeleteByPrefix(ctx, blob.ProjectPrefix(projectID)); err != nil {
		return fmt.Errorf("failed to delete blobs; %w", err)
	}
	if err := r.deps.Store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	r.logger.Info("project deleted", "project_id", projectID)
	return nil
}

// Preflight resolves the stored archive and routes its files without
// analyzing anything, returning the cost and approval estimate a client
// reviews before triggering analysis.
func (r *Runner) Preflight(ctx context.Context, projectID string) (*router.Preflight, error) {
	if _, err := r.deps.Store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.cfg.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch root; %w", err)
	}
	scratch, err := os.MkdirTemp(r.cfg.ScratchDir, projectID+"-preflight-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory; %w", err)
	}
	defer os.RemoveAll(scratch)

	archivePath := filepath.Join(scratch, "source.zip")
	if err := r.deps.Blob.DownloadToFile(ctx, blob.ObjectKey(projectID), archivePath); err != nil {
		return nil, fmt.Errorf("failed to download archive; %w", err)
	}
	tree := filepath.Join(scratch, "tree")
	if _, err := extractArchive(ctx, archivePath, tree, r.cfg.MaxExtractBytes); err != nil {
		return nil, fmt.Errorf("failed to extract archive; %w", err)
	}

	plans, err := r.router.Walk(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to route files; %w", err)
	}
	estimate := router.Estimate(plans, r.cfg.Preflight)
	return &estimate, nil
}

// EstimateDir routes a local directory tree and returns its preflight
// estimate without touching any stored project. Used by the CLI against
// an unsubmitted working copy.
func EstimateDir(dir string, routerCfg router.Config, preflightCfg router.PreflightConfig) (*router.Preflight, error) {
	plans, err := router.New(routerCfg).Walk(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to route files; %w", err)
	}
	estimate := router.Estimate(plans, preflightCfg)
	return &estimate, nil
}
