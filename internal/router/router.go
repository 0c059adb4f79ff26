// Package router classifies project files into analysis routes and produces
// the preflight estimate shown before a job is approved.
package router

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/archlens/archlens/internal/metrics"
)

// Config holds the routing thresholds.
type Config struct {
	// DirectSendThresholdBytes routes files strictly below it to DirectSend.
	DirectSendThresholdBytes int64

	// RagChunkThresholdBytes routes files at or below it to RagChunks.
	RagChunkThresholdBytes int64

	// AllowLargeFiles routes files above RagChunkThresholdBytes to
	// RagChunks instead of skipping them.
	AllowLargeFiles bool

	// RiskThreshold marks files with risk score at or above it high risk.
	RiskThreshold float64
}

// RiskScorer assigns a risk score in [0, 1] to a file. Implementations are
// external; a nil scorer leaves every file unscored.
type RiskScorer interface {
	Score(relPath string) float64
}

// Router decides the analysis route for each file in an extracted tree.
type Router struct {
	cfg    Config
	scorer RiskScorer
}

// Option configures the Router.
type Option func(*Router)

// WithRiskScorer attaches an external risk scorer.
func WithRiskScorer(s RiskScorer) Option {
	return func(r *Router) {
		r.scorer = s
	}
}

// New creates a Router with the given thresholds.
func New(cfg Config, opts ...Option) *Router {
	r := &Router{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decide classifies a single file. relPath must be slash-separated and
// relative to the project root. The rules are evaluated strictly in order;
// the first match wins.
func (r *Router) Decide(relPath string, size int64) (Decision, SkipReason) {
	name := filepath.Base(relPath)
	ext := normalizeExt(relPath)

	if hasExcludedSegment(relPath) {
		return DecisionSkipped, SkipExcludedPath
	}
	if isBinaryExt(ext) {
		return DecisionSkipped, SkipBinary
	}
	if !isSourceExt(ext) && !isConfigFile(name, ext) {
		return DecisionSkipped, SkipExcludedPath
	}
	if size < r.cfg.DirectSendThresholdBytes {
		return DecisionDirectSend, SkipNone
	}
	if size <= r.cfg.RagChunkThresholdBytes {
		return DecisionRagChunks, SkipNone
	}
	if r.cfg.AllowLargeFiles {
		return DecisionRagChunks, SkipNone
	}
	return DecisionSkipped, SkipTooLarge
}

// Walk routes every regular file under root, returning plans ordered by
// relative path. Excluded directories are pruned without descending.
func (r *Router) Walk(root string) ([]FilePlan, error) {
	var plans []FilePlan

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && isExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s; %w", path, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativizing %s; %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		plan := FilePlan{
			RelPath: rel,
			AbsPath: path,
			Ext:     normalizeExt(rel),
			Size:    info.Size(),
		}
		plan.Decision, plan.SkipReason = r.Decide(rel, info.Size())

		if r.scorer != nil && plan.Processed() {
			plan.RiskScore = r.scorer.Score(rel)
			plan.IsHighRisk = plan.RiskScore >= r.cfg.RiskThreshold
		}

		metrics.FilesRoutedTotal.WithLabelValues(string(plan.Decision)).Inc()
		plans = append(plans, plan)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s; %w", root, err)
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].RelPath < plans[j].RelPath })
	return plans, nil
}
