package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/archlens/archlens/internal/cluster"
	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/review"
	"github.com/archlens/archlens/internal/staticanalysis"
)

// Rule thresholds for the local phase. Aligned with the cluster risk
// model so a file flagged High here also raises its cluster's risk.
const (
	ruleHighComplexity   = 15
	ruleMediumComplexity = 8
	ruleLongFileLOC      = 800
	ruleManyMethods      = 25
)

// CodeQualityConfig holds the thresholds and budgets for the code
// quality agent's model-assisted phases.
type CodeQualityConfig struct {
	// MaxParallelCalls bounds concurrent cluster analysis calls.
	MaxParallelCalls int

	// ClusterMaxFiles caps the size of one analysis cluster.
	ClusterMaxFiles int

	// SimilarityThreshold gates centroid-based cluster merging.
	SimilarityThreshold float64

	// DeepDiveComplexityThreshold selects files for the deep-dive phase.
	DeepDiveComplexityThreshold int

	// DeepDiveLineCountThreshold selects files for the deep-dive phase.
	DeepDiveLineCountThreshold int

	// DeepDiveTimeout bounds one deep-dive completion call.
	DeepDiveTimeout time.Duration

	// DeepDiveMaxFiles caps how many files get a deep dive.
	DeepDiveMaxFiles int
}

// DefaultCodeQualityConfig returns the default agent configuration.
func DefaultCodeQualityConfig() CodeQualityConfig {
	return CodeQualityConfig{
		MaxParallelCalls:            4,
		ClusterMaxFiles:             10,
		SimilarityThreshold:         0.85,
		DeepDiveComplexityThreshold: 20,
		DeepDiveLineCountThreshold:  500,
		DeepDiveTimeout:             3 * time.Minute,
		DeepDiveMaxFiles:            5,
	}
}

// CodeQualityAgent combines local metric rules with model-assisted
// cluster review and per-file deep dives.
type CodeQualityAgent struct {
	provider  llm.ChatProvider
	retriever Retriever
	cfg       CodeQualityConfig
	logger    *slog.Logger
}

// CodeQualityOption configures the code quality agent.
type CodeQualityOption func(*CodeQualityAgent)

// WithCodeQualityRetriever adds similarity-retrieved context to the
// cluster analysis prompts.
func WithCodeQualityRetriever(r Retriever) CodeQualityOption {
	return func(a *CodeQualityAgent) {
		a.retriever = r
	}
}

// NewCodeQualityAgent creates a code quality agent. A nil or
// unavailable provider limits the agent to its rule-based phase.
func NewCodeQualityAgent(provider llm.ChatProvider, cfg CodeQualityConfig, logger *slog.Logger, opts ...CodeQualityOption) *CodeQualityAgent {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxParallelCalls <= 0 {
		cfg.MaxParallelCalls = 4
	}
	if cfg.DeepDiveTimeout <= 0 {
		cfg.DeepDiveTimeout = 3 * time.Minute
	}
	if cfg.DeepDiveMaxFiles <= 0 {
		cfg.DeepDiveMaxFiles = 5
	}
	a := &CodeQualityAgent{provider: provider, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent's stable identifier used in reports.
func (a *CodeQualityAgent) Name() string {
	return "code_quality"
}

// Analyze inspects the tree rooted at workingDir.
func (a *CodeQualityAgent) Analyze(ctx context.Context, projectID, workingDir string) ([]review.Finding, error) {
	files, err := walkFiles(workingDir)
	if err != nil {
		return nil, fmt.Errorf("code quality agent walk failed; %w", err)
	}

	summaries := a.summarize(files)
	findings := ruleFindings(summaries)

	if a.provider == nil || !a.provider.Available() {
		a.logger.Debug("code quality agent running without a chat provider",
			"project_id", projectID,
			"rule_findings", len(findings))
		return findings, nil
	}

	clusterFindings, err := a.analyzeClusters(ctx, projectID, workingDir, summaries)
	if err != nil {
		return findings, fmt.Errorf("cluster analysis failed; %w", err)
	}
	findings = append(findings, clusterFindings...)

	findings = append(findings, a.deepDive(ctx, files, summaries)...)

	a.logger.Debug("code quality agent finished",
		"project_id", projectID,
		"files", len(summaries),
		"findings", len(findings))
	return findings, nil
}

// summarize runs the local static analyzer over every source file small
// enough to scan.
func (a *CodeQualityAgent) summarize(files []projectFile) []staticanalysis.FileSummary {
	var summaries []staticanalysis.FileSummary
	for _, f := range files {
		if !f.IsSource {
			continue
		}
		content, ok := readCapped(f.AbsPath, maxScanBytes)
		if !ok {
			continue
		}
		summaries = append(summaries, staticanalysis.Analyze(f.RelPath, content))
	}
	return summaries
}

// ruleFindings converts metric outliers into findings without any model
// involvement.
func ruleFindings(summaries []staticanalysis.FileSummary) []review.Finding {
	var findings []review.Finding
	for _, s := range summaries {
		switch {
		case s.Complexity >= ruleHighComplexity:
			findings = append(findings, review.Finding{
				FilePath:    s.Path,
				Category:    string(review.CategoryComplexity),
				Severity:    string(review.SeverityHigh),
				Description: fmt.Sprintf("Very high cyclomatic complexity (%d branch points)", s.Complexity),
				Explanation: "Deep branching makes the file hard to test and reason about. Extract decision logic into smaller functions.",
				Confidence:  1.0,
			})
		case s.Complexity >= ruleMediumComplexity:
			findings = append(findings, review.Finding{
				FilePath:    s.Path,
				Category:    string(review.CategoryComplexity),
				Severity:    string(review.SeverityMedium),
				Description: fmt.Sprintf("Elevated cyclomatic complexity (%d branch points)", s.Complexity),
				Confidence:  1.0,
			})
		}

		if s.LOC >= ruleLongFileLOC {
			findings = append(findings, review.Finding{
				FilePath:    s.Path,
				Category:    string(review.CategoryMaintainability),
				Severity:    string(review.SeverityMedium),
				Description: fmt.Sprintf("Long file: %d lines of code", s.LOC),
				Explanation: "Files this size usually bundle several responsibilities. Consider splitting along the types it defines.",
				Confidence:  1.0,
			})
		}
		if s.MethodCount >= ruleManyMethods {
			findings = append(findings, review.Finding{
				FilePath:    s.Path,
				Category:    string(review.CategoryMaintainability),
				Severity:    string(review.SeverityMedium),
				Description: fmt.Sprintf("File declares %d methods", s.MethodCount),
				Confidence:  1.0,
			})
		}
	}
	return findings
}

// analyzeClusters runs one completion per cluster with bounded
// parallelism. A failed cluster is logged and skipped; the phase only
// fails when the context is canceled.
func (a *CodeQualityAgent) analyzeClusters(ctx context.Context, projectID, workingDir string, summaries []staticanalysis.FileSummary) ([]review.Finding, error) {
	clusters := cluster.Build(summaries, a.cfg.ClusterMaxFiles, a.cfg.SimilarityThreshold)
	if len(clusters) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		findings []review.Finding
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxParallelCalls)

	for _, cl := range clusters {
		g.Go(func() error {
			prompt := clusterPrompt(cl)
			if extra := retrievedContext(gctx, a.retriever, a.logger, projectID, workingDir, clusterQuery(cl)); extra != "" {
				prompt += "\n" + extra
			}
			raw, err := a.provider.Complete(gctx, prompt, "code-quality-cluster")
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.logger.Warn("cluster analysis call failed",
					"cluster", cl.Name,
					"error", err)
				return nil
			}

			parsed, err := ParseFindings(raw)
			if err != nil {
				a.logger.Warn("cluster response did not parse",
					"cluster", cl.Name,
					"error", err)
				return nil
			}

			mu.Lock()
			findings = append(findings, parsed...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return findings, nil
}

// deepDive reviews the highest-complexity files one by one. A timed-out
// dive degrades to a manual-review finding rather than failing the
// agent.
func (a *CodeQualityAgent) deepDive(ctx context.Context, files []projectFile, summaries []staticanalysis.FileSummary) []review.Finding {
	candidates := cluster.DetectHighPriorityFiles(summaries,
		a.cfg.DeepDiveComplexityThreshold, a.cfg.DeepDiveLineCountThreshold)
	if len(candidates) > a.cfg.DeepDiveMaxFiles {
		candidates = candidates[:a.cfg.DeepDiveMaxFiles]
	}

	byRel := make(map[string]projectFile, len(files))
	for _, f := range files {
		byRel[f.RelPath] = f
	}

	var findings []review.Finding
	for _, summary := range candidates {
		if ctx.Err() != nil {
			break
		}
		file, ok := byRel[summary.Path]
		if !ok {
			continue
		}
		content, ok := readCapped(file.AbsPath, maxScanBytes)
		if !ok {
			continue
		}

		diveCtx, cancel := context.WithTimeout(ctx, a.cfg.DeepDiveTimeout)
		raw, err := a.provider.Complete(diveCtx, deepDivePrompt(summary, content), "code-quality-deep-dive")
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				findings = append(findings, review.Finding{
					FilePath:    summary.Path,
					Category:    string(review.CategoryComplexity),
					Severity:    string(review.SeverityMedium),
					Description: fmt.Sprintf("Deep analysis timed out after %s; manual review recommended", a.cfg.DeepDiveTimeout),
					Explanation: fmt.Sprintf("The file has %d branch points across %d lines, too much for the automated review budget.", summary.Complexity, summary.LOC),
					Confidence:  1.0,
				})
				continue
			}
			a.logger.Warn("deep dive call failed",
				"file", summary.Path,
				"error", err)
			continue
		}

		parsed, err := ParseFindings(raw)
		if err != nil {
			a.logger.Warn("deep dive response did not parse",
				"file", summary.Path,
				"error", err)
			continue
		}
		for i := range parsed {
			if parsed[i].FilePath == "" {
				parsed[i].FilePath = summary.Path
			}
		}
		findings = append(findings, parsed...)
	}
	return findings
}

// clusterPrompt renders the batched prompt for one cluster: aggregate
// statistics plus the top files by complexity and size.
func clusterPrompt(cl cluster.AnalysisCluster) string {
	top := make([]staticanalysis.FileSummary, len(cl.Files))
	copy(top, cl.Files)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Complexity != top[j].Complexity {
			return top[i].Complexity > top[j].Complexity
		}
		return top[i].LOC > top[j].LOC
	})
	if len(top) > 5 {
		top = top[:5]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are reviewing the module %q of a codebase for code quality issues.\n", cl.Name)
	fmt.Fprintf(&sb, "Module statistics: %d files, %d lines of code, max complexity %d, %d methods, risk level %s.\n",
		len(cl.Files), cl.TotalLOC, cl.MaxComplexity, cl.TotalMethods, cl.RiskLevel)
	if len(cl.Languages) > 0 {
		fmt.Fprintf(&sb, "Languages: %s.\n", strings.Join(cl.Languages, ", "))
	}
	sb.WriteString("\nMost significant files:\n")
	for _, f := range top {
		fmt.Fprintf(&sb, "- %s: %d LOC, complexity %d, %d types, %d methods\n",
			f.Path, f.LOC, f.Complexity, f.TypeCount, f.MethodCount)
	}
	sb.WriteString("\n")
	sb.WriteString(findingsSchemaPrompt)
	return sb.String()
}

// clusterQuery builds the retrieval query for a cluster: its name,
// languages, and the paths of its files.
func clusterQuery(cl cluster.AnalysisCluster) string {
	parts := append([]string{cl.Name}, cl.Languages...)
	for i, f := range cl.Files {
		if i == 5 {
			break
		}
		parts = append(parts, f.Path)
	}
	return strings.Join(parts, " ")
}

// deepDivePrompt renders the single-file review prompt.
func deepDivePrompt(summary staticanalysis.FileSummary, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Review this %s file for code quality issues. It has %d lines of code, cyclomatic complexity %d, %d types and %d methods.\n\n",
		summary.Language, summary.LOC, summary.Complexity, summary.TypeCount, summary.MethodCount)
	fmt.Fprintf(&sb, "File: %s\n\n", summary.Path)
	sb.WriteString("```\n")
	sb.WriteString(truncateForPrompt(content, 32*1024))
	sb.WriteString("\n```\n\n")
	sb.WriteString(findingsSchemaPrompt)
	return sb.String()
}
