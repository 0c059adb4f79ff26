// Package report turns raw agent responses into the persisted review
// report: findings are deduplicated by fingerprint, merged under fixed
// escalation rules, gated on evidence, and summarized with a bounded
// health score. Model calls refine text only; every structural decision
// is deterministic so two runs over the same findings agree.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/metrics"
	"github.com/archlens/archlens/internal/review"
)

// maxRecommendations bounds the recommendation list.
const maxRecommendations = 10

// maxSkippedInSummary bounds the "not reviewed" list in the summary.
const maxSkippedInSummary = 20

// Report is the final artifact of one analysis run. One report exists
// per project; re-analysis replaces it.
type Report struct {
	ID              string                  `json:"id"`
	ProjectID       string                  `json:"project_id"`
	Summary         string                  `json:"summary"`
	Recommendations []string                `json:"recommendations"`
	HealthScore     int                     `json:"health_score"`
	SeverityCounts  map[review.Severity]int `json:"severity_counts"`
	Duration        time.Duration           `json:"duration"`
	Version         string                  `json:"version"`
	GeneratedAt     time.Time               `json:"generated_at"`
	Findings        []review.Finding        `json:"findings"`
}

// Aggregator builds reports from agent responses.
type Aggregator struct {
	provider llm.ChatProvider
	logger   *slog.Logger
	version  string
	now      func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithVersion stamps reports with the service version.
func WithVersion(v string) Option {
	return func(a *Aggregator) {
		a.version = v
	}
}

// withClock overrides time for tests.
func withClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// New creates an aggregator. The provider may be nil; the aggregator
// then skips consolidation and narrative calls and composes the report
// deterministically.
func New(provider llm.ChatProvider, opts ...Option) *Aggregator {
	a := &Aggregator{
		provider: provider,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate merges the agent responses into one report.
func (a *Aggregator) Aggregate(ctx context.Context, projectID string, responses []review.AgentResponse, duration time.Duration) (*Report, error) {
	kept, skipped := dropEmptyDescriptions(responses)

	groups := groupByFingerprint(kept)

	findings := make([]review.Finding, 0, len(groups))
	dropped := 0
	for _, g := range groups {
		merged := mergeGroup(g)
		merged = a.consolidate(ctx, g, merged)

		if !passesEvidenceGate(merged) {
			dropped++
			continue
		}
		merged.ID = uuid.NewString()
		findings = append(findings, merged)
	}
	metrics.FindingsTotal.WithLabelValues("merged").Add(float64(len(findings)))
	metrics.FindingsTotal.WithLabelValues("dropped").Add(float64(dropped + len(skipped)))

	sortFindings(findings)

	counts := severityCounts(findings)
	score := HealthScore(counts)

	narrative, modelRecs := a.narrative(ctx, findings)
	recs := recommendations(modelRecs, responses)

	report := &Report{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		Summary:         composeSummary(narrative, score, counts, responses, skipped, duration),
		Recommendations: recs,
		HealthScore:     score,
		SeverityCounts:  counts,
		Duration:        duration,
		Version:         a.version,
		GeneratedAt:     a.now().UTC(),
		Findings:        findings,
	}

	a.logger.Info("report aggregated",
		"project_id", projectID,
		"findings", len(findings),
		"dropped", dropped+len(skipped),
		"health_score", score)
	return report, nil
}

// dropEmptyDescriptions removes findings that carry no description,
// recording one skip note per drop for the summary.
func dropEmptyDescriptions(responses []review.AgentResponse) ([]review.AgentResponse, []string) {
	kept := make([]review.AgentResponse, 0, len(responses))
	var skipped []string

	for _, resp := range responses {
		filtered := resp
		filtered.Findings = nil
		for i := range resp.Findings {
			f := resp.Findings[i]
			if f.Description == "" {
				where := f.FilePath
				if where == "" {
					where = f.Symbol
				}
				if where == "" {
					where = "unlocated finding"
				}
				skipped = append(skipped, fmt.Sprintf("%s: empty description (%s)", resp.AgentName, where))
				continue
			}
			filtered.Findings = append(filtered.Findings, f)
		}
		kept = append(kept, filtered)
	}
	return kept, skipped
}

// consolidate asks the model to rewrite a multi-member group into one
// coherent finding. Only the text fields are adopted; severity,
// confidence, and location stay with the deterministic merge. Any
// failure passes the merged finding through unchanged.
func (a *Aggregator) consolidate(ctx context.Context, g group, merged review.Finding) review.Finding {
	if a.provider == nil || !a.provider.Available() || len(g.members) < 2 {
		return merged
	}

	raw, err := json.MarshalIndent(g.members, "", "  ")
	if err != nil {
		return merged
	}

	prompt := fmt.Sprintf(`These %d findings describe the same issue (same file, symbol, and category). Rewrite them as one consolidated finding with a single clear description, a combined explanation, and the best suggested fix.

%s

Respond with only a JSON object with the fields "description", "explanation", and "suggested_fix".`, len(g.members), raw)

	resp, err := a.provider.Complete(ctx, prompt, "finding-consolidation")
	if err != nil {
		a.logger.Warn("finding consolidation failed",
			"fingerprint", g.key,
			"error", err)
		return merged
	}

	var c struct {
		Description  string `json:"description"`
		Explanation  string `json:"explanation"`
		SuggestedFix string `json:"suggested_fix"`
	}
	obj, ok := extractJSONObject(resp)
	if !ok {
		return merged
	}
	if err := json.Unmarshal([]byte(obj), &c); err != nil {
		return merged
	}

	if c.Description != "" {
		merged.Description = c.Description
	}
	if c.Explanation != "" {
		merged.Explanation = c.Explanation
	}
	if c.SuggestedFix != "" {
		merged.SuggestedFix = c.SuggestedFix
	}
	return merged
}

// severityCounts tallies normalized severities.
func severityCounts(findings []review.Finding) map[review.Severity]int {
	counts := make(map[review.Severity]int)
	for i := range findings {
		counts[findings[i].NormalizedSeverity()]++
	}
	return counts
}
