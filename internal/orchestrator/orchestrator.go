// Package orchestrator runs the analysis agents over an extracted
// project tree. Agents run serially; a failed agent degrades to a
// synthetic finding instead of failing the run, so a partially broken
// provider still yields a report.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/archlens/archlens/internal/agents"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/metrics"
	"github.com/archlens/archlens/internal/review"
)

// Orchestrator coordinates the agent set for one analysis run.
type Orchestrator struct {
	agents  []agents.Agent
	logger  *slog.Logger
	onAgent func(name string, index, total int)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOnAgent installs a hook invoked before each agent starts. The job
// runner uses it for heartbeats and progress updates.
func WithOnAgent(fn func(name string, index, total int)) Option {
	return func(o *Orchestrator) {
		o.onAgent = fn
	}
}

// New creates an orchestrator over the given agent set.
func New(agentSet []agents.Agent, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agents: agentSet,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DefaultAgents builds the standard agent set: structure, code quality,
// security, and architecture advisor. The provider may be nil; agents
// then run their local phases only. A non-nil retriever feeds
// similarity-matched chunks into the model-assisted phases.
func DefaultAgents(provider llm.ChatProvider, retriever agents.Retriever, analysisCfg config.AnalysisConfig, llmCfg config.LLMConfig, logger *slog.Logger) []agents.Agent {
	qualityCfg := agents.DefaultCodeQualityConfig()
	if llmCfg.MaxParallelCalls > 0 {
		qualityCfg.MaxParallelCalls = llmCfg.MaxParallelCalls
	}
	if analysisCfg.DeepDiveComplexityThreshold > 0 {
		qualityCfg.DeepDiveComplexityThreshold = analysisCfg.DeepDiveComplexityThreshold
	}
	if analysisCfg.DeepDiveLineCountThreshold > 0 {
		qualityCfg.DeepDiveLineCountThreshold = analysisCfg.DeepDiveLineCountThreshold
	}

	return []agents.Agent{
		agents.NewStructureAgent(logger),
		agents.NewCodeQualityAgent(provider, qualityCfg, logger,
			agents.WithCodeQualityRetriever(retriever)),
		agents.NewSecurityAgent(provider, logger,
			agents.WithSecurityRetriever(retriever)),
		agents.NewArchitectureAdvisorAgent(provider, logger),
	}
}

// Run executes every agent against the project tree. The returned
// responses cover all agents that ran, including failed ones. The error
// is non-nil only when the context ended before all agents finished.
func (o *Orchestrator) Run(ctx context.Context, projectID, workingDir string) ([]review.AgentResponse, error) {
	responses := make([]review.AgentResponse, 0, len(o.agents))

	for i, agent := range o.agents {
		if err := ctx.Err(); err != nil {
			return responses, fmt.Errorf("agent run interrupted before %s; %w", agent.Name(), err)
		}
		if o.onAgent != nil {
			o.onAgent(agent.Name(), i, len(o.agents))
		}

		start := time.Now()
		findings, err := agent.Analyze(ctx, projectID, workingDir)
		elapsed := time.Since(start)
		metrics.AgentDuration.WithLabelValues(agent.Name()).Observe(elapsed.Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return responses, fmt.Errorf("agent %s interrupted; %w", agent.Name(), ctx.Err())
			}
			o.logger.Error("agent failed",
				"agent", agent.Name(),
				"project_id", projectID,
				"duration", elapsed,
				"error", err)
			responses = append(responses, failedResponse(agent.Name(), err))
			continue
		}

		metrics.FindingsTotal.WithLabelValues("emitted").Add(float64(len(findings)))
		o.logger.Info("agent finished",
			"agent", agent.Name(),
			"project_id", projectID,
			"findings", len(findings),
			"duration", elapsed)

		responses = append(responses, review.AgentResponse{
			AgentName:       agent.Name(),
			Findings:        findings,
			Recommendations: recommendationsFrom(findings),
			Summary:         summarize(findings),
		})
	}
	return responses, nil
}

// failedResponse wraps an agent error into a degraded response carrying
// one synthetic finding, so the failure is visible in the report.
func failedResponse(name string, err error) review.AgentResponse {
	return review.AgentResponse{
		AgentName: name,
		Failed:    true,
		Err:       err,
		Summary:   fmt.Sprintf("agent failed: %v", err),
		Findings: []review.Finding{{
			Category:    string(review.CategoryOther),
			Severity:    string(review.SeverityInfo),
			Description: fmt.Sprintf("Agent %s did not complete: %v", name, err),
			Explanation: "Results from this perspective are missing from the report.",
			Confidence:  1.0,
		}},
	}
}

// summarize renders a one-line severity breakdown for an agent response.
func summarize(findings []review.Finding) string {
	if len(findings) == 0 {
		return "no findings"
	}

	counts := make(map[review.Severity]int)
	for i := range findings {
		counts[findings[i].NormalizedSeverity()]++
	}

	order := []review.Severity{
		review.SeverityCritical,
		review.SeverityHigh,
		review.SeverityMedium,
		review.SeverityLow,
		review.SeverityInfo,
	}
	parts := make([]string, 0, len(counts))
	for _, sev := range order {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}

	out := fmt.Sprintf("%d findings (", len(findings))
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out + ")"
}

// recommendationsFrom collects the unique non-empty suggested fixes, in
// first-seen order capped at ten entries.
func recommendationsFrom(findings []review.Finding) []string {
	seen := make(map[string]bool)
	var recs []string
	for i := range findings {
		fix := findings[i].SuggestedFix
		if fix == "" || seen[fix] {
			continue
		}
		seen[fix] = true
		recs = append(recs, fix)
		if len(recs) == 10 {
			break
		}
	}
	return recs
}

// AgentNames lists the configured agents in execution order.
func (o *Orchestrator) AgentNames() []string {
	names := make([]string, len(o.agents))
	for i, a := range o.agents {
		names[i] = a.Name()
	}
	return names
}
