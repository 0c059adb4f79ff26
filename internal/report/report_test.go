package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/archlens/archlens/internal/review"
)

// labelProvider answers completion calls from a canned map keyed by the
// call label.
type labelProvider struct {
	responses map[string]string
	err       error
	calls     []string
}

func (p *labelProvider) Name() string    { return "label" }
func (p *labelProvider) Available() bool { return true }

func (p *labelProvider) Complete(ctx context.Context, prompt, label string) (string, error) {
	p.calls = append(p.calls, label)
	if p.err != nil {
		return "", p.err
	}
	resp, ok := p.responses[label]
	if !ok {
		return "", errors.New("no canned response for " + label)
	}
	return resp, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		counts map[review.Severity]int
		want   int
	}{
		{"clean", map[review.Severity]int{}, 100},
		{"one high", map[review.Severity]int{review.SeverityHigh: 1}, 90},
		{"high deduction capped", map[review.Severity]int{review.SeverityHigh: 8}, 50},
		{"critical counts as high", map[review.Severity]int{review.SeverityCritical: 2}, 80},
		{"mixed", map[review.Severity]int{review.SeverityHigh: 2, review.SeverityMedium: 3, review.SeverityLow: 5}, 66},
		{"floor at zero", map[review.Severity]int{review.SeverityHigh: 10, review.SeverityMedium: 20, review.SeverityLow: 30}, 0},
		{"info free", map[review.Severity]int{review.SeverityInfo: 40}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HealthScore(tt.counts); got != tt.want {
				t.Errorf("HealthScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAssessment(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "excellent"},
		{90, "excellent"},
		{89, "good"},
		{75, "good"},
		{74, "fair"},
		{50, "fair"},
		{49, "needs improvement"},
		{25, "needs improvement"},
		{24, "critical"},
		{0, "critical"},
	}
	for _, tt := range tests {
		if got := Assessment(tt.score); got != tt.want {
			t.Errorf("Assessment(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestAggregateMergesDuplicates(t *testing.T) {
	responses := []review.AgentResponse{
		{
			AgentName: "code_quality",
			Findings: []review.Finding{{
				FilePath: "src/app.go", Symbol: "Run", Category: "Complexity",
				Severity: "Medium", Description: "deep nesting", Confidence: 0.6,
			}},
		},
		{
			AgentName: "security",
			Findings: []review.Finding{{
				FilePath: "src/app.go", Symbol: "Run", Category: "Complexity",
				Severity: "High", Description: "unreviewable control flow",
				SuggestedFix: "split the function", Confidence: 0.8,
			}},
		},
	}

	agg := New(nil, WithLogger(testLogger()))
	rep, err := agg.Aggregate(context.Background(), "p1", responses, time.Second)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if len(rep.Findings) != 1 {
		t.Fatalf("got %d findings, want 1 merged", len(rep.Findings))
	}
	f := rep.Findings[0]
	if f.Severity != "High" {
		t.Errorf("severity = %s, want highest (High)", f.Severity)
	}
	if f.Confidence != 0.8 {
		t.Errorf("confidence = %v, want max (0.8)", f.Confidence)
	}
	if !strings.Contains(f.Description, "\n---\n") {
		t.Errorf("description not joined: %q", f.Description)
	}
	if f.SuggestedFix != "split the function" {
		t.Errorf("suggested fix = %q, want first non-empty", f.SuggestedFix)
	}
	if f.ID == "" {
		t.Error("merged finding missing id")
	}
}

func TestAggregateEscalatesOnConfidence(t *testing.T) {
	responses := []review.AgentResponse{
		{AgentName: "a", Findings: []review.Finding{{
			FilePath: "x.go", Category: "Security", Severity: "Medium",
			Description: "one", Confidence: 0.9,
		}}},
		{AgentName: "b", Findings: []review.Finding{{
			FilePath: "x.go", Category: "Security", Severity: "Medium",
			Description: "two", Confidence: 0.9,
		}}},
	}

	agg := New(nil, WithLogger(testLogger()))
	rep, err := agg.Aggregate(context.Background(), "p1", responses, 0)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rep.Findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(rep.Findings))
	}
	if rep.Findings[0].Severity != "High" {
		t.Errorf("severity = %s, want escalation to High", rep.Findings[0].Severity)
	}
}

func TestAggregateKeepsCriticalAboveEscalation(t *testing.T) {
	responses := []review.AgentResponse{
		{AgentName: "a", Findings: []review.Finding{
			{FilePath: "x.go", Category: "Security", Severity: "Critical", Description: "one", Confidence: 0.9},
			{FilePath: "x.go", Category: "Security", Severity: "Critical", Description: "two", Confidence: 0.95},
		}},
	}

	agg := New(nil, WithLogger(testLogger()))
	rep, err := agg.Aggregate(context.Background(), "p1", responses, 0)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if rep.Findings[0].Severity != "Critical" {
		t.Errorf("severity = %s, want Critical preserved", rep.Findings[0].Severity)
	}
}

func TestAggregateEvidenceGate(t *testing.T) {
	responses := []review.AgentResponse{
		{AgentName: "advisor", Findings: []review.Finding{
			{Category: "Architecture", Severity: "Medium", Description: "unbacked claim", Confidence: 0.9},
			{Category: "Architecture", Severity: "Medium", Description: "backed claim",
				Explanation: "because of the layering", Confidence: 0.9, Symbol: "core"},
		}},
	}

	agg := New(nil, WithLogger(testLogger()))
	rep, err := agg.Aggregate(context.Background(), "p1", responses, 0)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rep.Findings) != 1 {
		t.Fatalf("got %d findings, want 1 (gated)", len(rep.Findings))
	}
	if rep.Findings[0].Description != "backed claim" {
		t.Errorf("kept %q, want the explained finding", rep.Findings[0].Description)
	}
}

func TestAggregateSkipsEmptyDescriptions(t *testing.T) {
	responses := []review.AgentResponse{
		{AgentName: "structure", Findings: []review.Finding{
			{FilePath: "a.go", Category: "Structure", Severity: "Info", Description: "", Confidence: 1},
			{FilePath: "b.go", Category: "Structure", Severity: "Info", Description: "kept", Confidence: 1},
		}},
	}

	agg := New(nil, WithLogger(testLogger()))
	rep, err := agg.Aggregate(context.Background(), "p1", responses, 0)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rep.Findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(rep.Findings))
	}
	if !strings.Contains(rep.Summary, "Not reviewed:") || !strings.Contains(rep.Summary, "empty description (a.go)") {
		t.Errorf("summary missing skip note:\n%s", rep.Summary)
	}
}

func TestAggregateSortsFindings(t *testing.T) {
	responses := []review.AgentResponse{
		{AgentName: "a", Findings: []review.Finding{
			{FilePath: "z.go", Category: "CodeQuality", Severity: "Low", Description: "low z", Confidence: 1},
			{FilePath: "b.go", Category: "Security", Severity: "Critical", Description: "crit b", Confidence: 1},
			{FilePath: "a.go", Category: "Security", Severity: "Critical", Description: "crit a", Confidence: 1},
		}},
	}

	agg := New(nil, WithLogger(testLogger()))
	rep, err := agg.Aggregate(context.Background(), "p1", responses, 0)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rep.Findings) != 3 {
		t.Fatalf("got %d findings, want 3", len(rep.Findings))
	}
	wantOrder := []string{"a.go", "b.go", "z.go"}
	for i, want := range wantOrder {
		if rep.Findings[i].FilePath != want {
			t.Errorf("finding[%d] = %s, want %s", i, rep.Findings[i].FilePath, want)
		}
	}
}

func TestAggregateWithModelNarrative(t *testing.T) {
	provider := &labelProvider{responses: map[string]string{
		"report-narrative": `{"narrative": "The service is sound overall.", "recommendations": ["Add integration tests", "Add integration tests", "Split the api package"]}`,
	}}
	responses := []review.AgentResponse{
		{AgentName: "a", Summary: "1 findings (1 High)", Findings: []review.Finding{
			{FilePath: "x.go", Category: "Security", Severity: "High", Description: "issue", Confidence: 0.9},
		}},
	}

	agg := New(provider, WithLogger(testLogger()), WithVersion("1.2.3"))
	rep, err := agg.Aggregate(context.Background(), "p1", responses, 90*time.Second)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if !strings.HasPrefix(rep.Summary, "The service is sound overall.") {
		t.Errorf("summary does not start with narrative:\n%s", rep.Summary)
	}
	if len(rep.Recommendations) != 2 {
		t.Fatalf("recommendations = %v, want deduplicated pair", rep.Recommendations)
	}
	if rep.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", rep.Version)
	}
	if rep.HealthScore != 90 {
		t.Errorf("health = %d, want 90", rep.HealthScore)
	}
	if !strings.Contains(rep.Summary, "1m30s") {
		t.Errorf("summary missing duration:\n%s", rep.Summary)
	}
}

func TestAggregateConsolidationAdoptsTextOnly(t *testing.T) {
	provider := &labelProvider{responses: map[string]string{
		"finding-consolidation": `{"description": "one clean description", "explanation": "joint reasoning", "suggested_fix": "refactor", "severity": "Critical"}`,
		"report-narrative":      `not json at all`,
	}}
	responses := []review.AgentResponse{
		{AgentName: "a", Findings: []review.Finding{{
			FilePath: "x.go", Category: "Security", Severity: "Medium", Description: "one", Confidence: 0.5,
		}}},
		{AgentName: "b", Findings: []review.Finding{{
			FilePath: "x.go", Category: "Security", Severity: "High", Description: "two", Confidence: 0.6,
		}}},
	}

	agg := New(provider, WithLogger(testLogger()))
	rep, err := agg.Aggregate(context.Background(), "p1", responses, 0)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rep.Findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(rep.Findings))
	}
	f := rep.Findings[0]
	if f.Description != "one clean description" {
		t.Errorf("description = %q, want consolidated text", f.Description)
	}
	if f.Severity != "High" {
		t.Errorf("severity = %s, want deterministic High (model Critical ignored)", f.Severity)
	}
	if f.SuggestedFix != "refactor" {
		t.Errorf("suggested fix = %q, want consolidated fix", f.SuggestedFix)
	}
}

func TestAggregateConsolidationFailurePassesThrough(t *testing.T) {
	provider := &labelProvider{err: errors.New("provider down")}
	responses := []review.AgentResponse{
		{AgentName: "a", Findings: []review.Finding{{
			FilePath: "x.go", Category: "Security", Severity: "High", Description: "one", Confidence: 0.5,
		}}},
		{AgentName: "b", Findings: []review.Finding{{
			FilePath: "x.go", Category: "Security", Severity: "High", Description: "two", Confidence: 0.6,
		}}},
	}

	agg := New(provider, WithLogger(testLogger()))
	rep, err := agg.Aggregate(context.Background(), "p1", responses, 0)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rep.Findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(rep.Findings))
	}
	if !strings.Contains(rep.Findings[0].Description, "one") || !strings.Contains(rep.Findings[0].Description, "two") {
		t.Errorf("pass-through description = %q", rep.Findings[0].Description)
	}
}

func TestRecommendationsFallBackToAgentUnion(t *testing.T) {
	responses := []review.AgentResponse{
		{AgentName: "a", Recommendations: []string{"use context", "use context", "add tests"}},
		{AgentName: "b", Recommendations: []string{"add tests", "pin versions"}},
	}

	recs := recommendations(nil, responses)
	want := []string{"use context", "add tests", "pin versions"}
	if len(recs) != len(want) {
		t.Fatalf("got %v, want %v", recs, want)
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Errorf("rec[%d] = %q, want %q", i, recs[i], want[i])
		}
	}
}

func TestExtractJSONObject(t *testing.T) {
	obj, ok := extractJSONObject("```json\n{\"narrative\": \"ok {braces} inside\"}\n```")
	if !ok {
		t.Fatal("object not found in fenced response")
	}
	if !strings.Contains(obj, "braces") {
		t.Errorf("extracted %q", obj)
	}

	if _, ok := extractJSONObject("no object here"); ok {
		t.Error("found an object in plain prose")
	}
	if _, ok := extractJSONObject("{broken: json"); ok {
		t.Error("accepted unbalanced braces")
	}
}
