package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/review"
	"github.com/archlens/archlens/internal/staticanalysis"
)

func TestRuleFindings(t *testing.T) {
	summaries := []staticanalysis.FileSummary{
		{Path: "hot.go", Complexity: 20},
		{Path: "warm.go", Complexity: 10},
		{Path: "long.go", LOC: 900},
		{Path: "wide.go", MethodCount: 30},
		{Path: "fine.go", Complexity: 2, LOC: 100, MethodCount: 3},
	}

	findings := ruleFindings(summaries)
	if len(findings) != 4 {
		t.Fatalf("got %d findings, want 4: %+v", len(findings), findings)
	}

	byPath := make(map[string]review.Finding)
	for _, f := range findings {
		byPath[f.FilePath] = f
	}

	if f := byPath["hot.go"]; f.Severity != string(review.SeverityHigh) || f.Category != string(review.CategoryComplexity) {
		t.Errorf("hot.go = (%s, %s), want (High, Complexity)", f.Severity, f.Category)
	}
	if f := byPath["warm.go"]; f.Severity != string(review.SeverityMedium) {
		t.Errorf("warm.go severity = %s, want Medium", f.Severity)
	}
	if f := byPath["long.go"]; f.Category != string(review.CategoryMaintainability) {
		t.Errorf("long.go category = %s, want Maintainability", f.Category)
	}
	if f := byPath["wide.go"]; !strings.Contains(f.Description, "30 methods") {
		t.Errorf("wide.go description = %q, want method count", f.Description)
	}
	if _, ok := byPath["fine.go"]; ok {
		t.Error("fine.go should not be flagged")
	}
}

func TestCodeQualityAgentWithoutProvider(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/calc.py": "def add(a, b):\n    return a + b\n",
	})

	provider := &stubProvider{available: false}
	agent := NewCodeQualityAgent(provider, DefaultCodeQualityConfig(), testLogger())

	_, err := agent.Analyze(context.Background(), "p1", dir)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if provider.calls.Load() != 0 {
		t.Errorf("unavailable provider called %d times", provider.calls.Load())
	}
}

func TestCodeQualityAgentClusterFindings(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/calc.py": "def add(a, b):\n    return a + b\n",
		"src/fmt.py":  "def show(x):\n    return str(x)\n",
	})

	provider := &stubProvider{
		available: true,
		response:  `[{"file_path": "src/calc.py", "description": "model issue", "severity": "Medium", "category": "CodeQuality", "confidence": 0.7}]`,
	}
	agent := NewCodeQualityAgent(provider, DefaultCodeQualityConfig(), testLogger())

	findings, err := agent.Analyze(context.Background(), "p1", dir)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	found := false
	for _, f := range findings {
		if f.Description == "model issue" {
			found = true
		}
	}
	if !found {
		t.Errorf("cluster finding missing from %+v", findings)
	}
	if provider.calls.Load() == 0 {
		t.Error("provider never called for cluster analysis")
	}
}

func TestCodeQualityAgentSurvivesProviderErrors(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/calc.py": "def add(a, b):\n    return a + b\n",
	})

	provider := &stubProvider{available: true, response: "no json here at all"}
	agent := NewCodeQualityAgent(provider, DefaultCodeQualityConfig(), testLogger())

	if _, err := agent.Analyze(context.Background(), "p1", dir); err != nil {
		t.Fatalf("unparseable cluster response should not fail the agent: %v", err)
	}
}

func TestDeepDiveTimeoutDegrades(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"big.py": "def f():\n    pass\n",
	})

	files, err := walkFiles(dir)
	if err != nil {
		t.Fatalf("walkFiles: %v", err)
	}
	summaries := []staticanalysis.FileSummary{
		{Path: "big.py", Language: "python", LOC: 2400, Complexity: 48},
	}

	cfg := DefaultCodeQualityConfig()
	cfg.DeepDiveTimeout = 20 * time.Millisecond
	provider := &stubProvider{available: true, block: true}
	agent := NewCodeQualityAgent(provider, cfg, testLogger())

	findings := agent.deepDive(context.Background(), files, summaries)
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1 timeout placeholder", len(findings))
	}
	f := findings[0]
	if f.FilePath != "big.py" {
		t.Errorf("file = %q, want big.py", f.FilePath)
	}
	if !strings.Contains(f.Description, "timed out") {
		t.Errorf("description = %q, want timeout notice", f.Description)
	}
	if f.Severity != string(review.SeverityMedium) {
		t.Errorf("severity = %s, want Medium", f.Severity)
	}
}

func TestDefaultCodeQualityConfigMatchesConfigDefaults(t *testing.T) {
	cfg := DefaultCodeQualityConfig()
	if cfg.DeepDiveComplexityThreshold != config.DefaultDeepDiveCx {
		t.Errorf("complexity threshold = %d, want %d",
			cfg.DeepDiveComplexityThreshold, config.DefaultDeepDiveCx)
	}
	if cfg.DeepDiveLineCountThreshold != config.DefaultDeepDiveLines {
		t.Errorf("line count threshold = %d, want %d",
			cfg.DeepDiveLineCountThreshold, config.DefaultDeepDiveLines)
	}
}
