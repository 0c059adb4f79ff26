package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/archlens/archlens/internal/review"
)

func TestAdvisorSkipsWithoutProvider(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"src/main.go": "package main\n"})

	agent := NewArchitectureAdvisorAgent(nil, testLogger())
	findings, err := agent.Analyze(context.Background(), "p1", dir)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if findings != nil {
		t.Errorf("got %+v, want no findings without a provider", findings)
	}
}

func TestAdvisorParsesModelGuidance(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/main.go":     "package main\n\nfunc main() {}\n",
		"services/api.go": "package services\n",
		"go.mod":          "module example.com/app\n\nrequire github.com/gin-gonic/gin v1.9.1\n",
	})

	provider := &stubProvider{
		available: true,
		response:  `[{"description": "API layer talks to the database directly", "category": "architecture", "severity": "Medium", "confidence": 0.8}]`,
	}
	agent := NewArchitectureAdvisorAgent(provider, testLogger())

	findings, err := agent.Analyze(context.Background(), "p1", dir)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].Category != string(review.CategoryArchitecture) {
		t.Errorf("category = %q, want Architecture", findings[0].Category)
	}
	if provider.calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls.Load())
	}
}

func TestGatherProjectFacts(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/main.go":   "package main\n\nfunc main() {\n\tprintln(1)\n}\n",
		"src/util.py":   "def helper():\n    return 1\n",
		"docs/notes.md": "# notes\n",
		"config.yaml":   "port: 1\n",
	})

	files, err := walkFiles(dir)
	if err != nil {
		t.Fatalf("walkFiles: %v", err)
	}
	facts := gatherProjectFacts(files, dir)

	if facts.FileCount != 4 {
		t.Errorf("FileCount = %d, want 4", facts.FileCount)
	}
	if facts.Languages["go"] != 1 || facts.Languages["python"] != 1 {
		t.Errorf("Languages = %v, want one go and one python file", facts.Languages)
	}
	wantDirs := []string{"docs", "src"}
	if len(facts.TopDirs) != len(wantDirs) {
		t.Fatalf("TopDirs = %v, want %v", facts.TopDirs, wantDirs)
	}
	for i, d := range wantDirs {
		if facts.TopDirs[i] != d {
			t.Errorf("TopDirs[%d] = %q, want %q", i, facts.TopDirs[i], d)
		}
	}
	if facts.TotalLOC == 0 {
		t.Error("TotalLOC should count source lines")
	}
	if len(facts.ConfigFiles) == 0 {
		t.Error("ConfigFiles should include config.yaml")
	}
}

func TestAdvisorPromptMentionsFacts(t *testing.T) {
	facts := projectFacts{
		FileCount:  3,
		TotalLOC:   120,
		Languages:  map[string]int{"go": 2, "python": 1},
		TopDirs:    []string{"cmd", "internal"},
		Frameworks: []string{"Gin"},
	}

	prompt := advisorPrompt(facts)
	for _, want := range []string{"Files: 3", "go (2 files)", "cmd, internal", "Gin", "JSON array"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
