package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/review"
	"github.com/archlens/archlens/internal/staticanalysis"
)

// ArchitectureAdvisorAgent builds a fact sheet about the project and
// asks the model for architecture-level recommendations. It produces
// nothing without an available provider.
type ArchitectureAdvisorAgent struct {
	provider llm.ChatProvider
	logger   *slog.Logger
}

// NewArchitectureAdvisorAgent creates the advisor agent.
func NewArchitectureAdvisorAgent(provider llm.ChatProvider, logger *slog.Logger) *ArchitectureAdvisorAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchitectureAdvisorAgent{provider: provider, logger: logger}
}

// Name returns the agent's stable identifier used in reports.
func (a *ArchitectureAdvisorAgent) Name() string {
	return "architecture_advisor"
}

// Analyze summarizes the project and requests model guidance.
func (a *ArchitectureAdvisorAgent) Analyze(ctx context.Context, projectID, workingDir string) ([]review.Finding, error) {
	if a.provider == nil || !a.provider.Available() {
		a.logger.Debug("architecture advisor skipped: no provider available")
		return nil, nil
	}

	files, err := walkFiles(workingDir)
	if err != nil {
		return nil, fmt.Errorf("architecture advisor walk failed; %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	facts := gatherProjectFacts(files, workingDir)
	prompt := advisorPrompt(facts)

	raw, err := a.provider.Complete(ctx, prompt, "architecture-advisor")
	if err != nil {
		return nil, fmt.Errorf("architecture advisor completion failed; %w", err)
	}

	findings, err := ParseFindings(raw)
	if err != nil {
		return nil, fmt.Errorf("architecture advisor response unusable; %w", err)
	}

	a.logger.Debug("architecture advisor finished",
		"project_id", projectID,
		"findings", len(findings))
	return findings, nil
}

// projectFacts is the condensed project description fed to the model.
type projectFacts struct {
	FileCount   int
	TotalLOC    int
	Languages   map[string]int
	TopDirs     []string
	Frameworks  []string
	ConfigFiles []string
}

// gatherProjectFacts derives the fact sheet from the walked tree.
func gatherProjectFacts(files []projectFile, workingDir string) projectFacts {
	facts := projectFacts{Languages: map[string]int{}}
	dirSet := map[string]bool{}

	for _, f := range files {
		facts.FileCount++

		if idx := strings.IndexByte(f.RelPath, '/'); idx > 0 {
			dirSet[f.RelPath[:idx]] = true
		}

		if f.IsConfig && len(facts.ConfigFiles) < 12 {
			facts.ConfigFiles = append(facts.ConfigFiles, f.RelPath)
		}

		if !f.IsSource {
			continue
		}
		lang := staticanalysis.DetectLanguage(f.RelPath)
		facts.Languages[lang]++

		if content, ok := readCapped(f.AbsPath, maxScanBytes); ok {
			summary := staticanalysis.Analyze(f.RelPath, content)
			facts.TotalLOC += summary.LOC
		}
	}

	for dir := range dirSet {
		facts.TopDirs = append(facts.TopDirs, dir)
	}
	sort.Strings(facts.TopDirs)
	facts.Frameworks = detectFrameworks(files)
	return facts
}

// advisorPrompt renders the fact sheet into the model request.
func advisorPrompt(facts projectFacts) string {
	var sb strings.Builder
	sb.WriteString("You are a software architecture advisor. Based on this project profile, identify structural risks and improvement opportunities.\n\n")

	fmt.Fprintf(&sb, "Files: %d, total lines of code: %d\n", facts.FileCount, facts.TotalLOC)

	if len(facts.Languages) > 0 {
		langs := make([]string, 0, len(facts.Languages))
		for lang, n := range facts.Languages {
			langs = append(langs, fmt.Sprintf("%s (%d files)", lang, n))
		}
		sort.Strings(langs)
		fmt.Fprintf(&sb, "Languages: %s\n", strings.Join(langs, ", "))
	}
	if len(facts.TopDirs) > 0 {
		fmt.Fprintf(&sb, "Top-level directories: %s\n", strings.Join(facts.TopDirs, ", "))
	}
	if len(facts.Frameworks) > 0 {
		fmt.Fprintf(&sb, "Frameworks: %s\n", strings.Join(facts.Frameworks, ", "))
	}
	if len(facts.ConfigFiles) > 0 {
		fmt.Fprintf(&sb, "Configuration files: %s\n", strings.Join(facts.ConfigFiles, ", "))
	}

	sb.WriteString("\nFocus on: layering and dependency direction, separation of concerns, scalability constraints, testability, and operational readiness. Give concrete suggestions in suggested_fix.\n\n")
	sb.WriteString(findingsSchemaPrompt)
	return sb.String()
}
