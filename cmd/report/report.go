// Package report implements the report command for viewing analysis results.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/cmdutil"
	reportpkg "github.com/archlens/archlens/internal/report"
	"github.com/archlens/archlens/internal/review"
	"github.com/archlens/archlens/internal/tui/styles"
)

// Flag variables for the report command.
var (
	reportServer   string
	reportAPIKey   string
	reportJSON     bool
	reportSeverity string
	reportCategory string
)

// ReportCmd fetches and renders the analysis report for a project.
var ReportCmd = &cobra.Command{
	Use:   "report <project-id>",
	Short: "Show the analysis report for a project",
	Long: "Show the analysis report for a completed project.\n\n" +
		"The report contains the overall health score, an executive summary, " +
		"recommendations, and every finding with severity, category, location, " +
		"and suggested fix. Findings can be filtered by severity or category.",
	Example: `  # Show the full report
  archlens report 5f0c4b2a-...

  # Only high-impact findings
  archlens report 5f0c4b2a-... --severity=high

  # Only security findings, as JSON
  archlens report 5f0c4b2a-... --category=security --json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateReport,
	RunE:    runReport,
}

func init() {
	ReportCmd.Flags().StringVar(&reportServer, "server", "",
		"Server base URL (default: from configuration)")
	ReportCmd.Flags().StringVar(&reportAPIKey, "api-key", "",
		"API key (default: ARCHLENS_API_KEY environment variable)")
	ReportCmd.Flags().BoolVar(&reportJSON, "json", false,
		"Output the raw report as JSON")
	ReportCmd.Flags().StringVar(&reportSeverity, "severity", "",
		"Only show findings at or above this severity (critical, high, medium, low, info)")
	ReportCmd.Flags().StringVar(&reportCategory, "category", "",
		"Only show findings in this category (security, performance, ...)")
}

func validateReport(cmd *cobra.Command, args []string) error {
	if reportSeverity != "" {
		if _, ok := severityRank(reportSeverity); !ok {
			return fmt.Errorf("invalid severity %q; must be one of: critical, high, medium, low, info",
				reportSeverity)
		}
	}

	cmd.SilenceUsage = true
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	api := cmdutil.NewClient(reportServer, reportAPIKey)

	rep, err := api.Report(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch report; %w", err)
	}

	rep.Findings = filterFindings(rep.Findings)

	if reportJSON {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report; %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Print(renderReport(rep))
	return nil
}

// filterFindings applies the --severity and --category filters.
func filterFindings(findings []review.Finding) []review.Finding {
	minRank := 0
	if reportSeverity != "" {
		minRank, _ = severityRank(reportSeverity)
	}

	var category review.Category
	if reportCategory != "" {
		category = review.NormalizeCategory(reportCategory)
	}

	out := findings[:0]
	for _, f := range findings {
		if f.NormalizedSeverity().Rank() < minRank {
			continue
		}
		if reportCategory != "" && review.NormalizeCategory(f.Category) != category {
			continue
		}
		out = append(out, f)
	}
	return out
}

// severityRank maps a lowercase severity name to its rank.
func severityRank(s string) (int, bool) {
	switch strings.ToLower(s) {
	case "critical":
		return review.SeverityCritical.Rank(), true
	case "high":
		return review.SeverityHigh.Rank(), true
	case "medium":
		return review.SeverityMedium.Rank(), true
	case "low":
		return review.SeverityLow.Rank(), true
	case "info":
		return review.SeverityInfo.Rank(), true
	}
	return 0, false
}

// renderReport formats the report for terminal display.
func renderReport(rep *reportpkg.Report) string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Architecture Review") + "\n\n")

	b.WriteString(fmt.Sprintf("Project:      %s\n", rep.ProjectID))
	b.WriteString(fmt.Sprintf("Health Score: %s\n", renderScore(rep.HealthScore)))
	b.WriteString(fmt.Sprintf("Generated:    %s (v%s, %s)\n",
		rep.GeneratedAt.Local().Format("2006-01-02 15:04"), rep.Version, rep.Duration.Round(time.Second)))
	b.WriteString("\n")

	if len(rep.SeverityCounts) > 0 {
		b.WriteString(styles.SectionTitle.Render("Findings by Severity") + "\n")
		for _, sev := range severityOrder {
			if n := rep.SeverityCounts[sev]; n > 0 {
				b.WriteString(fmt.Sprintf("  %s %d\n", renderSeverity(string(sev)), n))
			}
		}
		b.WriteString("\n")
	}

	if rep.Summary != "" {
		b.WriteString(styles.SectionTitle.Render("Summary") + "\n")
		b.WriteString(rep.Summary + "\n\n")
	}

	if len(rep.Recommendations) > 0 {
		b.WriteString(styles.SectionTitle.Render("Recommendations") + "\n")
		for i, rec := range rep.Recommendations {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, rec))
		}
		b.WriteString("\n")
	}

	if len(rep.Findings) > 0 {
		b.WriteString(styles.SectionTitle.Render(fmt.Sprintf("Findings (%d)", len(rep.Findings))) + "\n\n")

		sorted := make([]review.Finding, len(rep.Findings))
		copy(sorted, rep.Findings)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].NormalizedSeverity().Rank() > sorted[j].NormalizedSeverity().Rank()
		})

		for _, f := range sorted {
			b.WriteString(renderFinding(f))
		}
	}

	return b.String()
}

// severityOrder lists severities worst-first for the summary table.
var severityOrder = []review.Severity{
	review.SeverityCritical,
	review.SeverityHigh,
	review.SeverityMedium,
	review.SeverityLow,
	review.SeverityInfo,
}

// renderScore colors the health score by band.
func renderScore(score int) string {
	text := fmt.Sprintf("%d/100", score)
	switch {
	case score >= 80:
		return styles.SuccessText.Render(text)
	case score >= 50:
		return styles.WarningText.Render(text)
	default:
		return styles.ErrorText.Render(text)
	}
}

// renderSeverity renders a severity label in its configured color.
func renderSeverity(sev string) string {
	label := fmt.Sprintf("%-8s", sev)
	if color, ok := styles.SeverityColors[sev]; ok {
		return lipgloss.NewStyle().Foreground(color).Bold(true).Render(label)
	}
	return label
}

// renderFinding formats one finding block.
func renderFinding(f review.Finding) string {
	var b strings.Builder

	sev := string(f.NormalizedSeverity())
	location := f.FilePath
	if location != "" && f.LineStart > 0 {
		location = fmt.Sprintf("%s:%d", location, f.LineStart)
		if f.LineEnd > f.LineStart {
			location = fmt.Sprintf("%s-%d", location, f.LineEnd)
		}
	}

	b.WriteString(fmt.Sprintf("%s [%s] %s\n", renderSeverity(sev), f.Category, f.Description))
	if location != "" {
		b.WriteString(styles.MutedText.Render("  at "+location) + "\n")
	}
	if f.Explanation != "" {
		b.WriteString("  " + f.Explanation + "\n")
	}
	if f.SuggestedFix != "" {
		b.WriteString(styles.MutedText.Render("  fix: "+f.SuggestedFix) + "\n")
	}
	b.WriteString("\n")

	return b.String()
}
