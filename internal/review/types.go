// Package review defines the finding model shared by the analysis agents,
// the report aggregator, and the relational store.
package review

import "strings"

// Severity represents the impact level of a review finding.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// validSeverities is the set of all known Severity values keyed by their
// lowercase spelling.
var validSeverities = map[string]Severity{
	"critical": SeverityCritical,
	"high":     SeverityHigh,
	"medium":   SeverityMedium,
	"low":      SeverityLow,
	"info":     SeverityInfo,
}

// NormalizeSeverity maps a free-form severity string to the closed enum,
// case-insensitively. Unknown values map to SeverityInfo.
func NormalizeSeverity(s string) Severity {
	if sev, ok := validSeverities[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sev
	}
	return SeverityInfo
}

// Rank orders severities for sorting and comparison; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Category classifies what aspect of the code a finding concerns.
type Category string

const (
	CategoryArchitecture    Category = "Architecture"
	CategorySecurity        Category = "Security"
	CategoryPerformance     Category = "Performance"
	CategoryMaintainability Category = "Maintainability"
	CategoryCodeQuality     Category = "CodeQuality"
	CategoryTesting         Category = "Testing"
	CategoryDocumentation   Category = "Documentation"
	CategoryBestPractice    Category = "BestPractice"
	CategoryComplexity      Category = "Complexity"
	CategoryStructure       Category = "Structure"
	CategoryOther           Category = "Other"
)

// validCategories is the set of all known Category values keyed by their
// lowercase spelling.
var validCategories = map[string]Category{
	"architecture":    CategoryArchitecture,
	"security":        CategorySecurity,
	"performance":     CategoryPerformance,
	"maintainability": CategoryMaintainability,
	"codequality":     CategoryCodeQuality,
	"code quality":    CategoryCodeQuality,
	"testing":         CategoryTesting,
	"documentation":   CategoryDocumentation,
	"bestpractice":    CategoryBestPractice,
	"best practice":   CategoryBestPractice,
	"complexity":      CategoryComplexity,
	"structure":       CategoryStructure,
	"other":           CategoryOther,
}

// NormalizeCategory maps a free-form category string to the closed enum,
// case-insensitively. Unknown values map to CategoryCodeQuality.
func NormalizeCategory(s string) Category {
	if c, ok := validCategories[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c
	}
	return CategoryCodeQuality
}

// Finding is a single observation emitted by an analysis agent. Severity and
// Category are free-form strings as returned by the model; they are resolved
// to the closed enums at normalization time.
type Finding struct {
	ID           string  `json:"id,omitempty"`
	FilePath     string  `json:"file_path,omitempty"`
	Symbol       string  `json:"symbol,omitempty"`
	LineStart    int     `json:"line_start,omitempty"`
	LineEnd      int     `json:"line_end,omitempty"`
	Category     string  `json:"category"`
	Severity     string  `json:"severity"`
	Description  string  `json:"description"`
	Explanation  string  `json:"explanation,omitempty"`
	SuggestedFix string  `json:"suggested_fix,omitempty"`
	FixedCode    string  `json:"fixed_code,omitempty"`
	OriginalCode string  `json:"original_code,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// NormalizedSeverity resolves the finding's severity to the closed enum.
func (f *Finding) NormalizedSeverity() Severity {
	return NormalizeSeverity(f.Severity)
}

// NormalizedCategory resolves the finding's category to the closed enum.
func (f *Finding) NormalizedCategory() Category {
	return NormalizeCategory(f.Category)
}

// Fingerprint is the dedup key used by the aggregator: symbol, file path and
// category joined by "|", with empty fields kept as empty strings.
func (f *Finding) Fingerprint() string {
	return f.Symbol + "|" + f.FilePath + "|" + f.Category
}

// AgentResponse is everything one agent run produced.
type AgentResponse struct {
	AgentName       string
	Findings        []Finding
	Recommendations []string
	Summary         string
	Failed          bool
	Err             error
}
