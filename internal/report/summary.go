package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/archlens/archlens/internal/review"
)

// Health score deduction weights and caps.
const (
	highWeight   = 10
	highCap      = 50
	mediumWeight = 3
	mediumCap    = 30
	lowWeight    = 1
	lowCap       = 20
)

// HealthScore computes the bounded project health score from severity
// counts. Critical findings weigh in with the High bucket.
func HealthScore(counts map[review.Severity]int) int {
	high := counts[review.SeverityCritical] + counts[review.SeverityHigh]
	medium := counts[review.SeverityMedium]
	low := counts[review.SeverityLow]

	score := 100
	score -= min(highWeight*high, highCap)
	score -= min(mediumWeight*medium, mediumCap)
	score -= min(lowWeight*low, lowCap)

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Assessment returns the overall assessment phrase for a health score.
func Assessment(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 50:
		return "fair"
	case score >= 25:
		return "needs improvement"
	default:
		return "critical"
	}
}

// narrative asks the model for a short cross-file narrative and a
// recommendation list in one call. Both degrade to empty on any failure.
func (a *Aggregator) narrative(ctx context.Context, findings []review.Finding) (string, []string) {
	if a.provider == nil || !a.provider.Available() || len(findings) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("Here are the consolidated findings of an architecture review. Write a short narrative (3-5 sentences) of the codebase's overall state, naming the dominant problem areas, and list the most valuable improvements.\n\n")
	for i, f := range findings {
		if i == 15 {
			fmt.Fprintf(&sb, "... and %d more findings\n", len(findings)-i)
			break
		}
		fmt.Fprintf(&sb, "- [%s/%s] %s: %s\n", f.Severity, f.Category, f.FilePath, firstLine(f.Description))
	}
	sb.WriteString("\nRespond with only a JSON object: {\"narrative\": string, \"recommendations\": [string, ...]}.")

	resp, err := a.provider.Complete(ctx, sb.String(), "report-narrative")
	if err != nil {
		a.logger.Warn("narrative call failed", "error", err)
		return "", nil
	}

	var out struct {
		Narrative       string   `json:"narrative"`
		Recommendations []string `json:"recommendations"`
	}
	obj, ok := extractJSONObject(resp)
	if !ok {
		return "", nil
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return "", nil
	}
	return strings.TrimSpace(out.Narrative), out.Recommendations
}

// recommendations prefers the model's list and falls back to the union
// of agent recommendations; deduplicated, at most ten.
func recommendations(modelRecs []string, responses []review.AgentResponse) []string {
	out := dedupeNonEmpty(modelRecs, maxRecommendations)
	if len(out) > 0 {
		return out
	}

	var union []string
	for _, resp := range responses {
		union = append(union, resp.Recommendations...)
	}
	return dedupeNonEmpty(union, maxRecommendations)
}

// composeSummary renders the report summary: narrative, assessment,
// severity counts, per-agent one-liners, and the skipped list.
func composeSummary(narrative string, score int, counts map[review.Severity]int, responses []review.AgentResponse, skipped []string, duration time.Duration) string {
	var sb strings.Builder

	if narrative != "" {
		sb.WriteString(narrative)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "Overall code health is %s (%d/100).", Assessment(score), score)
	if line := countsLine(counts); line != "" {
		fmt.Fprintf(&sb, " Findings: %s.", line)
	} else {
		sb.WriteString(" No findings survived review.")
	}
	if duration > 0 {
		fmt.Fprintf(&sb, " Analyzed by %d agents in %s.", len(responses), duration.Round(time.Second))
	}

	if len(responses) > 0 {
		sb.WriteString("\n\nAgent results:\n")
		for _, resp := range responses {
			summary := resp.Summary
			if summary == "" {
				summary = fmt.Sprintf("%d findings", len(resp.Findings))
			}
			fmt.Fprintf(&sb, "- %s: %s\n", resp.AgentName, summary)
		}
	}

	if len(skipped) > 0 {
		sb.WriteString("\nNot reviewed:\n")
		for i, s := range skipped {
			if i == maxSkippedInSummary {
				fmt.Fprintf(&sb, "... and %d more\n", len(skipped)-i)
				break
			}
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// countsLine renders severity counts worst-first, e.g. "2 High, 1 Low".
func countsLine(counts map[review.Severity]int) string {
	order := []review.Severity{
		review.SeverityCritical,
		review.SeverityHigh,
		review.SeverityMedium,
		review.SeverityLow,
		review.SeverityInfo,
	}
	var parts []string
	for _, sev := range order {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	return strings.Join(parts, ", ")
}

// extractJSONObject returns the first balanced {...} block that decodes
// as JSON, tolerating fences and prose around it.
func extractJSONObject(raw string) (string, bool) {
	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' {
			continue
		}
		end, ok := matchBrace(raw, start)
		if !ok {
			continue
		}
		candidate := raw[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// matchBrace returns the index of the '}' closing the '{' at start.
func matchBrace(raw string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// dedupeNonEmpty keeps the first occurrence of each non-empty entry, up
// to limit.
func dedupeNonEmpty(list []string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

// firstLine returns the first line of s.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
