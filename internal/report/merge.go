package report

import (
	"sort"
	"strings"

	"github.com/archlens/archlens/internal/review"
)

// escalation constants for the merge step.
const (
	escalateHighMembers = 2
	escalateConfidence  = 0.85
)

// evidenceConfidenceFloor gates unlocated findings out of the report.
const evidenceConfidenceFloor = 0.3

// group is one fingerprint bucket with the agents that contributed.
type group struct {
	key     string
	members []review.Finding
	agents  []string
}

// groupByFingerprint buckets findings by symbol|path|category in
// first-seen order.
func groupByFingerprint(responses []review.AgentResponse) []group {
	index := make(map[string]int)
	var groups []group

	for _, resp := range responses {
		for i := range resp.Findings {
			f := resp.Findings[i]
			key := f.Fingerprint()
			at, ok := index[key]
			if !ok {
				at = len(groups)
				index[key] = at
				groups = append(groups, group{key: key})
			}
			groups[at].members = append(groups[at].members, f)
			groups[at].agents = append(groups[at].agents, resp.AgentName)
		}
	}
	return groups
}

// mergeGroup collapses one fingerprint group into a single candidate
// finding: highest severity, maximum confidence, escalation on
// corroboration, location kept only when unique, texts concatenated.
func mergeGroup(g group) review.Finding {
	merged := review.Finding{
		FilePath: uniqueValue(g.members, func(f review.Finding) string { return f.FilePath }),
		Symbol:   uniqueValue(g.members, func(f review.Finding) string { return f.Symbol }),
	}

	var (
		bestSeverity  review.Severity
		highMembers   int
		confidenceSum float64
		descriptions  []string
		explanations  []string
	)

	for _, m := range g.members {
		sev := m.NormalizedSeverity()
		if bestSeverity == "" || sev.Rank() > bestSeverity.Rank() {
			bestSeverity = sev
		}
		if sev == review.SeverityHigh {
			highMembers++
		}
		if m.Confidence > merged.Confidence {
			merged.Confidence = m.Confidence
		}
		confidenceSum += m.Confidence

		if m.Description != "" {
			descriptions = appendUnique(descriptions, m.Description)
		}
		if m.Explanation != "" {
			explanations = appendUnique(explanations, m.Explanation)
		}
		if merged.SuggestedFix == "" && m.SuggestedFix != "" {
			merged.SuggestedFix = m.SuggestedFix
		}
		if merged.LineStart == 0 && m.LineStart > 0 {
			merged.LineStart = m.LineStart
			merged.LineEnd = m.LineEnd
		}
		if merged.Category == "" {
			merged.Category = string(m.NormalizedCategory())
		}
	}

	avgConfidence := confidenceSum / float64(len(g.members))
	if (highMembers >= escalateHighMembers || avgConfidence > escalateConfidence) &&
		bestSeverity.Rank() < review.SeverityHigh.Rank() {
		bestSeverity = review.SeverityHigh
	}

	merged.Severity = string(bestSeverity)
	merged.Description = strings.Join(descriptions, "\n---\n")
	merged.Explanation = strings.Join(explanations, "\n\n")
	return merged
}

// passesEvidenceGate rejects candidates with no file path and nothing to
// back them up.
func passesEvidenceGate(f review.Finding) bool {
	if f.FilePath != "" {
		return true
	}
	return f.Explanation != "" && f.Confidence >= evidenceConfidenceFloor
}

// sortFindings orders findings worst severity first, then by path.
func sortFindings(findings []review.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri, rj := findings[i].NormalizedSeverity().Rank(), findings[j].NormalizedSeverity().Rank()
		if ri != rj {
			return ri > rj
		}
		return findings[i].FilePath < findings[j].FilePath
	})
}

// uniqueValue returns the single distinct non-empty value the extractor
// yields across members, or "" when members disagree.
func uniqueValue(members []review.Finding, get func(review.Finding) string) string {
	value := ""
	for _, m := range members {
		v := get(m)
		if v == "" {
			continue
		}
		if value == "" {
			value = v
			continue
		}
		if v != value {
			return ""
		}
	}
	return value
}

// appendUnique appends s unless already present.
func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
