package router

import (
	"fmt"
	"sort"
)

// PreflightConfig holds the estimate thresholds.
type PreflightConfig struct {
	WarnThresholdTokens     int64
	ApprovalThresholdTokens int64
	ApprovalThresholdCost   float64
	PricePerMillionTokens   float64
}

// Preflight is the pre-analysis estimate shown to the caller before the
// pipeline runs.
type Preflight struct {
	DirectCount  int                `json:"direct_count"`
	RagCount     int                `json:"rag_count"`
	SkippedCount int                `json:"skipped_count"`
	TotalFiles   int                `json:"total_files"`
	SkipReasons  map[SkipReason]int `json:"skip_reasons,omitempty"`

	// EstimatedTokens approximates tokens for processed files as size/4.
	EstimatedTokens int64 `json:"estimated_tokens"`

	// EstimatedCost is EstimatedTokens priced per million tokens.
	EstimatedCost float64 `json:"estimated_cost"`

	// EstimatedSeconds is the tokens/1000 + processed-file-count heuristic.
	EstimatedSeconds int64 `json:"estimated_seconds"`

	ExtensionBreakdown map[string]int `json:"extension_breakdown,omitempty"`

	Warnings         []string `json:"warnings,omitempty"`
	RequiresApproval bool     `json:"requires_approval"`
}

// Estimate computes the preflight summary for a set of plans.
func Estimate(plans []FilePlan, cfg PreflightConfig) Preflight {
	pf := Preflight{
		TotalFiles:         len(plans),
		SkipReasons:        make(map[SkipReason]int),
		ExtensionBreakdown: make(map[string]int),
	}

	var processed int
	for _, p := range plans {
		switch p.Decision {
		case DecisionDirectSend:
			pf.DirectCount++
		case DecisionRagChunks:
			pf.RagCount++
		case DecisionSkipped:
			pf.SkippedCount++
			pf.SkipReasons[p.SkipReason]++
			continue
		}
		processed++
		pf.EstimatedTokens += p.Size / 4
		if p.Ext != "" {
			pf.ExtensionBreakdown[p.Ext]++
		}
	}

	pf.EstimatedCost = float64(pf.EstimatedTokens) / 1_000_000 * cfg.PricePerMillionTokens
	pf.EstimatedSeconds = pf.EstimatedTokens/1000 + int64(processed)

	if cfg.WarnThresholdTokens > 0 && pf.EstimatedTokens > cfg.WarnThresholdTokens {
		pf.Warnings = append(pf.Warnings, fmt.Sprintf(
			"estimated %d tokens exceeds the warning threshold of %d",
			pf.EstimatedTokens, cfg.WarnThresholdTokens))
	}

	overTokens := cfg.ApprovalThresholdTokens > 0 && pf.EstimatedTokens > cfg.ApprovalThresholdTokens
	overCost := cfg.ApprovalThresholdCost > 0 && pf.EstimatedCost > cfg.ApprovalThresholdCost
	if overTokens || overCost {
		pf.RequiresApproval = true
		pf.Warnings = append(pf.Warnings, fmt.Sprintf(
			"estimate (%d tokens, $%.2f) requires explicit approval",
			pf.EstimatedTokens, pf.EstimatedCost))
	}

	return pf
}

// TopExtensions returns the n most common processed extensions, most
// frequent first, ties broken alphabetically.
func (pf Preflight) TopExtensions(n int) []string {
	exts := make([]string, 0, len(pf.ExtensionBreakdown))
	for ext := range pf.ExtensionBreakdown {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		ci, cj := pf.ExtensionBreakdown[exts[i]], pf.ExtensionBreakdown[exts[j]]
		if ci != cj {
			return ci > cj
		}
		return exts[i] < exts[j]
	})
	if n < len(exts) {
		exts = exts[:n]
	}
	return exts
}
