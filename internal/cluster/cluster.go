// Package cluster groups analyzed files into themes sized for a single
// model call. Files cluster by directory first; clusters over the size cap
// split, and clusters with embeddings merge when their centroids are close
// enough.
package cluster

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/archlens/archlens/internal/staticanalysis"
)

// Risk levels derived from a cluster's aggregate statistics. Critical
// is reserved for clusters where a router-flagged high-risk file
// coincides with high aggregate complexity or size.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Aggregate thresholds for risk level assignment.
const (
	highComplexity   = 15
	mediumComplexity = 8
	highLOC          = 5000
	mediumLOC        = 2000
)

// AnalysisCluster is a theme of related files with aggregate statistics.
type AnalysisCluster struct {
	Name          string
	Files         []staticanalysis.FileSummary
	TotalLOC      int
	MaxComplexity int
	TotalMethods  int
	Languages     []string
	RiskLevel     string

	centroid []float32
}

// Build groups file summaries into clusters of at most maxSize files.
// Clusters seeded from the same directory stay together; separate clusters
// merge when both carry embeddings and their centroid similarity reaches
// similarityThreshold. Order is deterministic for a given input.
func Build(files []staticanalysis.FileSummary, maxSize int, similarityThreshold float64) []AnalysisCluster {
	if len(files) == 0 {
		return nil
	}
	if maxSize <= 0 {
		maxSize = 10
	}

	byDir := make(map[string][]staticanalysis.FileSummary)
	for _, f := range files {
		dir := filepath.ToSlash(filepath.Dir(f.Path))
		if dir == "." {
			dir = "root"
		}
		byDir[dir] = append(byDir[dir], f)
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var clusters []AnalysisCluster
	for _, dir := range dirs {
		group := byDir[dir]
		sort.Slice(group, func(i, j int) bool { return group[i].Path < group[j].Path })

		if len(group) <= maxSize {
			clusters = append(clusters, newCluster(dir, group))
			continue
		}
		for part := 0; part*maxSize < len(group); part++ {
			end := (part + 1) * maxSize
			if end > len(group) {
				end = len(group)
			}
			name := dir
			if part > 0 {
				name = fmt.Sprintf("%s#%d", dir, part+1)
			}
			clusters = append(clusters, newCluster(name, group[part*maxSize:end]))
		}
	}

	clusters = mergeSimilar(clusters, maxSize, similarityThreshold)
	for i := range clusters {
		finalize(&clusters[i])
	}
	return clusters
}

// newCluster builds a cluster shell with its centroid; aggregate stats are
// filled by finalize once merging has settled.
func newCluster(name string, files []staticanalysis.FileSummary) AnalysisCluster {
	return AnalysisCluster{
		Name:     name,
		Files:    files,
		centroid: centroidOf(files),
	}
}

// mergeSimilar folds together clusters whose centroids are close. A single
// left-to-right pass keeps the result deterministic.
func mergeSimilar(clusters []AnalysisCluster, maxSize int, threshold float64) []AnalysisCluster {
	if threshold <= 0 || len(clusters) < 2 {
		return clusters
	}

	merged := make([]bool, len(clusters))
	var out []AnalysisCluster
	for i := range clusters {
		if merged[i] {
			continue
		}
		current := clusters[i]
		for j := i + 1; j < len(clusters); j++ {
			if merged[j] {
				continue
			}
			if len(current.Files)+len(clusters[j].Files) > maxSize {
				continue
			}
			if cosine(current.centroid, clusters[j].centroid) < threshold {
				continue
			}
			current.Files = append(current.Files, clusters[j].Files...)
			current.centroid = centroidOf(current.Files)
			merged[j] = true
		}
		out = append(out, current)
	}
	return out
}

// finalize computes aggregate statistics and the risk level.
func finalize(c *AnalysisCluster) {
	seen := make(map[string]bool)
	highRisk := false
	for _, f := range c.Files {
		c.TotalLOC += f.LOC
		c.TotalMethods += f.MethodCount
		if f.Complexity > c.MaxComplexity {
			c.MaxComplexity = f.Complexity
		}
		if f.IsHighRisk {
			highRisk = true
		}
		if f.Language != "" && !seen[f.Language] {
			seen[f.Language] = true
			c.Languages = append(c.Languages, f.Language)
		}
	}
	sort.Strings(c.Languages)

	switch {
	case highRisk && (c.MaxComplexity >= highComplexity || c.TotalLOC >= highLOC):
		c.RiskLevel = RiskCritical
	case highRisk || c.MaxComplexity >= highComplexity || c.TotalLOC >= highLOC:
		c.RiskLevel = RiskHigh
	case c.MaxComplexity >= mediumComplexity || c.TotalLOC >= mediumLOC:
		c.RiskLevel = RiskMedium
	default:
		c.RiskLevel = RiskLow
	}
}

// DetectHighPriorityFiles returns the files worth a per-file deep dive:
// complexity or size at or above the given thresholds, ordered most complex
// first with LOC as the tiebreak.
func DetectHighPriorityFiles(files []staticanalysis.FileSummary, complexityThreshold, locThreshold int) []staticanalysis.FileSummary {
	var out []staticanalysis.FileSummary
	for _, f := range files {
		if f.Complexity >= complexityThreshold || f.LOC >= locThreshold || f.IsHighRisk {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Complexity != out[j].Complexity {
			return out[i].Complexity > out[j].Complexity
		}
		if out[i].LOC != out[j].LOC {
			return out[i].LOC > out[j].LOC
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// centroidOf averages the embeddings present in a file set. Files without
// embeddings are skipped; nil when none carry one.
func centroidOf(files []staticanalysis.FileSummary) []float32 {
	var sum []float32
	n := 0
	for _, f := range files {
		if len(f.Embedding) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float32, len(f.Embedding))
		}
		if len(f.Embedding) != len(sum) {
			continue
		}
		for i, v := range f.Embedding {
			sum[i] += v
		}
		n++
	}
	if n == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float32(n)
	}
	return sum
}

// cosine returns the cosine similarity of two vectors, or 0 when either is
// missing or the dimensions disagree.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
