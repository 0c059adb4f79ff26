package router

// Decision is the route chosen for a file.
type Decision string

const (
	// DecisionDirectSend includes the file's full text verbatim in prompts.
	DecisionDirectSend Decision = "direct"

	// DecisionRagChunks sends the file through chunking, embedding and
	// vector indexing for retrieval.
	DecisionRagChunks Decision = "rag"

	// DecisionSkipped excludes the file from analysis.
	DecisionSkipped Decision = "skipped"
)

// SkipReason explains why a file was skipped.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipExcludedPath SkipReason = "excluded_path"
	SkipBinary       SkipReason = "binary"
	SkipTooLarge     SkipReason = "too_large"
)

// FilePlan is the routing outcome for a single file.
type FilePlan struct {
	// RelPath is the slash-separated path relative to the project root.
	RelPath string

	// AbsPath is the absolute path on disk, for readers downstream.
	AbsPath string

	// Ext is the lowercase extension including the dot.
	Ext string

	// Size is the file size in bytes.
	Size int64

	Decision   Decision
	SkipReason SkipReason

	// RiskScore is assigned by an external risk scorer, 0 when unscored.
	RiskScore float64

	// IsHighRisk marks files at or above the configured risk threshold for
	// prioritization downstream.
	IsHighRisk bool
}

// Processed reports whether the file takes part in analysis.
func (p FilePlan) Processed() bool {
	return p.Decision != DecisionSkipped
}
