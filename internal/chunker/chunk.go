// Package chunker splits source files into semantic chunks for embedding.
//
// Files in a language with a registered grammar are parsed with tree-sitter
// and split along type and member boundaries. Other source files fall back
// to a brace/indent scan, and anything unparseable is split by a
// token-bounded sliding window.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Semantic unit kinds carried by Chunk.SemanticType. The set is closed;
// chunks never carry any other value.
const (
	SemanticClass       = "class"
	SemanticStruct      = "struct"
	SemanticRecord      = "record"
	SemanticInterface   = "interface"
	SemanticMethod      = "method"
	SemanticProperty    = "property"
	SemanticField       = "field"
	SemanticConstructor = "constructor"
	SemanticEvent       = "event"
	SemanticIndexer     = "indexer"
	SemanticOperator    = "operator"
	SemanticTopLevel    = "top-level"
	SemanticFile        = "file"
)

// Chunk is one embeddable slice of a source file. StartLine and EndLine are
// 1-based and inclusive; ChunkIndex runs contiguously from zero up to
// TotalChunks across all chunks of one file.
type Chunk struct {
	ProjectID    string `json:"project_id"`
	FilePath     string `json:"file_path"`
	StartLine    int    `json:"start_line"`
	EndLine      int    `json:"end_line"`
	Language     string `json:"language"`
	SemanticType string `json:"semantic_type"`
	SemanticName string `json:"semantic_name"`
	ChunkIndex   int    `json:"chunk_index"`
	TotalChunks  int    `json:"total_chunks"`
	TokenCount   int    `json:"token_count"`
	Text         string `json:"text,omitempty"`
	TextHash     string `json:"text_hash"`
	ChunkHash    string `json:"chunk_hash"`
}

// ComputeChunkHash derives the 16-hex-character chunk identity from the
// project, path, line range, and text. The same inputs always produce the
// same value, so re-chunking an unchanged file re-derives identical ids.
func ComputeChunkHash(projectID, filePath string, startLine, endLine int, text string) string {
	textSum := sha256.Sum256([]byte(text))
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%x", projectID, filePath, startLine, endLine, textSum)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// HashText returns the full hex SHA-256 of a chunk's text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
