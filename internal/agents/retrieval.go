package agents

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/archlens/archlens/internal/retrieval"
)

// Retriever supplies similarity-matched chunks for prompt context.
type Retriever interface {
	Retrieve(ctx context.Context, projectID, query string, topK int) ([]retrieval.Chunk, error)
}

const (
	// retrievalTopK bounds the chunks pulled into one prompt section.
	retrievalTopK = 5

	// retrievalSnippetBytes caps one retrieved snippet.
	retrievalSnippetBytes = 2 * 1024
)

// retrievedContext builds a prompt section from the indexed chunks most
// similar to the query, loading each snippet from the working tree.
// Returns "" when the retriever is nil, fails, or matches nothing; the
// model phases carry on without the extra context.
func retrievedContext(ctx context.Context, r Retriever, logger *slog.Logger, projectID, workingDir, query string) string {
	if r == nil {
		return ""
	}

	chunks, err := r.Retrieve(ctx, projectID, query, retrievalTopK)
	if err != nil {
		logger.Debug("similarity retrieval failed, continuing without context",
			"project_id", projectID,
			"error", err)
		return ""
	}
	if len(chunks) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Related code from this project, retrieved by similarity:\n")
	for _, c := range chunks {
		snippet, ok := readLineRange(filepath.Join(workingDir, filepath.FromSlash(c.FilePath)), c.StartLine, c.EndLine)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\nFile: %s (lines %d-%d", c.FilePath, c.StartLine, c.EndLine)
		if c.SemanticType != "" && c.SemanticName != "" {
			fmt.Fprintf(&sb, ", %s %s", c.SemanticType, c.SemanticName)
		}
		fmt.Fprintf(&sb, ")\n```\n%s\n```\n", truncateForPrompt(snippet, retrievalSnippetBytes))
	}

	// All snippets unreadable leaves only the heading.
	if !strings.Contains(sb.String(), "File: ") {
		return ""
	}
	return sb.String()
}

// readLineRange returns lines [start, end] of the file, 1-based and
// inclusive, clamped to the file's length.
func readLineRange(absPath string, start, end int) (string, bool) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", false
	}
	lines := strings.Split(string(content), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", false
	}
	return strings.Join(lines[start-1:end], "\n"), true
}
