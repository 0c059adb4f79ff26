// Package retrieval builds similarity-based context for agent prompts:
// a free-text query is embedded and matched against the indexed chunks
// of a project.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archlens/archlens/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved when the caller does not
// ask for a specific count.
const DefaultTopK = 5

// Chunk is one retrieved match, located by file and line span so the
// caller can load the snippet from the working tree.
type Chunk struct {
	FilePath     string
	StartLine    int
	EndLine      int
	Language     string
	SemanticType string
	SemanticName string
	Score        float32
}

// Embedder turns query text into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher answers similarity queries over indexed chunks.
type Searcher interface {
	Query(ctx context.Context, vector []float32, topK int, projectID string) ([]vectorstore.SearchResult, error)
}

// Retriever embeds a query and searches the vector store.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Retriever over the given embedder and searcher.
func New(embedder Embedder, searcher Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		searcher: searcher,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the topK chunks of the project most similar to the
// query text. topK <= 0 falls back to DefaultTopK.
func (r *Retriever) Retrieve(ctx context.Context, projectID, query string, topK int) ([]Chunk, error) {
	if query == "" {
		return nil, fmt.Errorf("retrieval query is empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed retrieval query; %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query vector, got %d", len(vectors))
	}

	results, err := r.searcher.Query(ctx, vectors[0], topK, projectID)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed; %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, Chunk{
			FilePath:     res.FilePath,
			StartLine:    res.StartLine,
			EndLine:      res.EndLine,
			Language:     res.Language,
			SemanticType: res.SemanticType,
			SemanticName: res.SemanticName,
			Score:        res.Score,
		})
	}

	r.logger.Debug("retrieved similarity context",
		"project_id", projectID,
		"top_k", topK,
		"matches", len(chunks))
	return chunks, nil
}
