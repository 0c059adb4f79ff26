// Package vectorstore persists chunk embeddings in Qdrant and serves
// similarity queries for retrieval-augmented analysis.
//
// The store supports two tenancy modes. With per-project collections
// each project gets its own collection named <prefix>_<projectID>_vectors,
// and project cleanup drops the whole collection. In shared mode all
// projects live in a single <prefix>_vectors collection and every write
// carries a project_id payload field that queries and deletes filter on.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/archlens/archlens/internal/apperr"
	"github.com/archlens/archlens/internal/chunker"
	"github.com/archlens/archlens/internal/metrics"
)

// maxGrpcMessageBytes bounds inbound gRPC responses from Qdrant.
const maxGrpcMessageBytes = 64 << 20

// Config controls the Qdrant connection and tenancy layout.
type Config struct {
	Host                  string
	Port                  int
	CollectionPrefix      string
	PerProjectCollections bool
	Dimension             int
	FailOnIndexingFailure bool
}

// DefaultConfig returns a store configuration for a local Qdrant instance.
func DefaultConfig() Config {
	return Config{
		Host:                  "localhost",
		Port:                  6334,
		CollectionPrefix:      "archlens",
		PerProjectCollections: true,
		Dimension:             1536,
		FailOnIndexingFailure: true,
	}
}

// SearchResult is one similarity match returned by Query.
type SearchResult struct {
	ProjectID    string
	FilePath     string
	StartLine    int
	EndLine      int
	Language     string
	SemanticType string
	SemanticName string
	ChunkHash    string
	Score        float32
}

// Store wraps a Qdrant client with collection management, payload
// construction, and post-write verification.
type Store struct {
	client qdrantClient
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

// qdrantClient is the subset of the Qdrant client the store calls.
// Narrowing the surface keeps the store testable without a live server.
type qdrantClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Close() error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New connects to Qdrant and returns a ready Store. In shared mode the
// backing collection is created eagerly; per-project collections are
// created on first write for each project.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "archlens"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
		// Batched upserts with payloads can exceed the 4 MiB gRPC default.
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxGrpcMessageBytes)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s:%d; %w", cfg.Host, cfg.Port, err)
	}

	s := &Store{
		client:  client,
		cfg:     cfg,
		logger:  slog.Default(),
		ensured: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !cfg.PerProjectCollections {
		if err := s.ensureCollection(ctx, s.collectionFor("")); err != nil {
			client.Close()
			return nil, err
		}
	}

	s.logger.Debug("vector store connected",
		"host", cfg.Host,
		"port", cfg.Port,
		"per_project", cfg.PerProjectCollections,
		"dimension", cfg.Dimension)
	return s, nil
}

// Close releases the underlying Qdrant connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Index stores a single chunk embedding. It is a one-element IndexBatch.
func (s *Store) Index(ctx context.Context, chunk chunker.Chunk, vector []float32) error {
	return s.IndexBatch(ctx, []chunker.Chunk{chunk}, [][]float32{vector})
}

// IndexBatch normalizes and upserts one vector per chunk, then verifies
// the write by reading a sample point back. All chunks in a batch must
// belong to the same project.
func (s *Store) IndexBatch(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	projectID := chunks[0].ProjectID
	for i, ch := range chunks {
		if ch.ProjectID != projectID {
			return fmt.Errorf("mixed projects in batch: %q and %q", projectID, ch.ProjectID)
		}
		if len(vectors[i]) != s.cfg.Dimension {
			return fmt.Errorf("vector %d for %s has dimension %d, want %d", i, ch.FilePath, len(vectors[i]), s.cfg.Dimension)
		}
	}

	collection := s.collectionFor(projectID)
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}

	var before uint64
	if s.cfg.FailOnIndexingFailure {
		n, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: collection,
			Exact:          ptr(true),
		})
		if err != nil {
			return fmt.Errorf("failed to count points before indexing; %w", err)
		}
		before = n
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, ch := range chunks {
		unit, ok := NormalizeVector(vectors[i])
		if !ok {
			return fmt.Errorf("vector %d for %s has zero norm", i, ch.FilePath)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(ch.ChunkHash)),
			Vectors: qdrant.NewVectors(unit...),
			Payload: qdrant.NewValueMap(chunkPayload(ch)),
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           ptr(true),
	}); err != nil {
		return fmt.Errorf("failed to upsert %d points into %s; %w", len(points), collection, err)
	}

	if err := s.verifyBatch(ctx, collection, chunks); err != nil {
		return err
	}

	if s.cfg.FailOnIndexingFailure {
		after, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: collection,
			Exact:          ptr(true),
		})
		if err != nil {
			return fmt.Errorf("failed to count points after indexing; %w", err)
		}
		if after <= before {
			metrics.VectorVerificationFailures.Inc()
			return apperr.Newf(apperr.CodeVectorVerification,
				"point count did not grow after indexing %d chunks into %s: %d before, %d after",
				len(chunks), collection, before, after)
		}
	}

	metrics.VectorsIndexedTotal.Add(float64(len(points)))
	s.logger.Debug("indexed chunk batch",
		"collection", collection,
		"points", len(points),
		"project_id", projectID)
	return nil
}

// verifyBatch reads one point of the batch back and checks that its
// payload carries coherent chunk ordering fields. A violation means the
// write path corrupted payloads and the analysis must not proceed on
// top of it.
func (s *Store) verifyBatch(ctx context.Context, collection string, chunks []chunker.Chunk) error {
	sample := chunks[0]
	retrieved, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(PointID(sample.ChunkHash))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return fmt.Errorf("failed to read back sample point; %w", err)
	}
	if len(retrieved) == 0 {
		metrics.VectorVerificationFailures.Inc()
		return apperr.Newf(apperr.CodeVectorVerification,
			"sample point for chunk %s missing after upsert into %s", sample.ChunkHash, collection)
	}

	payload := retrieved[0].Payload
	index := int(payload["chunk_index"].GetIntegerValue())
	total := int(payload["total_chunks"].GetIntegerValue())
	if total <= 0 || index < 0 || index >= total {
		metrics.VectorVerificationFailures.Inc()
		return apperr.Newf(apperr.CodeVectorVerification,
			"sample point for chunk %s has invalid ordering payload: chunk_index=%d total_chunks=%d",
			sample.ChunkHash, index, total)
	}
	return nil
}

// Query returns the topK most similar chunks to the given vector.
// projectID scopes the search to one project; it is required in
// per-project mode and optional in shared mode, where an empty value
// searches across all projects.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, projectID string) ([]SearchResult, error) {
	if len(vector) != s.cfg.Dimension {
		return nil, fmt.Errorf("query vector has dimension %d, want %d", len(vector), s.cfg.Dimension)
	}
	if s.cfg.PerProjectCollections && projectID == "" {
		return nil, fmt.Errorf("project id is required with per-project collections")
	}
	if topK <= 0 {
		topK = 10
	}

	unit, ok := NormalizeVector(vector)
	if !ok {
		return nil, fmt.Errorf("query vector has zero norm")
	}

	request := &qdrant.QueryPoints{
		CollectionName: s.collectionFor(projectID),
		Query:          qdrant.NewQuery(unit...),
		Limit:          ptr(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if !s.cfg.PerProjectCollections && projectID != "" {
		request.Filter = projectFilter(projectID)
	}

	points, err := s.client.Query(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed; %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, resultFromPayload(p.Payload, p.Score))
	}
	return results, nil
}

// DeleteByProject removes every vector belonging to a project. In
// per-project mode the whole collection is dropped; in shared mode the
// project's points are deleted by payload filter.
func (s *Store) DeleteByProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}

	collection := s.collectionFor(projectID)
	if s.cfg.PerProjectCollections {
		exists, err := s.client.CollectionExists(ctx, collection)
		if err != nil {
			return fmt.Errorf("failed to check collection %s; %w", collection, err)
		}
		if exists {
			if err := s.client.DeleteCollection(ctx, collection); err != nil {
				return fmt.Errorf("failed to drop collection %s; %w", collection, err)
			}
		}
		s.mu.Lock()
		delete(s.ensured, collection)
		s.mu.Unlock()
		s.logger.Debug("dropped project collection", "collection", collection)
		return nil
	}

	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: projectFilter(projectID),
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to delete vectors for project %s; %w", projectID, err)
	}
	s.logger.Debug("deleted project vectors", "project_id", projectID)
	return nil
}

// Delete removes the vector for a single chunk.
func (s *Store) Delete(ctx context.Context, projectID, chunkHash string) error {
	collection := s.collectionFor(projectID)
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewID(PointID(chunkHash))},
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to delete chunk %s; %w", chunkHash, err)
	}
	return nil
}

// Count returns the number of vectors stored for a project, or for the
// whole shared collection when projectID is empty in shared mode.
func (s *Store) Count(ctx context.Context, projectID string) (uint64, error) {
	if s.cfg.PerProjectCollections && projectID == "" {
		return 0, fmt.Errorf("project id is required with per-project collections")
	}

	collection := s.collectionFor(projectID)
	if s.cfg.PerProjectCollections {
		exists, err := s.client.CollectionExists(ctx, collection)
		if err != nil {
			return 0, fmt.Errorf("failed to check collection %s; %w", collection, err)
		}
		if !exists {
			return 0, nil
		}
	}

	request := &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          ptr(true),
	}
	if !s.cfg.PerProjectCollections && projectID != "" {
		request.Filter = projectFilter(projectID)
	}

	n, err := s.client.Count(ctx, request)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors; %w", err)
	}
	return n, nil
}

// ensureCollection creates the collection if it does not exist yet.
// Results are cached so repeated batches skip the existence check.
func (s *Store) ensureCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	done := s.ensured[collection]
	s.mu.Unlock()
	if done {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s; %w", collection, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.cfg.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s; %w", collection, err)
		}
		s.logger.Info("created vector collection",
			"collection", collection,
			"dimension", s.cfg.Dimension)
	}

	s.mu.Lock()
	s.ensured[collection] = true
	s.mu.Unlock()
	return nil
}

// collectionFor maps a project to its backing collection name.
func (s *Store) collectionFor(projectID string) string {
	if s.cfg.PerProjectCollections {
		return fmt.Sprintf("%s_%s_vectors", s.cfg.CollectionPrefix, projectID)
	}
	return s.cfg.CollectionPrefix + "_vectors"
}

// PointID derives the deterministic Qdrant point id for a chunk hash.
// The id is a UUID formed from the first 16 bytes of SHA-256 over the
// hash, so re-indexing the same chunk overwrites its point in place.
func PointID(chunkHash string) string {
	sum := sha256.Sum256([]byte(chunkHash))
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		// Unreachable: sum[:16] is always exactly 16 bytes.
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkHash)).String()
	}
	return id.String()
}

// NormalizeVector returns a unit-length copy of v. The second return is
// false when v is empty or has zero norm.
func NormalizeVector(v []float32) ([]float32, bool) {
	if len(v) == 0 {
		return nil, false
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, false
	}
	norm := math.Sqrt(sum)
	unit := make([]float32, len(v))
	for i, x := range v {
		unit[i] = float32(float64(x) / norm)
	}
	return unit, true
}

// chunkPayload builds the wire payload stored alongside each vector.
func chunkPayload(ch chunker.Chunk) map[string]any {
	return map[string]any{
		"project_id":    ch.ProjectID,
		"file_path":     ch.FilePath,
		"start_line":    ch.StartLine,
		"end_line":      ch.EndLine,
		"language":      ch.Language,
		"semantic_type": ch.SemanticType,
		"semantic_name": ch.SemanticName,
		"chunk_index":   ch.ChunkIndex,
		"total_chunks":  ch.TotalChunks,
		"chunk_hash":    ch.ChunkHash,
	}
}

// resultFromPayload converts a scored point payload back into a
// SearchResult.
func resultFromPayload(payload map[string]*qdrant.Value, score float32) SearchResult {
	return SearchResult{
		ProjectID:    payload["project_id"].GetStringValue(),
		FilePath:     payload["file_path"].GetStringValue(),
		StartLine:    int(payload["start_line"].GetIntegerValue()),
		EndLine:      int(payload["end_line"].GetIntegerValue()),
		Language:     payload["language"].GetStringValue(),
		SemanticType: payload["semantic_type"].GetStringValue(),
		SemanticName: payload["semantic_name"].GetStringValue(),
		ChunkHash:    payload["chunk_hash"].GetStringValue(),
		Score:        score,
	}
}

// projectFilter matches points carrying the given project_id payload.
func projectFilter(projectID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "project_id",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: projectID},
						},
					},
				},
			},
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}
