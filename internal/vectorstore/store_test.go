package vectorstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"sync"
	"testing"

	"github.com/qdrant/go-client/qdrant"

	"github.com/archlens/archlens/internal/apperr"
	"github.com/archlens/archlens/internal/chunker"
)

// fakeQdrant implements qdrantClient in memory, recording enough of
// each request for assertions.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]bool
	points      map[string]map[string]*qdrant.PointStruct

	staticCount *uint64
	corruptGet  bool
	emptyGet    bool

	lastQuery   *qdrant.QueryPoints
	lastDelete  *qdrant.DeletePoints
	queryResult []*qdrant.ScoredPoint

	dropped []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		collections: make(map[string]bool),
		points:      make(map[string]map[string]*qdrant.PointStruct),
	}
}

func (f *fakeQdrant) CollectionExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections[name], nil
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[req.CollectionName] = true
	return nil
}

func (f *fakeQdrant) DeleteCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	delete(f.points, name)
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll := f.points[req.CollectionName]
	if coll == nil {
		coll = make(map[string]*qdrant.PointStruct)
		f.points[req.CollectionName] = coll
	}
	for _, p := range req.Points {
		coll[p.Id.GetUuid()] = p
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Get(_ context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emptyGet {
		return nil, nil
	}
	var out []*qdrant.RetrievedPoint
	for _, id := range req.Ids {
		p, ok := f.points[req.CollectionName][id.GetUuid()]
		if !ok {
			continue
		}
		payload := p.Payload
		if f.corruptGet {
			payload = qdrant.NewValueMap(map[string]any{
				"chunk_index":  7,
				"total_chunks": 2,
			})
		}
		out = append(out, &qdrant.RetrievedPoint{Id: p.Id, Payload: payload})
	}
	return out, nil
}

func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = req
	return f.queryResult, nil
}

func (f *fakeQdrant) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDelete = req
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Count(_ context.Context, req *qdrant.CountPoints) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.staticCount != nil {
		return *f.staticCount, nil
	}
	return uint64(len(f.points[req.CollectionName])), nil
}

func (f *fakeQdrant) Close() error { return nil }

func newTestStore(cfg Config, fake *fakeQdrant) *Store {
	return &Store{
		client:  fake,
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ensured: make(map[string]bool),
	}
}

func testConfig(perProject bool) Config {
	return Config{
		Host:                  "localhost",
		Port:                  6334,
		CollectionPrefix:      "archlens",
		PerProjectCollections: perProject,
		Dimension:             3,
		FailOnIndexingFailure: true,
	}
}

func testChunk(project, path string, index, total int) chunker.Chunk {
	text := fmt.Sprintf("func handler%d() {}", index)
	start := 1 + index*10
	end := start + 8
	return chunker.Chunk{
		ProjectID:    project,
		FilePath:     path,
		StartLine:    start,
		EndLine:      end,
		Language:     "go",
		SemanticType: chunker.SemanticMethod,
		SemanticName: fmt.Sprintf("handler%d", index),
		ChunkIndex:   index,
		TotalChunks:  total,
		TokenCount:   4,
		Text:         text,
		TextHash:     chunker.HashText(text),
		ChunkHash:    chunker.ComputeChunkHash(project, path, start, end, text),
	}
}

func TestIndexBatchPerProject(t *testing.T) {
	fake := newFakeQdrant()
	store := newTestStore(testConfig(true), fake)

	chunks := []chunker.Chunk{
		testChunk("p1", "main.go", 0, 2),
		testChunk("p1", "main.go", 1, 2),
	}
	vectors := [][]float32{{3, 0, 0}, {0, 4, 0}}

	if err := store.IndexBatch(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("IndexBatch() error = %v", err)
	}

	coll := "archlens_p1_vectors"
	if !fake.collections[coll] {
		t.Fatalf("collection %s was not created", coll)
	}
	if got := len(fake.points[coll]); got != 2 {
		t.Fatalf("stored points = %d, want 2", got)
	}

	point := fake.points[coll][PointID(chunks[0].ChunkHash)]
	if point == nil {
		t.Fatal("point for first chunk not found by derived id")
	}

	data := point.Vectors.GetVector().GetData()
	var norm float64
	for _, x := range data {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("stored vector norm^2 = %v, want 1", norm)
	}

	payload := point.Payload
	if got := payload["file_path"].GetStringValue(); got != "main.go" {
		t.Errorf("payload file_path = %q, want %q", got, "main.go")
	}
	if got := payload["project_id"].GetStringValue(); got != "p1" {
		t.Errorf("payload project_id = %q, want %q", got, "p1")
	}
	if got := payload["total_chunks"].GetIntegerValue(); got != 2 {
		t.Errorf("payload total_chunks = %d, want 2", got)
	}
	if got := payload["semantic_type"].GetStringValue(); got != "method" {
		t.Errorf("payload semantic_type = %q, want %q", got, "method")
	}
}

func TestIndexBatchRejectsDimensionMismatch(t *testing.T) {
	fake := newFakeQdrant()
	store := newTestStore(testConfig(true), fake)

	chunks := []chunker.Chunk{testChunk("p1", "a.go", 0, 1)}
	err := store.IndexBatch(context.Background(), chunks, [][]float32{{1, 2}})
	if err == nil {
		t.Fatal("IndexBatch() with wrong dimension succeeded, want error")
	}
	if len(fake.points) != 0 {
		t.Errorf("points stored despite dimension error: %d collections", len(fake.points))
	}
}

func TestIndexBatchRejectsZeroVector(t *testing.T) {
	fake := newFakeQdrant()
	store := newTestStore(testConfig(true), fake)

	chunks := []chunker.Chunk{testChunk("p1", "a.go", 0, 1)}
	err := store.IndexBatch(context.Background(), chunks, [][]float32{{0, 0, 0}})
	if err == nil {
		t.Fatal("IndexBatch() with zero vector succeeded, want error")
	}
}

func TestIndexBatchRejectsMixedProjects(t *testing.T) {
	fake := newFakeQdrant()
	store := newTestStore(testConfig(true), fake)

	chunks := []chunker.Chunk{
		testChunk("p1", "a.go", 0, 1),
		testChunk("p2", "b.go", 0, 1),
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}
	if err := store.IndexBatch(context.Background(), chunks, vectors); err == nil {
		t.Fatal("IndexBatch() with mixed projects succeeded, want error")
	}
}

func TestIndexBatchVerificationCorruptPayload(t *testing.T) {
	fake := newFakeQdrant()
	fake.corruptGet = true
	store := newTestStore(testConfig(true), fake)

	chunks := []chunker.Chunk{testChunk("p1", "a.go", 0, 1)}
	err := store.IndexBatch(context.Background(), chunks, [][]float32{{1, 0, 0}})
	if !apperr.HasCode(err, apperr.CodeVectorVerification) {
		t.Fatalf("IndexBatch() error = %v, want code %s", err, apperr.CodeVectorVerification)
	}
}

func TestIndexBatchVerificationMissingPoint(t *testing.T) {
	fake := newFakeQdrant()
	fake.emptyGet = true
	store := newTestStore(testConfig(true), fake)

	chunks := []chunker.Chunk{testChunk("p1", "a.go", 0, 1)}
	err := store.IndexBatch(context.Background(), chunks, [][]float32{{1, 0, 0}})
	if !apperr.HasCode(err, apperr.CodeVectorVerification) {
		t.Fatalf("IndexBatch() error = %v, want code %s", err, apperr.CodeVectorVerification)
	}
}

func TestIndexBatchCountMustGrow(t *testing.T) {
	fake := newFakeQdrant()
	frozen := uint64(5)
	fake.staticCount = &frozen
	store := newTestStore(testConfig(true), fake)

	chunks := []chunker.Chunk{testChunk("p1", "a.go", 0, 1)}
	err := store.IndexBatch(context.Background(), chunks, [][]float32{{1, 0, 0}})
	if !apperr.HasCode(err, apperr.CodeVectorVerification) {
		t.Fatalf("IndexBatch() error = %v, want code %s", err, apperr.CodeVectorVerification)
	}
}

func TestQuerySharedModeFiltersByProject(t *testing.T) {
	fake := newFakeQdrant()
	fake.queryResult = []*qdrant.ScoredPoint{
		{
			Score: 0.93,
			Payload: qdrant.NewValueMap(map[string]any{
				"project_id":    "p1",
				"file_path":     "svc/handler.go",
				"start_line":    10,
				"end_line":      42,
				"language":      "go",
				"semantic_type": "method",
				"semantic_name": "Handle",
				"chunk_hash":    "abc123",
			}),
		},
	}
	store := newTestStore(testConfig(false), fake)

	results, err := store.Query(context.Background(), []float32{1, 0, 0}, 5, "p1")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}

	r := results[0]
	if r.FilePath != "svc/handler.go" || r.StartLine != 10 || r.EndLine != 42 {
		t.Errorf("result = %+v, want svc/handler.go 10..42", r)
	}
	if r.Score != 0.93 {
		t.Errorf("score = %v, want 0.93", r.Score)
	}

	req := fake.lastQuery
	if req.CollectionName != "archlens_vectors" {
		t.Errorf("collection = %q, want archlens_vectors", req.CollectionName)
	}
	if req.Filter == nil || len(req.Filter.Must) != 1 {
		t.Fatalf("shared-mode query filter = %+v, want one must condition", req.Filter)
	}
	field := req.Filter.Must[0].GetField()
	if field.Key != "project_id" || field.Match.GetKeyword() != "p1" {
		t.Errorf("filter condition = %s=%q, want project_id=p1", field.Key, field.Match.GetKeyword())
	}
}

func TestQueryPerProjectRequiresProjectID(t *testing.T) {
	store := newTestStore(testConfig(true), newFakeQdrant())
	if _, err := store.Query(context.Background(), []float32{1, 0, 0}, 5, ""); err == nil {
		t.Fatal("Query() without project in per-project mode succeeded, want error")
	}
}

func TestQueryPerProjectOmitsFilter(t *testing.T) {
	fake := newFakeQdrant()
	store := newTestStore(testConfig(true), fake)

	if _, err := store.Query(context.Background(), []float32{0, 2, 0}, 0, "p1"); err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	req := fake.lastQuery
	if req.CollectionName != "archlens_p1_vectors" {
		t.Errorf("collection = %q, want archlens_p1_vectors", req.CollectionName)
	}
	if req.Filter != nil {
		t.Errorf("per-project query carries filter %+v, want none", req.Filter)
	}
	if req.Limit == nil || *req.Limit != 10 {
		t.Errorf("limit = %v, want default 10", req.Limit)
	}
}

func TestDeleteByProjectPerProjectDropsCollection(t *testing.T) {
	fake := newFakeQdrant()
	fake.collections["archlens_p1_vectors"] = true
	store := newTestStore(testConfig(true), fake)
	store.ensured["archlens_p1_vectors"] = true

	if err := store.DeleteByProject(context.Background(), "p1"); err != nil {
		t.Fatalf("DeleteByProject() error = %v", err)
	}
	if len(fake.dropped) != 1 || fake.dropped[0] != "archlens_p1_vectors" {
		t.Fatalf("dropped = %v, want [archlens_p1_vectors]", fake.dropped)
	}
	if store.ensured["archlens_p1_vectors"] {
		t.Error("ensured cache still marks dropped collection")
	}
}

func TestDeleteByProjectSharedUsesFilter(t *testing.T) {
	fake := newFakeQdrant()
	store := newTestStore(testConfig(false), fake)

	if err := store.DeleteByProject(context.Background(), "p2"); err != nil {
		t.Fatalf("DeleteByProject() error = %v", err)
	}
	if len(fake.dropped) != 0 {
		t.Fatalf("shared mode dropped collections %v, want none", fake.dropped)
	}

	sel := fake.lastDelete.Points.GetFilter()
	if sel == nil || len(sel.Must) != 1 {
		t.Fatalf("delete selector = %+v, want project filter", fake.lastDelete.Points)
	}
	field := sel.Must[0].GetField()
	if field.Key != "project_id" || field.Match.GetKeyword() != "p2" {
		t.Errorf("delete filter = %s=%q, want project_id=p2", field.Key, field.Match.GetKeyword())
	}
}

func TestDeleteSingleChunk(t *testing.T) {
	fake := newFakeQdrant()
	store := newTestStore(testConfig(true), fake)

	if err := store.Delete(context.Background(), "p1", "deadbeef00112233"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	ids := fake.lastDelete.Points.GetPoints().GetIds()
	if len(ids) != 1 || ids[0].GetUuid() != PointID("deadbeef00112233") {
		t.Errorf("delete ids = %v, want derived point id", ids)
	}
}

func TestCountMissingPerProjectCollection(t *testing.T) {
	store := newTestStore(testConfig(true), newFakeQdrant())
	n, err := store.Count(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0 for missing collection", n)
	}
}

func TestCountPerProjectRequiresProjectID(t *testing.T) {
	store := newTestStore(testConfig(true), newFakeQdrant())
	if _, err := store.Count(context.Background(), ""); err == nil {
		t.Fatal("Count() without project in per-project mode succeeded, want error")
	}
}

func TestPointIDDeterministic(t *testing.T) {
	uuidPattern := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	a := PointID("feedface01234567")
	b := PointID("feedface01234567")
	c := PointID("feedface01234568")

	if a != b {
		t.Errorf("same hash produced different ids: %s / %s", a, b)
	}
	if a == c {
		t.Errorf("different hashes produced same id: %s", a)
	}
	if !uuidPattern.MatchString(a) {
		t.Errorf("point id %q is not a UUID", a)
	}
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name   string
		in     []float32
		wantOK bool
	}{
		{"unit axis", []float32{0, 5, 0}, true},
		{"mixed", []float32{1, 2, 2}, true},
		{"zero", []float32{0, 0, 0}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, ok := NormalizeVector(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("NormalizeVector(%v) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			var norm float64
			for _, x := range unit {
				norm += float64(x) * float64(x)
			}
			if math.Abs(norm-1.0) > 1e-6 {
				t.Errorf("norm^2 = %v, want 1", norm)
			}
		})
	}
}

func TestChunkPayloadKeys(t *testing.T) {
	payload := chunkPayload(testChunk("p1", "x.go", 1, 3))

	want := []string{
		"project_id", "file_path", "start_line", "end_line", "language",
		"semantic_type", "semantic_name", "chunk_index", "total_chunks", "chunk_hash",
	}
	if len(payload) != len(want) {
		t.Fatalf("payload has %d keys, want %d", len(payload), len(want))
	}
	for _, key := range want {
		if _, ok := payload[key]; !ok {
			t.Errorf("payload missing key %q", key)
		}
	}
}
