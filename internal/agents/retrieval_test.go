package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/archlens/archlens/internal/retrieval"
)

// stubRetriever returns canned similarity matches.
type stubRetriever struct {
	chunks []retrieval.Chunk
	err    error
	query  string
}

func (r *stubRetriever) Retrieve(ctx context.Context, projectID, query string, topK int) ([]retrieval.Chunk, error) {
	r.query = query
	if r.err != nil {
		return nil, r.err
	}
	return r.chunks, nil
}

func TestRetrievedContext(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/auth.go": "package auth\n\nfunc Login() {}\n\nfunc Logout() {}\n",
	})

	r := &stubRetriever{chunks: []retrieval.Chunk{
		{FilePath: "src/auth.go", StartLine: 3, EndLine: 5, SemanticType: "function", SemanticName: "Login"},
	}}

	section := retrievedContext(context.Background(), r, testLogger(), "p1", dir, "authentication")
	if section == "" {
		t.Fatal("expected a non-empty context section")
	}
	if !strings.Contains(section, "File: src/auth.go (lines 3-5, function Login)") {
		t.Errorf("section missing chunk header:\n%s", section)
	}
	if !strings.Contains(section, "func Login() {}") {
		t.Errorf("section missing the snippet text:\n%s", section)
	}
	if r.query != "authentication" {
		t.Errorf("query = %q, want authentication", r.query)
	}
}

func TestRetrievedContextDegrades(t *testing.T) {
	dir := t.TempDir()

	if got := retrievedContext(context.Background(), nil, testLogger(), "p1", dir, "q"); got != "" {
		t.Errorf("nil retriever should yield empty context, got %q", got)
	}

	failing := &stubRetriever{err: errors.New("collection missing")}
	if got := retrievedContext(context.Background(), failing, testLogger(), "p1", dir, "q"); got != "" {
		t.Errorf("failed retrieval should yield empty context, got %q", got)
	}

	empty := &stubRetriever{}
	if got := retrievedContext(context.Background(), empty, testLogger(), "p1", dir, "q"); got != "" {
		t.Errorf("no matches should yield empty context, got %q", got)
	}

	// A match pointing at a missing file leaves nothing to show.
	missing := &stubRetriever{chunks: []retrieval.Chunk{
		{FilePath: "gone.go", StartLine: 1, EndLine: 2},
	}}
	if got := retrievedContext(context.Background(), missing, testLogger(), "p1", dir, "q"); got != "" {
		t.Errorf("unreadable snippets should yield empty context, got %q", got)
	}
}

func TestReadLineRange(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"f.txt": "one\ntwo\nthree\nfour\n",
	})
	path := dir + "/f.txt"

	got, ok := readLineRange(path, 2, 3)
	if !ok || got != "two\nthree" {
		t.Errorf("lines 2-3 = %q (ok=%v), want two\\nthree", got, ok)
	}

	// Out-of-range bounds clamp to the file.
	got, ok = readLineRange(path, 0, 100)
	if !ok || !strings.HasPrefix(got, "one") {
		t.Errorf("clamped range = %q (ok=%v)", got, ok)
	}

	if _, ok := readLineRange(path, 10, 5); ok {
		t.Error("inverted range should not be readable")
	}
	if _, ok := readLineRange(dir+"/missing.txt", 1, 2); ok {
		t.Error("missing file should not be readable")
	}
}

func TestCodeQualityClusterPromptIncludesRetrievedContext(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/calc.py": "def add(a, b):\n    return a + b\n",
	})

	provider := &stubProvider{available: true, response: "[]"}
	r := &stubRetriever{chunks: []retrieval.Chunk{
		{FilePath: "src/calc.py", StartLine: 1, EndLine: 2, SemanticType: "function", SemanticName: "add"},
	}}
	agent := NewCodeQualityAgent(provider, DefaultCodeQualityConfig(), testLogger(),
		WithCodeQualityRetriever(r))

	if _, err := agent.Analyze(context.Background(), "p1", dir); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	provider.mu.Lock()
	defer provider.mu.Unlock()
	found := false
	for _, prompt := range provider.prompts {
		if strings.Contains(prompt, "Related code from this project, retrieved by similarity:") {
			found = true
			break
		}
	}
	if !found {
		t.Error("no cluster prompt carried the retrieved context section")
	}
}

func TestSecurityTargetedPassIncludesRetrievedContext(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/auth.py": "def login(user):\n    return user\n",
	})

	provider := &stubProvider{available: true, response: "[]"}
	r := &stubRetriever{chunks: []retrieval.Chunk{
		{FilePath: "src/auth.py", StartLine: 1, EndLine: 2, SemanticType: "function", SemanticName: "login"},
	}}
	agent := NewSecurityAgent(provider, testLogger(), WithSecurityRetriever(r))

	if _, err := agent.Analyze(context.Background(), "p1", dir); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.prompts) == 0 {
		t.Fatal("targeted pass did not run")
	}
	if !strings.Contains(provider.prompts[0], "Related code from this project, retrieved by similarity:") {
		t.Errorf("targeted prompt missing retrieved context:\n%s", provider.prompts[0])
	}
	if !strings.Contains(r.query, "src/auth.py") {
		t.Errorf("retrieval query %q should name the targeted file", r.query)
	}
}
