package embedding

import (
	"context"
	"sync/atomic"
)

// mockProvider returns fixed-dimension vectors and records call counts.
// fail lets tests inject an error for the first N calls.
type mockProvider struct {
	dims  int
	calls atomic.Int64
	fail  func(call int64) error

	batchSizes []int
}

func (m *mockProvider) Name() string    { return "mock" }
func (m *mockProvider) Available() bool { return true }
func (m *mockProvider) Dimensions() int { return m.dims }

func (m *mockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	call := m.calls.Add(1)
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.fail != nil {
		if err := m.fail(call); err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.dims)
		vec[0] = float32(i + 1)
		out[i] = vec
	}
	return out, nil
}
