package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// MockEmbedder produces deterministic pseudo-embeddings derived from a
// hash of the text. No backend, no network; used by tests and by the
// engine's self-checks.
type MockEmbedder struct {
	dims   int
	Calls  int
	closed bool
}

var _ Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder of the given dimensionality.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 8
	}
	return &MockEmbedder{dims: dims}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.Calls++
	sum := sha256.Sum256([]byte(text))

	vec := make([]float32, m.dims)
	var norm float64
	for i := range vec {
		seed := binary.LittleEndian.Uint32(sum[(i*4)%28:]) + uint32(i)*2654435761
		v := float32(seed%1000)/500 - 1
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (m *MockEmbedder) Dimensions() int { return m.dims }

func (m *MockEmbedder) ModelName() string { return "mock" }

func (m *MockEmbedder) Close() error {
	m.closed = true
	return nil
}
