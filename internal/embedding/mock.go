package embedding

import (
	"context"
	"hash/fnv"
)

// MockDenseProvider is a deterministic, network-free DenseProvider for
// tests: each text hashes to a fixed-dimension vector, so repeated calls
// on the same input are reproducible.
type MockDenseProvider struct {
	Dims    int
	name    string
	model   string
	healthy bool
}

// NewMockDenseProvider builds a MockDenseProvider of the given dimension.
func NewMockDenseProvider(dims int) *MockDenseProvider {
	if dims <= 0 {
		dims = 8
	}
	return &MockDenseProvider{Dims: dims, name: "mock", model: "mock-dense-v1", healthy: true}
}

func (m *MockDenseProvider) Embed(_ context.Context, texts []string, _ Mode) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, m.Dims)
	}
	return out, nil
}

func (m *MockDenseProvider) Dimensions() int { return m.Dims }
func (m *MockDenseProvider) Name() string    { return m.name }
func (m *MockDenseProvider) Model() string   { return m.model }
func (m *MockDenseProvider) Healthy() bool   { return m.healthy }

// SetHealthy lets tests simulate an auth failure taking the provider out
// of rotation (§4.9 "healthy" precondition).
func (m *MockDenseProvider) SetHealthy(h bool) { m.healthy = h }

// MockSparseProvider is the sparse-embedding counterpart of
// MockDenseProvider: deterministic term-weight maps derived from a
// whitespace split of the input text, standing in for a real BM25-class
// provider in tests.
type MockSparseProvider struct {
	name    string
	healthy bool
}

func NewMockSparseProvider() *MockSparseProvider {
	return &MockSparseProvider{name: "mock-sparse", healthy: true}
}

func (m *MockSparseProvider) Embed(_ context.Context, texts []string, _ Mode) ([]SparseVector, error) {
	out := make([]SparseVector, len(texts))
	for i, t := range texts {
		out[i] = sparseHash(t)
	}
	return out, nil
}

func (m *MockSparseProvider) Name() string  { return m.name }
func (m *MockSparseProvider) Healthy() bool { return m.healthy }

func (m *MockSparseProvider) SetHealthy(h bool) { m.healthy = h }

func hashVector(text string, dims int) Vector {
	v := make(Vector, dims)
	h := fnv.New32a()
	for i := 0; i < dims; i++ {
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		sum := h.Sum32()
		v[i] = float32(sum%1000) / 1000.0
	}
	return v
}

func sparseHash(text string) SparseVector {
	out := make(SparseVector)
	word := make([]byte, 0, 16)
	flush := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New32a()
		h.Write(word)
		out[h.Sum32()] += 1.0
		word = word[:0]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\t' || c == '\n' {
			flush()
			continue
		}
		word = append(word, c)
	}
	flush()
	return out
}
