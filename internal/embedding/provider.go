// Package embedding implements the EmbeddingProvider abstraction (§4.4):
// dense and sparse embedding providers, a process-wide embedding
// registry keyed by chunk.BatchKey (§3, §9 — this is what breaks the
// Chunk<->Embedding circular reference), and bounded-concurrency batch
// issuance with retry/backoff for retriable provider errors.
//
// Grounded on the teacher's internal/embed/provider.go Provider
// interface, generalized from the teacher's single query/passage mode
// split into the spec's dense/sparse provider pair.
package embedding

import "context"

// Vector is a dense embedding.
type Vector []float32

// SparseVector is a sparse (term-id -> weight) embedding, the
// representation BM25-class providers and the sparse vector-store arm
// both use.
type SparseVector map[uint32]float32

// Mode mirrors the teacher's EmbedMode: queries and passages are often
// embedded asymmetrically by the same provider.
type Mode string

const (
	ModeQuery   Mode = "query"
	ModePassage Mode = "passage"
)

// DenseProvider embeds text into fixed-dimension dense vectors.
type DenseProvider interface {
	Embed(ctx context.Context, texts []string, mode Mode) ([]Vector, error)
	Dimensions() int
	Name() string
	Model() string
	// Healthy reports whether this provider is usable for strategy
	// selection (§4.9): it has not returned an auth error in this
	// process. Circuit-breaker state is tracked separately by whatever
	// guards the call (the vector store's breaker guards its own calls;
	// an embedding provider has no breaker of its own in this spec).
	Healthy() bool
}

// SparseProvider embeds text into sparse term-weight vectors (e.g.
// BM25-class scoring).
type SparseProvider interface {
	Embed(ctx context.Context, texts []string, mode Mode) ([]SparseVector, error)
	Name() string
	Healthy() bool
}
