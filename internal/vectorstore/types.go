// Package vectorstore implements the VectorStore abstraction (§4.5): a
// shared contract over dense/sparse/hybrid search, upsert, and delete
// operations, a circuit breaker decorator common to any concrete
// implementation, the primary (HNSW + bleve) store under
// internal/vectorstore/primary, and the in-memory backup store under
// internal/vectorstore/memory.
package vectorstore

import "context"

// VectorConfig describes one named vector (dense or sparse) a collection
// supports (§4.5 "ensure_collection").
type VectorConfig struct {
	Dimension int
	Metric    string // "cos" or "l2" for dense; ignored for sparse
}

// Point is one upserted record: a chunk id, its dense and/or sparse
// vector, and an opaque JSON-able payload (the chunk plus any metadata
// the caller wants filterable).
type Point struct {
	ID      string
	Dense   []float32
	Sparse  map[uint32]float32
	Payload map[string]any
}

// SearchQuery carries whichever inputs the caller's strategy requires
// (§4.9): Dense drives the dense arm, Keyword drives the sparse arm, and
// a hybrid query sends both so the store fuses the two rankings. The
// primary store's sparse arm scores Keyword with bleve; it does not score
// with the Sparse term weights.
type SearchQuery struct {
	Dense          []float32
	Sparse         map[uint32]float32
	Limit          int
	FocusLanguages []string
	// Keyword is the query text, set for HYBRID_SEARCH, SPARSE_ONLY and
	// KEYWORD_FALLBACK (§4.9); the primary store runs it as a bleve
	// full-text query.
	Keyword string
}

// SearchResult is one scored hit; Search returns hits ordered by Score DESC.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// VectorStore is the full contract of §4.5's table.
type VectorStore interface {
	Initialize(ctx context.Context) error
	EnsureCollection(ctx context.Context, name string, dense, sparse *VectorConfig) error
	Upsert(ctx context.Context, collection string, points []Point) error
	DeleteByFile(ctx context.Context, collection, relPath string) (int, error)
	DeleteByID(ctx context.Context, collection string, ids []string) (int, error)
	DeleteByName(ctx context.Context, collection string, names []string) (int, error)
	Search(ctx context.Context, collection string, q SearchQuery) ([]SearchResult, error)
	ListCollections(ctx context.Context) ([]string, error)
	// Scroll returns every point in collection in one slice, for
	// reconciliation (§4.7.2) and backup sync (§4.6.1). pageSize is
	// accepted, but neither implementation splits the result into pages.
	Scroll(ctx context.Context, collection string, pageSize int) ([]Point, error)
}
