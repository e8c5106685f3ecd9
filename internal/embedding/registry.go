package embedding

import (
	"sync"

	"github.com/google/uuid"

	"github.com/codeweaver/core/internal/chunk"
)

// Registry is the process-wide embedding store keyed by chunk.BatchKey
// (§3, §9). Chunks never carry their embedding payload directly; they
// carry a BatchKeys lookup, and callers resolve the vector from here at
// upsert time. This is what lets Chunk stay a small, JSON-serializable
// value even though embeddings can be thousands of floats.
type Registry struct {
	mu     sync.RWMutex
	dense  map[chunk.BatchKey]Vector
	sparse map[chunk.BatchKey]SparseVector
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		dense:  make(map[chunk.BatchKey]Vector),
		sparse: make(map[chunk.BatchKey]SparseVector),
	}
}

// NewBatchID generates a fresh batch identifier (google/uuid, as the
// teacher and Aman-CERP-amanmcp both do for request-scoped IDs).
func NewBatchID() string {
	return uuid.NewString()
}

// PutDense stores a dense vector under key.
func (r *Registry) PutDense(key chunk.BatchKey, v Vector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dense[key] = v
}

// PutSparse stores a sparse vector under key.
func (r *Registry) PutSparse(key chunk.BatchKey, v SparseVector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sparse[key] = v
}

// Dense resolves a dense vector by key.
func (r *Registry) Dense(key chunk.BatchKey) (Vector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.dense[key]
	return v, ok
}

// Sparse resolves a sparse vector by key.
func (r *Registry) Sparse(key chunk.BatchKey) (SparseVector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.sparse[key]
	return v, ok
}

// Reset clears the registry. Required at process-test boundaries (§5, §9),
// matching DedupStore.Reset and Statistics.Reset.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dense = make(map[chunk.BatchKey]Vector)
	r.sparse = make(map[chunk.BatchKey]SparseVector)
}

// Len reports the number of distinct dense and sparse entries held.
func (r *Registry) Len() (denseCount, sparseCount int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dense), len(r.sparse)
}
