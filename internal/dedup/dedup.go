// Package dedup implements the content-addressed DedupStore (§4.3): a
// process-wide, size-bounded cache mapping content hash to chunk ID, used
// to skip re-embedding of unchanged text.
//
// Grounded on the teacher's internal/cache/eviction.go LRU/age-bounded
// eviction policy, generalized from branch databases to a simple
// hash->ID cache, and backed by hashicorp/golang-lru/v2 (as used by the
// amanmcp sibling example) rather than the teacher's hand-rolled
// candidate-sort eviction, since the dedup store's access pattern (pure
// get/put, no age/size hybrid policy) is exactly golang-lru's niche.
package dedup

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeweaver/core/internal/chunk"
	"github.com/codeweaver/core/internal/stats"
)

// DefaultCapacity bounds the number of distinct content hashes tracked.
// The spec expresses the bound in bytes (256 KiB of hashes); since each
// hash key is a fixed-size hex string, that translates to a fixed entry
// count ceiling, which is what golang-lru's constructor takes directly.
const DefaultCapacity = 256 * 1024 / 64 // 64 bytes/entry (hex blake2b-256 key)

// Store is the process-wide DedupStore. It must be explicitly resettable
// at process-test boundaries (§4.3, §5).
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache[chunk.ContentHash, entry]
	stats *stats.Statistics
}

type entry struct {
	chunkerType chunk.ChunkerKind
	chunkID     chunk.ID
}

// New creates a DedupStore bounded to capacity entries (0 means
// DefaultCapacity).
func New(capacity int, st *stats.Statistics) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, _ := lru.New[chunk.ContentHash, entry](capacity) // constant capacity, err only on capacity<=0
	return &Store{cache: c, stats: st}
}

// InsertOrGet serializes concurrent insertion of the same hash: the first
// caller to insert a given (hash, chunkerType) pair wins, later callers
// with that pair report a duplicate and receive the winning chunk ID
// (§4.3). The store keeps one entry per hash: inserting a hash under a
// different chunkerType replaces the earlier entry, after which the
// earlier pair is no longer reported as a duplicate.
func (s *Store) InsertOrGet(c chunk.Chunk) (winner chunk.ID, isDuplicate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cache.Get(c.ContentHash); ok && existing.chunkerType == c.ChunkerType {
		s.stats.Chunking.DedupSkipped.Add(1)
		return existing.chunkID, true
	}

	s.cache.Add(c.ContentHash, entry{chunkerType: c.ChunkerType, chunkID: c.ChunkID})
	return c.ChunkID, false
}

// Lookup reports whether (hash, chunkerType) has already been seen,
// without inserting (§4.2 step 5: "if already present ... skip emission").
func (s *Store) Lookup(hash chunk.ContentHash, chunkerType chunk.ChunkerKind) (chunk.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cache.Get(hash)
	if !ok || existing.chunkerType != chunkerType {
		return chunk.ID{}, false
	}
	return existing.chunkID, true
}

// Reset clears the store. Required for process-test boundaries (§5, §9).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

// Len reports the number of distinct content hashes currently tracked.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
