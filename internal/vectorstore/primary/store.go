// Package primary implements the primary VectorStore (§4.5): an HNSW
// dense arm (github.com/coder/hnsw) and a bleve/v2 sparse arm behind one
// VectorStore interface, with both arms guarded by the same circuit
// breaker at the call site (see vectorstore.Guarded).
//
// Grounded on Aman-CERP-amanmcp's internal/store/hnsw.go (graph
// construction, ID-mapping, lazy deletion to avoid a known coder/hnsw bug
// when deleting the last node) and internal/store/bm25.go (bleve v2 index
// construction and match-query search), generalized from those files'
// single-collection assumption into a per-collection map so one Store can
// back multiple named collections (§4.5 "ensure_collection(name, ...)").
package primary

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/coder/hnsw"

	"github.com/codeweaver/core/internal/chunk"
	"github.com/codeweaver/core/internal/vectorstore"
)

// Store is the primary VectorStore implementation.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	mu      sync.RWMutex
	dense   *hnsw.Graph[uint64]
	bleve   bleve.Index
	denseCfg *vectorstore.VectorConfig
	sparseCfg *vectorstore.VectorConfig

	idMap   map[string]uint64 // chunk id -> hnsw key
	keyMap  map[uint64]string // hnsw key -> chunk id
	nextKey uint64
	payload map[string]map[string]any // chunk id -> payload
	// denseVecs mirrors each live point's dense vector outside the graph,
	// since coder/hnsw exposes no by-key vector lookup; used by Scroll
	// (§4.7.2 reconciliation, §4.6.1 backup sync).
	denseVecs map[string][]float32
	// sparseVecs mirrors each live point's raw sparse vector: bleve only
	// indexes the chunk's text for its own BM25 ranking, so the
	// provider's term-weight map has to be kept separately for Scroll to
	// hand back to reconciliation and backup sync.
	sparseVecs map[string]map[uint32]float32
}

type bleveDoc struct {
	Content string `json:"content"`
}

// New constructs an empty primary Store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) Initialize(ctx context.Context) error {
	return nil // idempotent: collections are created lazily by EnsureCollection
}

func (s *Store) EnsureCollection(ctx context.Context, name string, dense, sparse *vectorstore.VectorConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return nil // idempotent (§4.5)
	}

	c := &collection{
		denseCfg: dense,
		sparseCfg: sparse,
		idMap:     make(map[string]uint64),
		keyMap:    make(map[uint64]string),
		payload:    make(map[string]map[string]any),
		denseVecs:  make(map[string][]float32),
		sparseVecs: make(map[string]map[uint32]float32),
	}

	if dense != nil {
		g := hnsw.NewGraph[uint64]()
		switch dense.Metric {
		case "l2":
			g.Distance = hnsw.EuclideanDistance
		default:
			g.Distance = hnsw.CosineDistance
		}
		g.M = 16
		g.EfSearch = 20
		g.Ml = 0.25
		c.dense = g
	}

	if sparse != nil {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return fmt.Errorf("vectorstore/primary: create sparse index for %q: %w", name, err)
		}
		c.bleve = idx
	}

	s.collections[name] = c
	return nil
}

func (s *Store) getCollection(name string) (*collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("vectorstore/primary: collection %q not found", name)
	}
	return c, nil
}

// Upsert is at-least-once; duplicate upserts by chunk_id overwrite (§4.5).
func (s *Store) Upsert(ctx context.Context, collectionName string, points []vectorstore.Point) error {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var bleveBatch *bleve.Batch
	if c.bleve != nil {
		bleveBatch = c.bleve.NewBatch()
	}

	for _, p := range points {
		c.payload[p.ID] = p.Payload

		if c.dense != nil && len(p.Dense) > 0 {
			if existingKey, ok := c.idMap[p.ID]; ok {
				// Lazy deletion: orphan the old key rather than calling
				// graph.Delete, which has a known bug deleting the last
				// remaining node (matches the HNSWStore grounding).
				delete(c.keyMap, existingKey)
				delete(c.idMap, p.ID)
				delete(c.denseVecs, p.ID)
				delete(c.sparseVecs, p.ID)
			}
			vec := make([]float32, len(p.Dense))
			copy(vec, p.Dense)
			if c.denseCfg == nil || c.denseCfg.Metric != "l2" {
				normalizeInPlace(vec)
			}
			key := c.nextKey
			c.nextKey++
			c.dense.Add(hnsw.MakeNode(key, vec))
			c.idMap[p.ID] = key
			c.keyMap[key] = p.ID
			c.denseVecs[p.ID] = vec
		}

		if len(p.Sparse) > 0 {
			c.sparseVecs[p.ID] = p.Sparse
		}

		if bleveBatch != nil && p.Payload != nil {
			if content, ok := p.Payload["content"].(string); ok {
				if err := bleveBatch.Index(p.ID, bleveDoc{Content: content}); err != nil {
					return fmt.Errorf("vectorstore/primary: batch index %s: %w", p.ID, err)
				}
			}
		}
	}

	if bleveBatch != nil {
		if err := c.bleve.Batch(bleveBatch); err != nil {
			return fmt.Errorf("vectorstore/primary: sparse batch: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, collectionName string, ids []string) (int, error) {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	var bleveBatch *bleve.Batch
	if c.bleve != nil {
		bleveBatch = c.bleve.NewBatch()
	}
	for _, id := range ids {
		if _, ok := c.payload[id]; !ok {
			continue
		}
		n++
		delete(c.payload, id)
		if key, ok := c.idMap[id]; ok {
			delete(c.keyMap, key)
			delete(c.idMap, id)
			delete(c.denseVecs, id)
		}
		delete(c.sparseVecs, id)
		if bleveBatch != nil {
			bleveBatch.Delete(id)
		}
	}
	if bleveBatch != nil && n > 0 {
		if err := c.bleve.Batch(bleveBatch); err != nil {
			return n, fmt.Errorf("vectorstore/primary: sparse delete batch: %w", err)
		}
	}
	return n, nil
}

// DeleteByFile removes all chunks whose payload.file_path matches relpath
// (§4.5).
func (s *Store) DeleteByFile(ctx context.Context, collectionName, relPath string) (int, error) {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return 0, err
	}
	var ids []string
	c.mu.RLock()
	for id, payload := range c.payload {
		if fp, ok := payload["file_path"].(string); ok && fp == relPath {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()
	return s.DeleteByID(ctx, collectionName, ids)
}

// DeleteByName removes chunks whose payload.chunk.chunk_name is in names
// (§4.5: "Filter is nested: payload.chunk.chunk_name in names").
func (s *Store) DeleteByName(ctx context.Context, collectionName string, names []string) (int, error) {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return 0, err
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var ids []string
	c.mu.RLock()
	for id, payload := range c.payload {
		chunkField, ok := payload["chunk"].(map[string]any)
		if !ok {
			continue
		}
		if name, ok := chunkField["chunk_name"].(string); ok && wanted[name] {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()
	return s.DeleteByID(ctx, collectionName, ids)
}

// Search fuses dense and sparse arms when both are requested (hybrid),
// using Reciprocal Rank Fusion with k=60, the typical choice named in
// §4.5 as the implementation-defined hybrid fusion method.
func (s *Store) Search(ctx context.Context, collectionName string, q vectorstore.SearchQuery) ([]vectorstore.SearchResult, error) {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	var denseRanked, sparseRanked []vectorstore.SearchResult
	if len(q.Dense) > 0 && c.dense != nil {
		denseRanked = c.searchDense(q.Dense, limit)
	}
	if (len(q.Sparse) > 0 || q.Keyword != "") && c.bleve != nil {
		queryText := q.Keyword
		sparseRanked, err = c.searchSparse(ctx, queryText, limit)
		if err != nil {
			return nil, err
		}
	}

	var results []vectorstore.SearchResult
	switch {
	case len(denseRanked) > 0 && len(sparseRanked) > 0:
		results = reciprocalRankFusion(denseRanked, sparseRanked, 60)
	case len(denseRanked) > 0:
		results = denseRanked
	default:
		results = sparseRanked
	}
	sortByScoreThenNewestID(results)

	results = filterByLanguage(results, c, q.FocusLanguages)
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Payload = c.payload[results[i].ID]
	}
	return results, nil
}

func (c *collection) searchDense(query []float32, limit int) []vectorstore.SearchResult {
	if c.dense.Len() == 0 {
		return nil
	}
	vec := make([]float32, len(query))
	copy(vec, query)
	if c.denseCfg == nil || c.denseCfg.Metric != "l2" {
		normalizeInPlace(vec)
	}
	nodes := c.dense.Search(vec, limit)
	out := make([]vectorstore.SearchResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := c.keyMap[node.Key]
		if !ok {
			continue // orphaned (lazily deleted) node
		}
		dist := c.dense.Distance(vec, node.Value)
		out = append(out, vectorstore.SearchResult{ID: id, Score: distanceToScore(dist, c.denseCfg)})
	}
	return out
}

func (c *collection) searchSparse(ctx context.Context, queryText string, limit int) ([]vectorstore.SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, nil
	}
	mq := bleve.NewMatchQuery(queryText)
	mq.SetField("content")
	req := bleve.NewSearchRequest(mq)
	req.Size = limit

	res, err := c.bleve.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/primary: sparse search: %w", err)
	}
	out := make([]vectorstore.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, vectorstore.SearchResult{ID: hit.ID, Score: float32(hit.Score)})
	}
	return out, nil
}

func filterByLanguage(results []vectorstore.SearchResult, c *collection, languages []string) []vectorstore.SearchResult {
	if len(languages) == 0 {
		return results
	}
	allowed := make(map[string]bool, len(languages))
	for _, l := range languages {
		allowed[l] = true
	}
	out := results[:0]
	for _, r := range results {
		payload := c.payload[r.ID]
		if lang, ok := payload["language"].(string); ok && allowed[lang] {
			out = append(out, r)
		}
	}
	return out
}

// reciprocalRankFusion merges two ranked lists by 1/(k+rank), the
// standard fusion named in §4.5 for hybrid dense+sparse queries.
func reciprocalRankFusion(dense, sparse []vectorstore.SearchResult, k int) []vectorstore.SearchResult {
	scores := make(map[string]float64)
	order := make([]string, 0, len(dense)+len(sparse))
	add := func(list []vectorstore.SearchResult) {
		for rank, r := range list {
			if _, seen := scores[r.ID]; !seen {
				order = append(order, r.ID)
			}
			scores[r.ID] += 1.0 / float64(k+rank+1)
		}
	}
	add(dense)
	add(sparse)

	out := make([]vectorstore.SearchResult, len(order))
	for i, id := range order {
		out[i] = vectorstore.SearchResult{ID: id, Score: float32(scores[id])}
	}
	return out
}

// sortByScoreThenNewestID orders results by score descending, breaking ties
// by newer chunk_id first (§8 invariant 5), using ID.Compare as the
// documented tiebreak rather than incidental slice order.
func sortByScoreThenNewestID(results []vectorstore.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		aID, aErr := chunk.ParseID(a.ID)
		bID, bErr := chunk.ParseID(b.ID)
		if aErr != nil || bErr != nil {
			return false
		}
		return aID.Compare(bID) > 0
	})
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names, nil
}

// Scroll returns every point in collection, used by reconciliation
// (§4.7.2) and the backup sync loop (§4.6.1).
func (s *Store) Scroll(ctx context.Context, collectionName string, pageSize int) ([]vectorstore.Point, error) {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := make([]vectorstore.Point, 0, len(c.payload))
	for id, payload := range c.payload {
		p := vectorstore.Point{ID: id, Payload: payload}
		if vec, ok := c.denseVecs[id]; ok {
			p.Dense = vec
		}
		if sv, ok := c.sparseVecs[id]; ok {
			p.Sparse = sv
		}
		points = append(points, p)
	}
	return points, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func distanceToScore(distance float32, cfg *vectorstore.VectorConfig) float32 {
	if cfg != nil && cfg.Metric == "l2" {
		return 1.0 / (1.0 + distance)
	}
	return 1.0 - distance/2.0
}

var _ vectorstore.VectorStore = (*Store)(nil)
