// Package memory implements the in-memory backup VectorStore (§4.6): a
// chromem-go backed collection that the FailoverManager promotes to when
// the primary store's circuit breaker opens, periodically synced from the
// primary (§4.6.1) and persisted to the backup JSON file (§4.6.2).
//
// Grounded on mvp-joe-project-cortex's internal/mcp/chromem_searcher.go
// (chromem.DB/Collection usage, document shape, query-by-embedding), with
// payload fields flattened into chromem's map[string]string metadata since
// chromem-go metadata values are strings only; the full structured payload
// is kept alongside in-process so Scroll/Search can return it unflattened.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/codeweaver/core/internal/vectorstore"
)

// backupSchemaVersion is the "version" field written to the backup file
// (§4.6.2 names "1.0" and "2.0" as seen historical versions; this store
// always writes the current version).
const backupSchemaVersion = "2.0"

// Store is the in-memory backup VectorStore.
type Store struct {
	mu          sync.RWMutex
	db          *chromem.DB
	collections map[string]*collection
}

type collection struct {
	chromem   *chromem.Collection
	dense     *vectorstore.VectorConfig
	sparse    *vectorstore.VectorConfig
	payload   map[string]map[string]any
	sparseVec map[string]map[uint32]float32
}

// New constructs an empty in-memory backup store.
func New() *Store {
	return &Store{db: chromem.NewDB(), collections: make(map[string]*collection)}
}

func (s *Store) Initialize(ctx context.Context) error { return nil }

func (s *Store) EnsureCollection(ctx context.Context, name string, dense, sparse *vectorstore.VectorConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return nil
	}
	c, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("vectorstore/memory: create collection %q: %w", name, err)
	}
	s.collections[name] = &collection{
		chromem:   c,
		dense:     dense,
		sparse:    sparse,
		payload:   make(map[string]map[string]any),
		sparseVec: make(map[string]map[uint32]float32),
	}
	return nil
}

func (s *Store) getCollection(name string) (*collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("vectorstore/memory: collection %q not found", name)
	}
	return c, nil
}

func (s *Store) Upsert(ctx context.Context, collectionName string, points []vectorstore.Point) error {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return err
	}
	for _, p := range points {
		c.payload[p.ID] = p.Payload
		if len(p.Sparse) > 0 {
			c.sparseVec[p.ID] = p.Sparse
		}
		doc := chromem.Document{
			ID:        p.ID,
			Content:   contentOf(p.Payload),
			Embedding: p.Dense,
			Metadata:  flattenMetadata(p.Payload),
		}
		if err := c.chromem.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("vectorstore/memory: add document %s: %w", p.ID, err)
		}
	}
	return nil
}

func contentOf(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload["content"].(string); ok {
		return v
	}
	return ""
}

// flattenMetadata keeps only the string-valued top-level payload fields
// chromem-go can filter on natively (file_path, language); everything else
// stays in the side payload map and is restored on read.
func flattenMetadata(payload map[string]any) map[string]string {
	out := make(map[string]string)
	for _, key := range []string{"file_path", "language"} {
		if v, ok := payload[key].(string); ok {
			out[key] = v
		}
	}
	return out
}

func (s *Store) DeleteByID(ctx context.Context, collectionName string, ids []string) (int, error) {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, ok := c.payload[id]; !ok {
			continue
		}
		if err := c.chromem.Delete(ctx, nil, nil, id); err != nil {
			return n, fmt.Errorf("vectorstore/memory: delete %s: %w", id, err)
		}
		delete(c.payload, id)
		delete(c.sparseVec, id)
		n++
	}
	return n, nil
}

func (s *Store) DeleteByFile(ctx context.Context, collectionName, relPath string) (int, error) {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return 0, err
	}
	var ids []string
	for id, payload := range c.payload {
		if fp, ok := payload["file_path"].(string); ok && fp == relPath {
			ids = append(ids, id)
		}
	}
	return s.DeleteByID(ctx, collectionName, ids)
}

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
	for id, payload := range c.payload {
		chunkField, ok := payload["chunk"].(map[string]any)
		if !ok {
			continue
		}
		if name, ok := chunkField["chunk_name"].(string); ok && wanted[name] {
			ids = append(ids, id)
		}
	}
	return s.DeleteByID(ctx, collectionName, ids)
}

// Search only serves dense queries: the backup store exists purely as a
// failover target while the primary (and its bleve sparse arm) is down
// (§4.6). A query without a dense vector is rejected with an error;
// Sparse and Keyword are ignored.
func (s *Store) Search(ctx context.Context, collectionName string, q vectorstore.SearchQuery) ([]vectorstore.SearchResult, error) {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return nil, err
	}
	if len(q.Dense) == 0 {
		return nil, fmt.Errorf("vectorstore/memory: search requires a dense query vector")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	where := make(map[string]string)
	if len(q.FocusLanguages) == 1 {
		where["language"] = q.FocusLanguages[0]
	}

	nResults := limit
	if len(q.FocusLanguages) > 1 {
		nResults = limit * 4 // headroom for post-filtering multiple languages
	}

	docs, err := c.chromem.QueryEmbedding(ctx, q.Dense, nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/memory: query: %w", err)
	}

	out := make([]vectorstore.SearchResult, 0, len(docs))
	for _, doc := range docs {
		if len(q.FocusLanguages) > 1 && !containsString(q.FocusLanguages, doc.Metadata["language"]) {
			continue
		}
		out = append(out, vectorstore.SearchResult{ID: doc.ID, Score: doc.Similarity, Payload: c.payload[doc.ID]})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Scroll(ctx context.Context, collectionName string, pageSize int) ([]vectorstore.Point, error) {
	c, err := s.getCollection(collectionName)
	if err != nil {
		return nil, err
	}
	points := make([]vectorstore.Point, 0, len(c.payload))
	for id, payload := range c.payload {
		doc, err := c.chromem.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("vectorstore/memory: get %s: %w", id, err)
		}
		points = append(points, vectorstore.Point{ID: id, Dense: doc.Embedding, Payload: payload, Sparse: c.sparseVec[id]})
	}
	return points, nil
}

var _ vectorstore.VectorStore = (*Store)(nil)

// --- Backup file persistence (§4.6.2) ---

// backupFile is the on-disk JSON schema for <config_dir>/cache/vector_store.json.
type backupFile struct {
	Version     string                      `json:"version"`
	Metadata    backupFileMetadata          `json:"metadata"`
	Collections map[string]backupCollection `json:"collections"`
}

type backupFileMetadata struct {
	CreatedAt       string `json:"created_at"`
	LastModified    string `json:"last_modified"`
	CollectionCount int    `json:"collection_count"`
	TotalPoints     int    `json:"total_points"`
	Source          string `json:"source"`
}

type backupCollection struct {
	Metadata backupCollectionMetadata `json:"metadata"`
	Config   backupCollectionConfig   `json:"config"`
	Points   []backupPoint            `json:"points"`
}

type backupCollectionMetadata struct {
	Provider   string `json:"provider"`
	CreatedAt  string `json:"created_at"`
	PointCount int    `json:"point_count"`
}

type backupCollectionConfig struct {
	VectorsConfig       *vectorstore.VectorConfig `json:"vectors_config,omitempty"`
	SparseVectorsConfig *vectorstore.VectorConfig `json:"sparse_vectors_config,omitempty"`
}

type backupPoint struct {
	ID      string         `json:"id"`
	Vector  backupVector   `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type backupVector struct {
	Dense  []float32        `json:"dense,omitempty"`
	Sparse *backupSparseVec `json:"sparse,omitempty"`
}

type backupSparseVec struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// SaveBackup scrolls every collection and writes it to path using an
// atomic temp-file-then-rename, matching §4.6.2's persisted-state
// guarantee that a crash mid-write never corrupts the prior backup.
func (s *Store) SaveBackup(ctx context.Context, path string) error {
	s.mu.RLock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	s.mu.RUnlock()

	now := time.Now().UTC().Format(time.RFC3339)
	out := backupFile{
		Version:     backupSchemaVersion,
		Metadata:    backupFileMetadata{CreatedAt: now, LastModified: now, CollectionCount: len(names), Source: "codeweaver-coreindex"},
		Collections: make(map[string]backupCollection, len(names)),
	}
	totalPoints := 0
	for _, name := range names {
		points, err := s.Scroll(ctx, name, 0)
		if err != nil {
			return err
		}
		bps := make([]backupPoint, 0, len(points))
		for _, p := range points {
			bp := backupPoint{ID: p.ID, Payload: p.Payload}
			bp.Vector.Dense = p.Dense
			if len(p.Sparse) > 0 {
				indices := make([]uint32, 0, len(p.Sparse))
				values := make([]float32, 0, len(p.Sparse))
				for idx, val := range p.Sparse {
					indices = append(indices, idx)
					values = append(values, val)
				}
				bp.Vector.Sparse = &backupSparseVec{Indices: indices, Values: values}
			}
			bps = append(bps, bp)
		}
		totalPoints += len(bps)

		s.mu.RLock()
		col := s.collections[name]
		s.mu.RUnlock()
		out.Collections[name] = backupCollection{
			Metadata: backupCollectionMetadata{Provider: "chromem-go", CreatedAt: now, PointCount: len(bps)},
			Config:   backupCollectionConfig{VectorsConfig: col.dense, SparseVectorsConfig: col.sparse},
			Points:   bps,
		}
	}
	out.Metadata.TotalPoints = totalPoints

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("vectorstore/memory: marshal backup: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorstore/memory: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".vector_store-*.tmp")
	if err != nil {
		return fmt.Errorf("vectorstore/memory: create temp backup: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("vectorstore/memory: write temp backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("vectorstore/memory: close temp backup: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("vectorstore/memory: rename backup into place: %w", err)
	}
	return nil
}

// LoadBackup reads path and upserts its points into the store, used when
// the FailoverManager promotes the backup to active (§4.6) and needs its
// last-synced snapshot restored. Points already in the store and absent
// from the file are kept. Collections not yet created via
// EnsureCollection are created with the file's vector configs, or a
// cosine dense config when the file has none.
func (s *Store) LoadBackup(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vectorstore/memory: read backup %s: %w", path, err)
	}
	var in backupFile
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("vectorstore/memory: backup %s is not valid JSON: %w", path, err)
	}
	if err := validateBackup(in); err != nil {
		return fmt.Errorf("vectorstore/memory: backup %s failed validation: %w", path, err)
	}

	for name, bc := range in.Collections {
		dense := bc.Config.VectorsConfig
		if dense == nil {
			dense = &vectorstore.VectorConfig{Metric: "cos"}
		}
		if err := s.EnsureCollection(ctx, name, dense, bc.Config.SparseVectorsConfig); err != nil {
			return err
		}
		points := make([]vectorstore.Point, 0, len(bc.Points))
		for _, bp := range bc.Points {
			p := vectorstore.Point{ID: bp.ID, Dense: bp.Vector.Dense, Payload: bp.Payload}
			if bp.Vector.Sparse != nil {
				sv := make(map[uint32]float32, len(bp.Vector.Sparse.Indices))
				for i, idx := range bp.Vector.Sparse.Indices {
					if i < len(bp.Vector.Sparse.Values) {
						sv[idx] = bp.Vector.Sparse.Values[i]
					}
				}
				p.Sparse = sv
			}
			points = append(points, p)
		}
		if err := s.Upsert(ctx, name, points); err != nil {
			return fmt.Errorf("vectorstore/memory: restore collection %s: %w", name, err)
		}
	}
	return nil
}

// validateBackup implements §4.6.2's validation: version must be "1.0" or
// "2.0" (forward-compatible — a v2 reader must accept v1 files), and every
// collection must carry a points array (nil decodes to an empty slice,
// which already satisfies this).
func validateBackup(in backupFile) error {
	if in.Version != "1.0" && in.Version != "2.0" {
		return fmt.Errorf("unsupported backup version %q", in.Version)
	}
	if in.Collections == nil {
		return fmt.Errorf("collections is missing")
	}
	return nil
}
