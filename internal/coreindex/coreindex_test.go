package coreindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeweaver/core/internal/checkpoint"
	"github.com/codeweaver/core/internal/chunker"
	"github.com/codeweaver/core/internal/dedup"
	"github.com/codeweaver/core/internal/discovery"
	"github.com/codeweaver/core/internal/embedding"
	"github.com/codeweaver/core/internal/stats"
	"github.com/codeweaver/core/internal/vectorstore"
	"github.com/codeweaver/core/internal/vectorstore/primary"
)

func newTestIndexer(t *testing.T, root string) (*Indexer, *primary.Store, *stats.Statistics) {
	t.Helper()
	st := stats.New()

	disc, err := discovery.New(discovery.Config{RootDir: root}, st)
	require.NoError(t, err)

	ded := dedup.New(0, st)
	delim := chunker.NewDelimiterChunker(chunker.DefaultFamily, chunker.Deps{Stats: st}, chunker.DefaultGovernorConfig())
	selector := chunker.NewSelector(delim, delim, map[string]bool{})

	registry := embedding.NewRegistry()
	dense := embedding.NewMockDenseProvider(8)
	batcher := embedding.NewBatcher(embedding.DefaultBatcherConfig(), dense, nil, registry, st)

	store := primary.New()
	require.NoError(t, store.EnsureCollection(context.Background(), "code",
		&vectorstore.VectorConfig{Dimension: 8, Metric: "cos"}, &vectorstore.VectorConfig{}))
	guarded := vectorstore.NewGuarded(store, st)

	manifest := checkpoint.NewManifest(filepath.Join(root, ".codeweaver", "manifest.json"))

	ix := New(Config{RootDir: root, Collection: "code"}, Deps{
		Discovery: disc,
		Selector:  selector,
		Dedup:     ded,
		Batcher:   batcher,
		Registry:  registry,
		Dense:     dense,
		Store:     StaticStore(guarded),
		Manifest:  manifest,
		Stats:     st,
	})
	return ix, store, st
}

func TestPrimeIndexSingleFileProducesChunksAndManifestEntry(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.py"), []byte("def foo(x):\n    return x + 1\n"), 0o644))

	ix, store, _ := newTestIndexer(t, root)

	summary, err := ix.PrimeIndex(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DiscoveredCount)
	require.Equal(t, 1, summary.FilesIndexed)
	require.Equal(t, 0, summary.FilesFailed)
	require.Greater(t, summary.ChunksUpserted, 0)

	entry, ok := ix.deps.Manifest.Get("src/a.py")
	require.True(t, ok)
	require.Equal(t, summary.ChunksUpserted, entry.ChunkCount)

	points, err := store.Scroll(context.Background(), "code", 100)
	require.NoError(t, err)
	require.Len(t, points, entry.ChunkCount)
}

func TestPrimeIndexSecondRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def foo():\n    pass\n"), 0o644))

	ix, _, st := newTestIndexer(t, root)

	_, err := ix.PrimeIndex(context.Background(), false)
	require.NoError(t, err)

	before := st.Embedding.BatchesIssued.Load()
	beforeUpserts := st.VectorStore.Upserts.Load()

	summary, err := ix.PrimeIndex(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 0, summary.FilesIndexed) // UNCHANGED: nothing to (re)process
	require.Equal(t, before, st.Embedding.BatchesIssued.Load())
	require.Equal(t, beforeUpserts, st.VectorStore.Upserts.Load())
}

func TestRemoveFilesDeletesVectorStorePointsAndManifestEntry(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def foo():\n    pass\n"), 0o644))

	ix, store, _ := newTestIndexer(t, root)
	_, err := ix.PrimeIndex(context.Background(), false)
	require.NoError(t, err)

	n, err := ix.RemoveFiles(context.Background(), []string{"a.py"})
	require.NoError(t, err)
	require.Greater(t, n, 0)

	_, ok := ix.deps.Manifest.Get("a.py")
	require.False(t, ok)

	points, err := store.Scroll(context.Background(), "code", 100)
	require.NoError(t, err)
	require.Empty(t, points)
}

func TestRenameReusesEmbeddingViaDedup(t *testing.T) {
	root := t.TempDir()
	content := "def foo():\n    pass\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte(content), 0o644))

	ix, store, st := newTestIndexer(t, root)
	_, err := ix.PrimeIndex(context.Background(), false)
	require.NoError(t, err)

	_, err = ix.RemoveFiles(context.Background(), []string{"a.py"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "a.py")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"), []byte(content), 0o644))

	before := st.Embedding.BatchesIssued.Load()
	n, err := ix.ReindexFiles(context.Background(), []string{"b.py"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, before, st.Embedding.BatchesIssued.Load()) // dedup hit: no fresh embed call

	points, err := store.Scroll(context.Background(), "code", 100)
	require.NoError(t, err)
	require.Len(t, points, 1, "b.py's single function chunk must survive the rename")
	for _, p := range points {
		require.Equal(t, "b.py", p.Payload["file_path"])
	}
}

func TestReconcileMissingEmbeddingsRepairsSparseGap(t *testing.T) {
	root := t.TempDir()
	ix, store, st := newTestIndexer(t, root)
	ix.deps.Sparse = embedding.NewMockSparseProvider()

	require.NoError(t, store.Upsert(context.Background(), "code", []vectorstore.Point{
		{
			ID:    "chunk-missing-sparse",
			Dense: []float32{1, 0, 0, 0, 0, 0, 0, 0},
			Payload: map[string]any{
				"content":   "def bar(): pass",
				"file_path": "bar.py",
				"has_dense": true,
				"has_sparse": false,
			},
		},
	}))

	ix.ReconcileMissingEmbeddings(context.Background())
	require.Equal(t, int64(1), st.Reconciliation.Scanned.Load())
	require.Equal(t, int64(1), st.Reconciliation.Repaired.Load())

	points, err := store.Scroll(context.Background(), "code", 100)
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.NotEmpty(t, points[0].Sparse)
	require.Equal(t, true, points[0].Payload["has_sparse"])
}

// S6 (spec.md §8): a collection of 100 stored chunks where 80 are missing
// sparse_embedding repairs exactly those 80 chunks and leaves the other 20
// untouched (all 100 chunks here share one file path).
func TestReconcileMissingEmbeddingsRepairsExactlyTheAffectedFiles(t *testing.T) {
	root := t.TempDir()
	ix, store, st := newTestIndexer(t, root)
	ix.deps.Sparse = embedding.NewMockSparseProvider()

	const total = 100
	const missing = 80
	points := make([]vectorstore.Point, 0, total)
	for i := 0; i < total; i++ {
		missingSparse := i < missing
		points = append(points, vectorstore.Point{
			ID:    "chunk-" + string(rune('A'+i%26)) + "-" + string(rune('0'+i/26)),
			Dense: []float32{1, 0, 0, 0, 0, 0, 0, 0},
			Payload: map[string]any{
				"content":    "def fn(): pass",
				"file_path":  "pkg/file.py",
				"has_dense":  true,
				"has_sparse": !missingSparse,
			},
		})
	}
	require.NoError(t, store.Upsert(context.Background(), "code", points))

	ix.ReconcileMissingEmbeddings(context.Background())
	require.Equal(t, int64(total), st.Reconciliation.Scanned.Load())
	require.Equal(t, int64(missing), st.Reconciliation.Repaired.Load())

	after, err := store.Scroll(context.Background(), "code", total)
	require.NoError(t, err)
	require.Len(t, after, total)
	repaired := 0
	for _, p := range after {
		if p.Payload["has_sparse"] == true {
			repaired++
			require.NotEmpty(t, p.Sparse)
		}
	}
	require.Equal(t, total, repaired) // the 20 already-sparse plus the 80 repaired
}
