package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeweaver/core/internal/embedding"
	"github.com/codeweaver/core/internal/stats"
	"github.com/codeweaver/core/internal/vectorstore"
	"github.com/codeweaver/core/internal/vectorstore/primary"
)

func setup(t *testing.T) (*primary.Store, *stats.Statistics) {
	t.Helper()
	store := primary.New()
	require.NoError(t, store.EnsureCollection(context.Background(), "code",
		&vectorstore.VectorConfig{Dimension: 4, Metric: "cos"}, &vectorstore.VectorConfig{}))
	require.NoError(t, store.Upsert(context.Background(), "code", []vectorstore.Point{
		{
			ID:    "chunk-1",
			Dense: []float32{1, 0, 0, 0},
			Payload: map[string]any{
				"content":        "def foo(): pass",
				"file_path":      "a.py",
				"classification": "FUNCTION",
				"line_range":     []int{1, 1},
			},
		},
	}))
	return store, stats.New()
}

func TestFindCodeSelectsHybridWhenBothProvidersHealthy(t *testing.T) {
	store, st := setup(t)
	p := &Pipeline{
		Dense:      embedding.NewMockDenseProvider(4),
		Sparse:     embedding.NewMockSparseProvider(),
		Store:      vectorstore.NewGuarded(store, st),
		Collection: "code",
	}
	p.Breaker = p.Store.(*vectorstore.Guarded).Breaker()

	resp := p.FindCode(context.Background(), Request{Query: "foo"})
	require.Equal(t, HybridSearch, resp.StrategyUsed)
	require.NotEmpty(t, resp.Results)
}

func TestFindCodeFallsBackToKeywordWhenNoProvidersHealthy(t *testing.T) {
	store, st := setup(t)
	guarded := vectorstore.NewGuarded(store, st)
	p := &Pipeline{Store: guarded, Breaker: guarded.Breaker(), Collection: "code"}

	resp := p.FindCode(context.Background(), Request{Query: "foo"})
	require.Equal(t, KeywordFallback, resp.StrategyUsed)
}

func TestFindCodeTruncatesUnderTinyTokenBudget(t *testing.T) {
	store, st := setup(t)
	p := &Pipeline{
		Dense:      embedding.NewMockDenseProvider(4),
		Store:      vectorstore.NewGuarded(store, st),
		Collection: "code",
	}
	p.Breaker = p.Store.(*vectorstore.Guarded).Breaker()

	resp := p.FindCode(context.Background(), Request{Query: "foo", TokenLimit: 1})
	require.Contains(t, resp.Warnings, "truncated_due_to_budget")
	require.Empty(t, resp.Results)
}

func TestFindCodeOnEmptyIndexReturnsEmptyIndexWarning(t *testing.T) {
	store := primary.New()
	require.NoError(t, store.EnsureCollection(context.Background(), "code",
		&vectorstore.VectorConfig{Dimension: 4, Metric: "cos"}, &vectorstore.VectorConfig{}))
	st := stats.New()
	guarded := vectorstore.NewGuarded(store, st)
	p := &Pipeline{Store: guarded, Breaker: guarded.Breaker(), Collection: "code"}

	resp := p.FindCode(context.Background(), Request{Query: "anything"})
	require.Equal(t, KeywordFallback, resp.StrategyUsed)
	require.Empty(t, resp.Results)
	require.Contains(t, resp.Warnings, "empty_index")
}

type refusingStore struct {
	vectorstore.VectorStore
	refused bool
}

func (r refusingStore) MemoryRefused() bool { return r.refused }

func TestFindCodeFlagsBackupRefusedMemoryOnKeywordFallback(t *testing.T) {
	store, st := setup(t)
	guarded := vectorstore.NewGuarded(store, st)
	p := &Pipeline{
		Store:      refusingStore{VectorStore: guarded, refused: true},
		Breaker:    guarded.Breaker(),
		Collection: "code",
	}

	resp := p.FindCode(context.Background(), Request{Query: "foo"})
	require.Equal(t, KeywordFallback, resp.StrategyUsed)
	require.Contains(t, resp.Warnings, "backup_refused_memory")
}

type stubReranker struct{ scores []float32 }

func (s stubReranker) Rerank(ctx context.Context, query string, candidates []vectorstore.SearchResult) ([]float32, error) {
	return s.scores, nil
}

func TestFindCodeAppliesReranker(t *testing.T) {
	store, st := setup(t)
	require.NoError(t, store.Upsert(context.Background(), "code", []vectorstore.Point{
		{ID: "chunk-2", Dense: []float32{0, 1, 0, 0}, Payload: map[string]any{"content": "def bar(): pass", "file_path": "b.py"}},
	}))

	p := &Pipeline{
		Dense:      embedding.NewMockDenseProvider(4),
		Store:      vectorstore.NewGuarded(store, st),
		Collection: "code",
		Reranker:   stubReranker{scores: []float32{0.1, 0.9}},
	}
	p.Breaker = p.Store.(*vectorstore.Guarded).Breaker()

	resp := p.FindCode(context.Background(), Request{Query: "bar"})
	require.Len(t, resp.Results, 2)
	require.Equal(t, float32(0.9), resp.Results[0].Score)
}
