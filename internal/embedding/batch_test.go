package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeweaver/core/internal/chunk"
	"github.com/codeweaver/core/internal/stats"
)

func makeTestChunk(content string) chunk.Chunk {
	return chunk.New("a.py", content, chunk.LineRange{Start: 1, End: 1}, chunk.ClassificationFunction, chunk.ImportanceScores{}, chunk.ChunkerSemantic)
}

func TestBatcherEmbedChunksAssignsBatchKeys(t *testing.T) {
	st := stats.New()
	reg := NewRegistry()
	dense := NewMockDenseProvider(4)
	sparse := NewMockSparseProvider()
	b := NewBatcher(BatcherConfig{BatchSize: 2, MaxInFlightBatches: 2}, dense, sparse, reg, st)

	chunks := []chunk.Chunk{makeTestChunk("def a(): pass"), makeTestChunk("def b(): pass"), makeTestChunk("def c(): pass")}
	out, err := b.EmbedChunks(context.Background(), chunks, true, true)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for _, c := range out {
		require.NotNil(t, c.BatchKeys.Dense)
		require.NotNil(t, c.BatchKeys.Sparse)
		v, ok := reg.Dense(*c.BatchKeys.Dense)
		require.True(t, ok)
		require.Len(t, v, 4)
		sv, ok := reg.Sparse(*c.BatchKeys.Sparse)
		require.True(t, ok)
		require.NotEmpty(t, sv)
	}
	require.Equal(t, int64(3), st.Embedding.ItemsIssued.Load())
}

func TestBatcherDenseOnlyLeavesSparseKeyNil(t *testing.T) {
	st := stats.New()
	reg := NewRegistry()
	dense := NewMockDenseProvider(4)
	b := NewBatcher(DefaultBatcherConfig(), dense, nil, reg, st)

	out, err := b.EmbedChunks(context.Background(), []chunk.Chunk{makeTestChunk("x")}, true, false)
	require.NoError(t, err)
	require.NotNil(t, out[0].BatchKeys.Dense)
	require.Nil(t, out[0].BatchKeys.Sparse)
}

func TestRegistryResetClears(t *testing.T) {
	reg := NewRegistry()
	reg.PutDense(chunk.BatchKey{BatchID: "b1"}, Vector{1, 2})
	dc, sc := reg.Len()
	require.Equal(t, 1, dc)
	require.Equal(t, 0, sc)
	reg.Reset()
	dc, sc = reg.Len()
	require.Equal(t, 0, dc)
	require.Equal(t, 0, sc)
}
