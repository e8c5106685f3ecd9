package primary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeweaver/core/internal/chunk"
	"github.com/codeweaver/core/internal/vectorstore"
)

// §8 invariant 5: ties broken by newer chunk_id first.
func TestSortByScoreThenNewestIDBreaksTiesByNewerID(t *testing.T) {
	older := chunk.NewID()
	newer := chunk.NewID()

	results := []vectorstore.SearchResult{
		{ID: older.String(), Score: 0.5},
		{ID: newer.String(), Score: 0.5},
	}
	sortByScoreThenNewestID(results)

	require.Equal(t, newer.String(), results[0].ID)
	require.Equal(t, older.String(), results[1].ID)
}

func TestSortByScoreThenNewestIDOrdersByScoreFirst(t *testing.T) {
	low := chunk.NewID()
	high := chunk.NewID()

	results := []vectorstore.SearchResult{
		{ID: low.String(), Score: 0.1},
		{ID: high.String(), Score: 0.9},
	}
	sortByScoreThenNewestID(results)

	require.Equal(t, high.String(), results[0].ID)
	require.Equal(t, low.String(), results[1].ID)
}
