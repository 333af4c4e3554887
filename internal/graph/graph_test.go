package graph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okapisearch/okapi/internal/searcher/executor"
)

func TestEdgeSetAddReplacesPerPair(t *testing.T) {
	s := NewEdgeSet()
	s.Add(1, 10, 1)
	s.Add(1, 10, 3)
	s.Add(1, 11, 1)
	assert.Equal(t, 2, s.Len())
}

func TestEdgeSetRemoveDocs(t *testing.T) {
	s := NewEdgeSet()
	s.Add(1, 10, 1)
	s.Add(2, 10, 1)
	s.RemoveDocs([]uint32{1})
	assert.Equal(t, 1, s.Len())
}

func TestRerankCombinesScores(t *testing.T) {
	s := NewEdgeSet()
	s.Add(1, 100, 1.0)
	s.Add(2, 100, 0.5)

	bd := []executor.Hit{
		{DocID: 1, Key: "a", Score: 2.0},
		{DocID: 2, Key: "b", Score: 3.0},
		{DocID: 3, Key: "c", Score: 1.0},
	}
	bq := map[uint32]float64{100: 4.0}

	hits := s.Rerank(bd, bq, Options{TopK: 10})
	require.Len(t, hits, 3)

	byKey := make(map[string]float64)
	for _, h := range hits {
		byKey[h.Key] = h.Score
	}
	// final = score_d + (score_q + weight) per matching edge
	assert.InDelta(t, 2.0+4.0+1.0, byKey["a"], 1e-9)
	assert.InDelta(t, 3.0+4.0+0.5, byKey["b"], 1e-9)
	assert.InDelta(t, 1.0, byKey["c"], 1e-9)

	assert.Equal(t, "b", hits[0].Key)
	assert.Equal(t, "a", hits[1].Key)
	assert.Equal(t, "c", hits[2].Key)
}

func TestRerankEdgeOnlyDocumentEnters(t *testing.T) {
	s := NewEdgeSet()
	s.Add(9, 100, 1.0)

	bd := []executor.Hit{{DocID: 1, Key: "a", Score: 5.0}}
	bq := map[uint32]float64{100: 2.0}

	hits := s.Rerank(bd, bq, Options{TopK: 10})
	require.Len(t, hits, 2)
	assert.Equal(t, uint32(1), hits[0].DocID)
	assert.Equal(t, uint32(9), hits[1].DocID)
	assert.InDelta(t, 3.0, hits[1].Score, 1e-9)
	assert.Empty(t, hits[1].Key) // filled in by the caller
}

func TestRerankLiveFilterBlocksDeadEdgeDocs(t *testing.T) {
	s := NewEdgeSet()
	s.Add(9, 100, 1.0)

	bd := []executor.Hit{{DocID: 1, Key: "a", Score: 5.0}}
	bq := map[uint32]float64{100: 2.0}

	hits := s.Rerank(bd, bq, Options{
		TopK: 10,
		Live: func(docID uint32) bool { return docID != 9 },
	})
	require.Len(t, hits, 1)
	assert.Equal(t, uint32(1), hits[0].DocID)
}

func TestRerankIgnoresQueriesOutsideBQ(t *testing.T) {
	s := NewEdgeSet()
	s.Add(1, 100, 1.0)
	s.Add(1, 200, 1.0)

	bd := []executor.Hit{{DocID: 1, Key: "a", Score: 1.0}}
	bq := map[uint32]float64{100: 2.0}

	hits := s.Rerank(bd, bq, Options{TopK: 10})
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0+2.0+1.0, hits[0].Score, 1e-9)
}

func TestRerankTopKTruncation(t *testing.T) {
	s := NewEdgeSet()
	bd := []executor.Hit{
		{DocID: 1, Score: 3},
		{DocID: 2, Score: 2},
		{DocID: 3, Score: 1},
	}
	hits := s.Rerank(bd, nil, Options{TopK: 2})
	assert.Len(t, hits, 2)
}

func TestRerankRandomTiebreakPreservesScoreOrder(t *testing.T) {
	s := NewEdgeSet()
	bd := []executor.Hit{
		{DocID: 1, Score: 1},
		{DocID: 2, Score: 1},
		{DocID: 3, Score: 5},
	}
	hits := s.Rerank(bd, nil, Options{
		TopK:           3,
		RandomTiebreak: true,
		Rand:           rand.New(rand.NewSource(42)),
	})
	require.Len(t, hits, 3)
	assert.Equal(t, uint32(3), hits[0].DocID)
	assert.ElementsMatch(t, []uint32{1, 2}, []uint32{hits[1].DocID, hits[2].DocID})
}
