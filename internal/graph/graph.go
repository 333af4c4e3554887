// Package graph maintains the bipartite document-query edge set and the
// hybrid re-ranking that combines BM25 over documents, BM25 over stored
// queries, and edge weights.
package graph

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/okapisearch/okapi/internal/searcher/executor"
)

// Edge is one weighted association from a document to a stored query.
type Edge struct {
	QueryID uint32
	Weight  float32
}

// DefaultWeight is used when an edge is uploaded without a weight.
const DefaultWeight float32 = 1

// EdgeSet is the in-memory edge store, keyed by document id. Edges are
// unique per (document, query) pair.
type EdgeSet struct {
	mu    sync.RWMutex
	byDoc map[uint32][]Edge
}

func NewEdgeSet() *EdgeSet {
	return &EdgeSet{
		byDoc: make(map[uint32][]Edge),
	}
}

// Add inserts or replaces the edge for the (doc, query) pair.
func (s *EdgeSet) Add(docID, queryID uint32, weight float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edges := s.byDoc[docID]
	for i, e := range edges {
		if e.QueryID == queryID {
			edges[i].Weight = weight
			return
		}
	}
	s.byDoc[docID] = append(edges, Edge{QueryID: queryID, Weight: weight})
}

// RemoveDocs drops all edges of the given documents.
func (s *EdgeSet) RemoveDocs(docIDs []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range docIDs {
		delete(s.byDoc, id)
	}
}

// Len returns the total edge count.
func (s *EdgeSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, edges := range s.byDoc {
		n += len(edges)
	}
	return n
}

// Options controls the re-rank combination.
type Options struct {
	TopK int
	// RandomTiebreak shuffles equal-score runs instead of the default
	// doc-id-ascending order, trading determinism for diversity.
	RandomTiebreak bool
	// Rand supplies the shuffle source; nil uses the global source.
	Rand *rand.Rand
	// Live reports whether a document id still exists, so edge-only
	// expansion never resurrects deleted documents.
	Live func(docID uint32) bool
}

// Rerank combines the document hits BD with the stored-query hits BQ
// through the induced edges: final(d) = score_d + sum over edges (d, q)
// with q in BQ of (score_q + weight). Documents reachable only through an
// edge enter with their edge-induced score alone.
func (s *EdgeSet) Rerank(bd []executor.Hit, bq map[uint32]float64, opts Options) []executor.Hit {
	final := make(map[uint32]float64, len(bd))
	direct := make(map[uint32]executor.Hit, len(bd))
	for _, hit := range bd {
		final[hit.DocID] = hit.Score
		direct[hit.DocID] = hit
	}

	s.mu.RLock()
	for docID, edges := range s.byDoc {
		if _, inBD := final[docID]; !inBD {
			if opts.Live != nil && !opts.Live(docID) {
				continue
			}
		}
		for _, e := range edges {
			scoreQ, ok := bq[e.QueryID]
			if !ok {
				continue
			}
			final[docID] += scoreQ + float64(e.Weight)
		}
	}
	s.mu.RUnlock()

	hits := make([]executor.Hit, 0, len(final))
	for docID, score := range final {
		hit, ok := direct[docID]
		if !ok {
			hit = executor.Hit{DocID: docID}
		}
		hit.Score = score
		hits = append(hits, hit)
	}

	if opts.RandomTiebreak {
		rng := opts.Rand
		if rng == nil {
			rng = rand.New(rand.NewSource(rand.Int63()))
		}
		rng.Shuffle(len(hits), func(i, j int) {
			hits[i], hits[j] = hits[j], hits[i]
		})
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].Score > hits[j].Score
		})
	} else {
		executor.SortHits(hits)
	}

	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits
}
