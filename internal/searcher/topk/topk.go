// Package topk selects the highest-scoring candidates with a bounded heap,
// keeping selection O(n log k) for large candidate sets.
package topk

import "container/heap"

// Candidate is a scored document awaiting selection.
type Candidate struct {
	DocID uint32
	Score float64
}

// Select returns the top-k candidates ordered by score descending with
// doc id ascending as the deterministic tiebreak. k <= 0 returns all
// candidates sorted.
func Select(candidates []Candidate, k int) []Candidate {
	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}
	h := &candidateHeap{}
	heap.Init(h)
	for _, c := range candidates {
		heap.Push(h, c)
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	result := make([]Candidate, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Candidate)
	}
	return result
}

// candidateHeap is a min-heap over (score, then doc id descending) so the
// weakest candidate is always at the root.
type candidateHeap []Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x interface{}) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
