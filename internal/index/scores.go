package index

import "sort"

// ScoreEntry holds a term's posting list as two parallel arrays sorted by
// score descending, doc id ascending on ties. The struct-of-arrays layout
// keeps the hot path (batched slice reads) a pointer-range operation.
type ScoreEntry struct {
	Docs   []uint32
	Scores []float32
}

// Len returns the number of scored documents for the term.
func (e *ScoreEntry) Len() int {
	return len(e.Docs)
}

// Slice returns the top-k prefix of the entry. k <= 0 or k beyond the
// entry length returns the full arrays.
func (e *ScoreEntry) Slice(k int) ([]uint32, []float32) {
	if k <= 0 || k >= len(e.Docs) {
		return e.Docs, e.Scores
	}
	return e.Docs[:k], e.Scores[:k]
}

// ScoreStore owns the per-term derived score arrays.
type ScoreStore struct {
	entries map[uint32]*ScoreEntry
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{
		entries: make(map[uint32]*ScoreEntry),
	}
}

func (s *ScoreStore) Get(termID uint32) (*ScoreEntry, bool) {
	e, ok := s.entries[termID]
	return e, ok
}

func (s *ScoreStore) Set(termID uint32, e *ScoreEntry) {
	s.entries[termID] = e
}

func (s *ScoreStore) Remove(termID uint32) {
	delete(s.entries, termID)
}

func (s *ScoreStore) Len() int {
	return len(s.entries)
}

// BuildEntry computes a fresh score entry for a term from its raw postings,
// document lengths, and the current corpus statistics. A term without
// postings yields nil.
func BuildEntry(postings map[uint32]uint32, docLen func(uint32) uint32, df uint32, p Params) *ScoreEntry {
	if len(postings) == 0 {
		return nil
	}
	idf := IDF(p.N, df)
	entry := &ScoreEntry{
		Docs:   make([]uint32, 0, len(postings)),
		Scores: make([]float32, 0, len(postings)),
	}
	for docID, tf := range postings {
		entry.Docs = append(entry.Docs, docID)
		entry.Scores = append(entry.Scores, float32(Score(tf, docLen(docID), idf, p)))
	}
	order := make([]int, len(entry.Docs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if entry.Scores[i] != entry.Scores[j] {
			return entry.Scores[i] > entry.Scores[j]
		}
		return entry.Docs[i] < entry.Docs[j]
	})
	sorted := &ScoreEntry{
		Docs:   make([]uint32, len(order)),
		Scores: make([]float32, len(order)),
	}
	for pos, i := range order {
		sorted.Docs[pos] = entry.Docs[i]
		sorted.Scores[pos] = entry.Scores[i]
	}
	return sorted
}
