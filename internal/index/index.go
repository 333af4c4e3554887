// Package index implements the in-memory core of the search engine: the
// term dictionary, document store, posting store, and the per-term BM25
// score arrays, together with the corpus statistics they depend on.
//
// The Index is single-writer, many-reader. Mutations return a ChangeSet so
// the caller can mirror them into the backing store inside one transaction.
package index

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// AnalyzedDoc is a document after tokenisation: its external key, term
// frequency multiset, and total term count.
type AnalyzedDoc struct {
	Key    string
	Length int
	Terms  map[string]int
}

// AddedDoc records a document created by an insert.
type AddedDoc struct {
	ID     uint32
	Key    string
	Length uint32
}

// PostingRow is one (doc, term, tf) tuple added by an insert.
type PostingRow struct {
	DocID  uint32
	TermID uint32
	TF     uint32
}

// Stats are the corpus statistics maintained after every mutation. Empty
// documents count towards N but are excluded from the average document
// length.
type Stats struct {
	N          int
	TotalLen   uint64
	NonEmpty   int
	NextDocID  uint32
	NextTermID uint32
}

// AvgDL returns the mean length over non-empty live documents.
func (s Stats) AvgDL() float64 {
	if s.NonEmpty == 0 {
		return 0
	}
	return float64(s.TotalLen) / float64(s.NonEmpty)
}

// ChangeSet describes the mutations of one logical insert or delete so the
// backing store can apply them transactionally.
type ChangeSet struct {
	AddedDocs   []AddedDoc
	RemovedDocs []uint32
	NewTerms    map[uint32]string
	DF          map[uint32]uint32
	Postings    []PostingRow
	// Scores maps every affected term to its rebuilt entry; a nil entry
	// means the term no longer has live postings and its row is removed.
	Scores map[uint32]*ScoreEntry
	Stats  Stats
}

// TermSlice is the truncated posting slice of one query term.
type TermSlice struct {
	TermID uint32
	Docs   []uint32
	Scores []float32
}

// Index ties the dictionary, document store, posting store, and score store
// together under a single-writer lock.
type Index struct {
	mu       sync.RWMutex
	dict     *Dictionary
	docs     *DocStore
	postings *PostingStore
	scores   *ScoreStore
	k1       float64
	b        float64
	totalLen uint64
	nonEmpty int
}

func New(k1, b float64) *Index {
	return &Index{
		dict:     NewDictionary(),
		docs:     NewDocStore(),
		postings: NewPostingStore(),
		scores:   NewScoreStore(),
		k1:       k1,
		b:        b,
	}
}

// Insert ingests a batch of analysed documents: it writes lengths, postings,
// and df deltas, refreshes the corpus statistics, and rebuilds the score
// entries of every affected term in parallel. Documents whose external key
// already exists are skipped and returned.
func (ix *Index) Insert(ctx context.Context, batch []AnalyzedDoc, njobs int) (*ChangeSet, []string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cs := &ChangeSet{
		NewTerms: make(map[uint32]string),
		DF:       make(map[uint32]uint32),
		Scores:   make(map[uint32]*ScoreEntry),
	}
	var skipped []string
	affected := make(map[uint32]struct{})

	for _, doc := range batch {
		id, err := ix.docs.Create(doc.Key, uint32(doc.Length))
		if err != nil {
			skipped = append(skipped, doc.Key)
			continue
		}
		cs.AddedDocs = append(cs.AddedDocs, AddedDoc{ID: id, Key: doc.Key, Length: uint32(doc.Length)})
		if doc.Length > 0 {
			ix.totalLen += uint64(doc.Length)
			ix.nonEmpty++
		}
		for surface, tf := range doc.Terms {
			termID, fresh := ix.dict.Intern(surface)
			if fresh {
				cs.NewTerms[termID] = surface
			}
			ix.dict.BumpDF(termID, 1)
			cs.DF[termID] = ix.dict.DF(termID)
			ix.postings.Insert(id, termID, uint32(tf))
			cs.Postings = append(cs.Postings, PostingRow{DocID: id, TermID: termID, TF: uint32(tf)})
			affected[termID] = struct{}{}
		}
	}

	if err := ix.rebuild(ctx, affected, njobs, cs); err != nil {
		return nil, nil, err
	}
	cs.Stats = ix.statsLocked()
	return cs, skipped, nil
}

// Delete removes documents by id, repairs df, refreshes statistics, and
// rebuilds the score entries that referenced a deleted document. Unknown
// ids are ignored.
func (ix *Index) Delete(ctx context.Context, ids []uint32, njobs int) (*ChangeSet, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cs := &ChangeSet{
		NewTerms: make(map[uint32]string),
		DF:       make(map[uint32]uint32),
		Scores:   make(map[uint32]*ScoreEntry),
	}
	affected := make(map[uint32]struct{})

	for _, id := range ids {
		info, ok := ix.docs.Get(id)
		if !ok {
			continue
		}
		for _, termID := range ix.postings.DeleteByDoc(id) {
			ix.dict.BumpDF(termID, -1)
			cs.DF[termID] = ix.dict.DF(termID)
			affected[termID] = struct{}{}
		}
		if info.Length > 0 {
			ix.totalLen -= uint64(info.Length)
			ix.nonEmpty--
		}
		ix.docs.Delete(id)
		cs.RemovedDocs = append(cs.RemovedDocs, id)
	}

	if err := ix.rebuild(ctx, affected, njobs, cs); err != nil {
		return nil, err
	}
	cs.Stats = ix.statsLocked()
	return cs, nil
}

// rebuild recomputes the score entries of the affected terms against the
// current statistics. Entries are computed in parallel and installed
// serially; a failed rebuild leaves the store untouched.
func (ix *Index) rebuild(ctx context.Context, affected map[uint32]struct{}, njobs int, cs *ChangeSet) error {
	if len(affected) == 0 {
		return nil
	}
	terms := make([]uint32, 0, len(affected))
	for termID := range affected {
		terms = append(terms, termID)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i] < terms[j] })

	params := Params{
		K1:    ix.k1,
		B:     ix.b,
		N:     ix.docs.Count(),
		AvgDL: ix.statsLocked().AvgDL(),
	}
	entries := make([]*ScoreEntry, len(terms))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(Jobs(njobs))
	for i, termID := range terms {
		i, termID := i, termID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries[i] = BuildEntry(ix.postings.ByTerm(termID), ix.docs.Length, ix.dict.DF(termID), params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, termID := range terms {
		if entries[i] == nil {
			ix.scores.Remove(termID)
		} else {
			ix.scores.Set(termID, entries[i])
		}
		cs.Scores[termID] = entries[i]
	}
	return nil
}

func (ix *Index) statsLocked() Stats {
	return Stats{
		N:          ix.docs.Count(),
		TotalLen:   ix.totalLen,
		NonEmpty:   ix.nonEmpty,
		NextDocID:  ix.docs.nextID,
		NextTermID: ix.dict.nextID,
	}
}

// Stats returns the current corpus statistics.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.statsLocked()
}

// FetchSlices resolves the unique surfaces of a query batch to their
// truncated posting slices in one consistent snapshot. Unknown terms and
// terms without live postings are absent from the result. The returned
// slices are immutable: rebuilds install fresh arrays, they never mutate
// published ones.
func (ix *Index) FetchSlices(surfaces []string, topKToken int) map[string]TermSlice {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make(map[string]TermSlice, len(surfaces))
	for _, surface := range surfaces {
		if _, done := out[surface]; done {
			continue
		}
		termID, ok := ix.dict.Lookup(surface)
		if !ok {
			continue
		}
		entry, ok := ix.scores.Get(termID)
		if !ok {
			continue
		}
		docs, scores := entry.Slice(topKToken)
		out[surface] = TermSlice{TermID: termID, Docs: docs, Scores: scores}
	}
	return out
}

// DocKey returns the external key of a live document.
func (ix *Index) DocKey(id uint32) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	info, ok := ix.docs.Get(id)
	return info.Key, ok
}

// DocIDsByKeys resolves external keys to doc ids, skipping unknown keys.
func (ix *Index) DocIDsByKeys(keys []string) []uint32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.docs.IDsByKeys(keys)
}

// DocIDByKey resolves one external key.
func (ix *Index) DocIDByKey(key string) (uint32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.docs.IDByKey(key)
}

// HasKey reports whether an external key is live, used for ingest
// deduplication before tokenisation.
func (ix *Index) HasKey(key string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.docs.IDByKey(key)
	return ok
}

// Restore methods rebuild the in-memory state from the backing store at
// open. They assume no concurrent access.

func (ix *Index) RestoreDoc(id uint32, key string, length uint32) {
	ix.docs.Restore(id, key, length)
}

func (ix *Index) RestoreTerm(id uint32, surface string, df uint32) {
	ix.dict.Restore(id, surface, df)
}

func (ix *Index) RestorePosting(docID, termID, tf uint32) {
	ix.postings.Insert(docID, termID, tf)
}

func (ix *Index) RestoreScores(termID uint32, entry *ScoreEntry) {
	ix.scores.Set(termID, entry)
}

func (ix *Index) RestoreStats(s Stats) {
	ix.totalLen = s.TotalLen
	ix.nonEmpty = s.NonEmpty
	if s.NextDocID > ix.docs.nextID {
		ix.docs.nextID = s.NextDocID
	}
	if s.NextTermID > ix.dict.nextID {
		ix.dict.nextID = s.NextTermID
	}
}

// Verify-style accessors used by tests and the storage layer.

func (ix *Index) DF(surface string) uint32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	termID, ok := ix.dict.Lookup(surface)
	if !ok {
		return 0
	}
	return ix.dict.DF(termID)
}

func (ix *Index) ScoreEntry(surface string) (*ScoreEntry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	termID, ok := ix.dict.Lookup(surface)
	if !ok {
		return nil, false
	}
	return ix.scores.Get(termID)
}

// Jobs resolves an n_jobs setting: values <= 0 mean all cores.
func Jobs(njobs int) int {
	if njobs <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return njobs
}
