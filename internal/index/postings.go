package index

// PostingStore owns the raw (doc_id, term_id, tf) tuples. Both iteration
// directions are materialised: by term for score rebuilds, by doc for
// deletes.
type PostingStore struct {
	byTerm map[uint32]map[uint32]uint32
	byDoc  map[uint32]map[uint32]uint32
}

func NewPostingStore() *PostingStore {
	return &PostingStore{
		byTerm: make(map[uint32]map[uint32]uint32),
		byDoc:  make(map[uint32]map[uint32]uint32),
	}
}

// Insert records tf for the (doc, term) pair. tf must be positive; a
// repeated pair overwrites.
func (p *PostingStore) Insert(docID, termID, tf uint32) {
	docs, ok := p.byTerm[termID]
	if !ok {
		docs = make(map[uint32]uint32)
		p.byTerm[termID] = docs
	}
	docs[docID] = tf

	terms, ok := p.byDoc[docID]
	if !ok {
		terms = make(map[uint32]uint32)
		p.byDoc[docID] = terms
	}
	terms[termID] = tf
}

// DeleteByDoc removes every posting of a document and returns the term ids
// that lost a posting.
func (p *PostingStore) DeleteByDoc(docID uint32) []uint32 {
	terms, ok := p.byDoc[docID]
	if !ok {
		return nil
	}
	affected := make([]uint32, 0, len(terms))
	for termID := range terms {
		affected = append(affected, termID)
		docs := p.byTerm[termID]
		delete(docs, docID)
		if len(docs) == 0 {
			delete(p.byTerm, termID)
		}
	}
	delete(p.byDoc, docID)
	return affected
}

// ByTerm returns all (doc, tf) postings of a term. The returned map is the
// store's own; callers must not mutate it.
func (p *PostingStore) ByTerm(termID uint32) map[uint32]uint32 {
	return p.byTerm[termID]
}

// ByDoc returns all (term, tf) postings of a document. The returned map is
// the store's own; callers must not mutate it.
func (p *PostingStore) ByDoc(docID uint32) map[uint32]uint32 {
	return p.byDoc[docID]
}
