package index

import (
	"github.com/okapisearch/okapi/pkg/errors"
)

// DocInfo is the in-memory record for a live document. The row columns stay
// in the backing store; only key and length are needed on the hot path.
type DocInfo struct {
	Key    string
	Length uint32
}

// DocStore assigns dense doc ids and tracks document lengths. Deleted ids
// are never reused so graph edges stay valid without cascading repair.
type DocStore struct {
	byKey  map[string]uint32
	docs   map[uint32]DocInfo
	nextID uint32
}

func NewDocStore() *DocStore {
	return &DocStore{
		byKey: make(map[string]uint32),
		docs:  make(map[uint32]DocInfo),
	}
}

// Create registers a document under its caller-supplied external key.
// A duplicate key returns the existing id and ErrConflict; the caller
// decides whether that is a skip or an update via delete+reinsert.
func (s *DocStore) Create(key string, length uint32) (uint32, error) {
	if id, ok := s.byKey[key]; ok {
		return id, errors.Newf(errors.ErrConflict, "external key %q", key)
	}
	id := s.nextID
	s.nextID++
	s.byKey[key] = id
	s.docs[id] = DocInfo{Key: key, Length: length}
	return id, nil
}

// Delete frees both the id and the external key. The id is not reused.
func (s *DocStore) Delete(id uint32) {
	info, ok := s.docs[id]
	if !ok {
		return
	}
	delete(s.byKey, info.Key)
	delete(s.docs, id)
}

func (s *DocStore) Get(id uint32) (DocInfo, bool) {
	info, ok := s.docs[id]
	return info, ok
}

func (s *DocStore) Length(id uint32) uint32 {
	return s.docs[id].Length
}

func (s *DocStore) IDByKey(key string) (uint32, bool) {
	id, ok := s.byKey[key]
	return id, ok
}

// IDsByKeys resolves the given external keys, silently skipping unknown
// ones.
func (s *DocStore) IDsByKeys(keys []string) []uint32 {
	ids := make([]uint32, 0, len(keys))
	for _, key := range keys {
		if id, ok := s.byKey[key]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *DocStore) Count() int {
	return len(s.docs)
}

// Restore re-creates a document with a known id when loading from the
// backing store.
func (s *DocStore) Restore(id uint32, key string, length uint32) {
	s.byKey[key] = id
	s.docs[id] = DocInfo{Key: key, Length: length}
	if id >= s.nextID {
		s.nextID = id + 1
	}
}
