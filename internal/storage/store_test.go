package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okapisearch/okapi/internal/index"
	"github.com/okapisearch/okapi/pkg/config"
	"github.com/okapisearch/okapi/pkg/errors"
	"github.com/okapisearch/okapi/pkg/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StorageConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
	}
	client, err := sqlite.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return New(client, cfg)
}

func insertDocs(t *testing.T, s *Store, ix *index.Index, docs []index.AnalyzedDoc, rows []map[string]any) *index.ChangeSet {
	t.Helper()
	cs, skipped, err := ix.Insert(context.Background(), docs, 1)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.NoError(t, s.ApplyChangeSet(context.Background(), SchemaDocuments, cs, rows))
	return cs
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, nil))

	_, found, err := s.LoadSettings(ctx, SchemaDocuments)
	require.NoError(t, err)
	assert.False(t, found)

	want := Settings{
		K1:            1.5,
		B:             0.75,
		Stemmer:       "porter",
		Stopwords:     "a,b",
		Ignore:        `[^a-z]+`,
		StripAccents:  true,
		Lower:         true,
		Fields:        []Field{{Name: "title", Type: "TEXT"}, {Name: "url", Type: "TEXT"}},
		IndexedFields: "title",
	}
	require.NoError(t, s.SaveSettings(ctx, SchemaDocuments, want))

	got, found, err := s.LoadSettings(ctx, SchemaDocuments)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestStopwordsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, nil))

	words, err := s.LoadStopwords(ctx, SchemaDocuments)
	require.NoError(t, err)
	assert.Empty(t, words)

	require.NoError(t, s.SaveStopwords(ctx, SchemaDocuments, []string{"the", "a"}))
	words, err = s.LoadStopwords(ctx, SchemaDocuments)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"the", "a"}, words)

	// A second save replaces the list.
	require.NoError(t, s.SaveStopwords(ctx, SchemaDocuments, []string{"only"}))
	words, err = s.LoadStopwords(ctx, SchemaDocuments)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, words)
}

func TestApplyChangeSetAndLoadIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, nil))

	src := index.New(index.DefaultK1, index.DefaultB)
	insertDocs(t, s, src, []index.AnalyzedDoc{
		{Key: "a", Length: 3, Terms: map[string]int{"cat": 2, "dog": 1}},
		{Key: "b", Length: 1, Terms: map[string]int{"cat": 1}},
	}, nil)

	loaded := index.New(index.DefaultK1, index.DefaultB)
	require.NoError(t, s.LoadIndex(ctx, SchemaDocuments, loaded))

	assert.Equal(t, src.Stats(), loaded.Stats())
	assert.Equal(t, src.DF("cat"), loaded.DF("cat"))

	srcEntry, ok := src.ScoreEntry("cat")
	require.True(t, ok)
	gotEntry, ok := loaded.ScoreEntry("cat")
	require.True(t, ok)
	assert.Equal(t, srcEntry.Docs, gotEntry.Docs)
	assert.Equal(t, srcEntry.Scores, gotEntry.Scores)
}

func TestApplyChangeSetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, nil))

	ix := index.New(index.DefaultK1, index.DefaultB)
	insertDocs(t, s, ix, []index.AnalyzedDoc{
		{Key: "a", Length: 2, Terms: map[string]int{"shared": 1, "solo": 1}},
		{Key: "b", Length: 1, Terms: map[string]int{"shared": 1}},
	}, nil)

	idA, ok := ix.DocIDByKey("a")
	require.True(t, ok)
	cs, err := ix.Delete(ctx, []uint32{idA}, 1)
	require.NoError(t, err)
	require.NoError(t, s.ApplyChangeSet(ctx, SchemaDocuments, cs, nil))

	loaded := index.New(index.DefaultK1, index.DefaultB)
	require.NoError(t, s.LoadIndex(ctx, SchemaDocuments, loaded))

	assert.Equal(t, 1, loaded.Stats().N)
	assert.Equal(t, uint32(0), loaded.DF("solo"))
	_, ok = loaded.ScoreEntry("solo")
	assert.False(t, ok)
	_, ok = loaded.DocIDByKey("a")
	assert.False(t, ok)
}

func TestEdgesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, nil))

	edges := []EdgeRow{
		{DocumentID: 1, QueryID: 10, Weight: 1},
		{DocumentID: 2, QueryID: 10, Weight: 2.5},
	}
	require.NoError(t, s.InsertEdges(ctx, edges))

	// Same pair replaces.
	require.NoError(t, s.InsertEdges(ctx, []EdgeRow{{DocumentID: 1, QueryID: 10, Weight: 9}}))

	got, err := s.LoadEdges(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Removing a document drops its edges in the same change set.
	cs := &index.ChangeSet{RemovedDocs: []uint32{1}}
	require.NoError(t, s.ApplyChangeSet(ctx, SchemaDocuments, cs, nil))
	got, err = s.LoadEdges(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(2), got[0].DocumentID)
}

func TestFilterCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fields := []Field{{Name: "year", Type: "INTEGER"}, {Name: "genre", Type: "TEXT"}}
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, fields))

	ix := index.New(index.DefaultK1, index.DefaultB)
	insertDocs(t, s, ix, []index.AnalyzedDoc{
		{Key: "old", Length: 1, Terms: map[string]int{"x": 1}},
		{Key: "new", Length: 1, Terms: map[string]int{"x": 1}},
	}, []map[string]any{
		{"year": 1990, "genre": "drama"},
		{"year": 2020, "genre": "scifi"},
	})

	oldID, _ := ix.DocIDByKey("old")
	newID, _ := ix.DocIDByKey("new")

	keep, err := s.FilterCandidates(ctx, SchemaDocuments, []uint32{oldID, newID}, "year > 2000")
	require.NoError(t, err)
	assert.Len(t, keep, 1)
	_, ok := keep[newID]
	assert.True(t, ok)

	keep, err = s.FilterCandidates(ctx, SchemaDocuments, []uint32{oldID, newID}, "genre = 'drama' AND year < 2000")
	require.NoError(t, err)
	_, ok = keep[oldID]
	assert.True(t, ok)
}

func TestFilterCandidatesBadSQL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, nil))

	ix := index.New(index.DefaultK1, index.DefaultB)
	insertDocs(t, s, ix, []index.AnalyzedDoc{
		{Key: "a", Length: 1, Terms: map[string]int{"x": 1}},
	}, nil)

	_, err := s.FilterCandidates(ctx, SchemaDocuments, []uint32{0}, "no_such_column = 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestHydrate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fields := []Field{{Name: "title", Type: "TEXT"}}
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, fields))

	ix := index.New(index.DefaultK1, index.DefaultB)
	insertDocs(t, s, ix, []index.AnalyzedDoc{
		{Key: "a", Length: 1, Terms: map[string]int{"x": 1}},
	}, []map[string]any{{"title": "hello"}})

	id, _ := ix.DocIDByKey("a")
	rows, err := s.Hydrate(ctx, SchemaDocuments, []uint32{id})
	require.NoError(t, err)
	require.Contains(t, rows, id)
	assert.Equal(t, "hello", rows[id]["title"])
}

func TestAddFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, nil))
	require.NoError(t, s.AddFields(ctx, SchemaDocuments, []Field{{Name: "title", Type: "TEXT"}}))
	// Re-adding the same column is a no-op.
	require.NoError(t, s.AddFields(ctx, SchemaDocuments, []Field{{Name: "title", Type: "TEXT"}}))
	assert.Equal(t, []Field{{Name: "title", Type: "TEXT"}}, s.Fields(SchemaDocuments))

	err := s.AddFields(ctx, SchemaDocuments, []Field{{Name: "drop table;", Type: "TEXT"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestEnsureSchemaRejectsBadFieldName(t *testing.T) {
	s := newTestStore(t)
	err := s.EnsureSchema(context.Background(), SchemaDocuments, []Field{{Name: "1bad", Type: "TEXT"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestTableSizes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, SchemaDocuments, nil))
	require.NoError(t, s.EnsureSchema(ctx, SchemaQueries, nil))

	ix := index.New(index.DefaultK1, index.DefaultB)
	insertDocs(t, s, ix, []index.AnalyzedDoc{
		{Key: "a", Length: 1, Terms: map[string]int{"x": 1}},
		{Key: "b", Length: 1, Terms: map[string]int{"x": 1}},
	}, nil)

	sizes, err := s.TableSizes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sizes["documents_docs"])
	assert.Equal(t, 0, sizes["queries_docs"])
	assert.Equal(t, 0, sizes["graph_edges"])
}
