package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okapisearch/okapi/internal/evaluation"
	"github.com/okapisearch/okapi/internal/ingest"
	"github.com/okapisearch/okapi/internal/searcher/executor"
	"github.com/okapisearch/okapi/internal/storage"
	"github.com/okapisearch/okapi/pkg/config"
	"github.com/okapisearch/okapi/pkg/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Path = filepath.Join(t.TempDir(), "okapi.db")
	cfg.Redis.Addr = ""
	return cfg
}

func openTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	eng, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func doc(key, title string, extra map[string]any) ingest.Record {
	fields := map[string]any{"title": title}
	for k, v := range extra {
		fields[k] = v
	}
	return ingest.Record{Key: key, Fields: fields}
}

func TestUploadAndSearchDocuments(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	summary, err := eng.UploadDocuments(ctx, []ingest.Record{
		doc("d1", "the empire strikes back", nil),
		doc("d2", "return of the jedi", nil),
		doc("d3", "a new hope", nil),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Inserted)
	assert.Zero(t, summary.Skipped)
	assert.Equal(t, 3, summary.Tables["documents_docs"])

	results, err := eng.SearchDocuments(ctx, executor.Request{Queries: []string{"empire"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotEmpty(t, results[0].Hits)
	assert.Equal(t, "d1", results[0].Hits[0].Key)
	assert.Equal(t, "the empire strikes back", results[0].Hits[0].Row["title"])
}

func TestUploadSkipsDuplicatesAndInvalid(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := eng.UploadDocuments(ctx, []ingest.Record{doc("d1", "first", nil)}, nil)
	require.NoError(t, err)

	summary, err := eng.UploadDocuments(ctx, []ingest.Record{
		doc("d1", "changed", nil),
		doc("d2", "second", nil),
		doc("d2", "in-batch duplicate", nil),
		{Key: " ", Fields: map[string]any{"title": "no key"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)

	// The original d1 row is untouched.
	results, err := eng.SearchDocuments(ctx, executor.Request{Queries: []string{"first"}})
	require.NoError(t, err)
	require.NotEmpty(t, results[0].Hits)
	assert.Equal(t, "d1", results[0].Hits[0].Key)
}

func TestDeleteDocumentsRepairsSearch(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := eng.UploadDocuments(ctx, []ingest.Record{
		doc("d1", "shared term alpha", nil),
		doc("d2", "shared term beta", nil),
	}, nil)
	require.NoError(t, err)

	summary, err := eng.DeleteDocuments(ctx, []string{"d1", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, 1, summary.Skipped)

	results, err := eng.SearchDocuments(ctx, executor.Request{Queries: []string{"shared"}})
	require.NoError(t, err)
	require.Len(t, results[0].Hits, 1)
	assert.Equal(t, "d2", results[0].Hits[0].Key)

	// The key can be reused after deletion.
	reup, err := eng.UploadDocuments(ctx, []ingest.Record{doc("d1", "fresh content alpha", nil)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reup.Inserted)
}

func TestDeleteAllThenSearch(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := eng.UploadDocuments(ctx, []ingest.Record{doc("d1", "lonely", nil)}, nil)
	require.NoError(t, err)
	_, err = eng.DeleteDocuments(ctx, []string{"d1"})
	require.NoError(t, err)

	results, err := eng.SearchDocuments(ctx, executor.Request{Queries: []string{"lonely"}})
	require.NoError(t, err)
	assert.Empty(t, results[0].Hits)
}

func TestSearchWithFilters(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := eng.UploadDocuments(ctx, []ingest.Record{
		doc("d1", "space opera", map[string]any{"year": 1977.0}),
		doc("d2", "space drama", map[string]any{"year": 2014.0}),
	}, nil)
	require.NoError(t, err)

	results, err := eng.SearchDocuments(ctx, executor.Request{
		Queries: []string{"space"},
		Filters: "year > 2000",
	})
	require.NoError(t, err)
	require.Len(t, results[0].Hits, 1)
	assert.Equal(t, "d2", results[0].Hits[0].Key)

	// An invalid predicate fails that query alone, yielding empty hits.
	results, err = eng.SearchDocuments(ctx, executor.Request{
		Queries: []string{"space"},
		Filters: "no_such_column = 1",
	})
	require.NoError(t, err)
	assert.Empty(t, results[0].Hits)
}

func TestGraphSearchBoostsEdgeDocuments(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := eng.UploadDocuments(ctx, []ingest.Record{
		doc("d1", "galactic empire history", nil),
		doc("d2", "empire of ants", nil),
	}, nil)
	require.NoError(t, err)

	summary, err := eng.UploadQueries(ctx,
		[]string{"galactic empire"},
		[]ingest.EdgeSpec{
			{DocumentKey: "d2", QueryText: "galactic empire", Weight: 1},
			{DocumentKey: "ghost", QueryText: "galactic empire"},
		})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.EdgesAdded)
	assert.Equal(t, 1, summary.EdgesSkipped)

	plain, err := eng.SearchDocuments(ctx, executor.Request{Queries: []string{"galactic empire"}})
	require.NoError(t, err)
	require.Equal(t, "d1", plain[0].Hits[0].Key)

	boosted, err := eng.SearchGraphs(ctx, executor.Request{Queries: []string{"galactic empire"}}, false)
	require.NoError(t, err)
	require.NotEmpty(t, boosted[0].Hits)
	// The edge through the stored query lifts d2 above d1.
	assert.Equal(t, "d2", boosted[0].Hits[0].Key)

	var plainD2 float64
	for _, h := range plain[0].Hits {
		if h.Key == "d2" {
			plainD2 = h.Score
		}
	}
	assert.Greater(t, boosted[0].Hits[0].Score, plainD2)
}

func TestGraphSearchAfterDocumentDeletion(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := eng.UploadDocuments(ctx, []ingest.Record{
		doc("d1", "standing document zulu", nil),
		doc("d2", "doomed document zulu", nil),
	}, nil)
	require.NoError(t, err)
	_, err = eng.UploadQueries(ctx,
		[]string{"zulu"},
		[]ingest.EdgeSpec{{DocumentKey: "d2", QueryText: "zulu"}})
	require.NoError(t, err)

	_, err = eng.DeleteDocuments(ctx, []string{"d2"})
	require.NoError(t, err)

	results, err := eng.SearchGraphs(ctx, executor.Request{Queries: []string{"zulu"}}, false)
	require.NoError(t, err)
	for _, hit := range results[0].Hits {
		assert.NotEqual(t, "d2", hit.Key)
	}
}

func TestSearchQueriesIndex(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := eng.UploadQueries(ctx, []string{"star wars trivia", "cooking pasta"}, nil)
	require.NoError(t, err)

	results, err := eng.SearchQueries(ctx, executor.Request{Queries: []string{"pasta recipes"}})
	require.NoError(t, err)
	require.NotEmpty(t, results[0].Hits)
	assert.Equal(t, "cooking pasta", results[0].Hits[0].Key)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	eng := openTestEngine(t, cfg)
	_, err := eng.UploadDocuments(ctx, []ingest.Record{
		doc("d1", "persistent knowledge", nil),
	}, nil)
	require.NoError(t, err)
	_, err = eng.UploadQueries(ctx,
		[]string{"knowledge"},
		[]ingest.EdgeSpec{{DocumentKey: "d1", QueryText: "knowledge"}})
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.SearchDocuments(ctx, executor.Request{Queries: []string{"knowledge"}})
	require.NoError(t, err)
	require.NotEmpty(t, results[0].Hits)
	assert.Equal(t, "d1", results[0].Hits[0].Key)
	assert.Equal(t, "persistent knowledge", results[0].Hits[0].Row["title"])

	graph, err := reopened.SearchGraphs(ctx, executor.Request{Queries: []string{"knowledge"}}, false)
	require.NoError(t, err)
	require.NotEmpty(t, graph[0].Hits)
	assert.Greater(t, graph[0].Hits[0].Score, results[0].Hits[0].Score)
}

func TestPersistedSettingsWinOverConfig(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	eng := openTestEngine(t, cfg)
	_, err := eng.UploadDocuments(ctx, []ingest.Record{doc("d1", "settled", nil)}, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	cfg.Index.K1 = 9.9
	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	// Scores computed with the persisted k1 still match on reload; a
	// fresh upload keeps using them consistently.
	results, err := reopened.SearchDocuments(ctx, executor.Request{Queries: []string{"settled"}})
	require.NoError(t, err)
	require.NotEmpty(t, results[0].Hits)
}

func TestUploadDocumentsIndexedFields(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	eng := openTestEngine(t, cfg)
	_, err := eng.UploadDocuments(ctx, []ingest.Record{
		{Key: "d1", Fields: map[string]any{"title": "solar panels", "notes": "windmill maintenance"}},
	}, []string{"title"})
	require.NoError(t, err)

	results, err := eng.SearchDocuments(ctx, executor.Request{Queries: []string{"windmill"}})
	require.NoError(t, err)
	assert.Empty(t, results[0].Hits)

	results, err = eng.SearchDocuments(ctx, executor.Request{Queries: []string{"solar"}})
	require.NoError(t, err)
	require.NotEmpty(t, results[0].Hits)
	// The unindexed column is still stored and hydrated.
	assert.Equal(t, "windmill maintenance", results[0].Hits[0].Row["notes"])

	// The list is fixed at first build; a later upload cannot widen it.
	_, err = eng.UploadDocuments(ctx, []ingest.Record{
		{Key: "d2", Fields: map[string]any{"title": "quiet rooftop", "notes": "turbine blades"}},
	}, []string{"notes"})
	require.NoError(t, err)
	results, err = eng.SearchDocuments(ctx, executor.Request{Queries: []string{"turbine"}})
	require.NoError(t, err)
	assert.Empty(t, results[0].Hits)
	require.NoError(t, eng.Close())

	// The restriction survives a reopen.
	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()
	_, err = reopened.UploadDocuments(ctx, []ingest.Record{
		{Key: "d3", Fields: map[string]any{"title": "harbor", "notes": "lighthouse keeper"}},
	}, nil)
	require.NoError(t, err)
	results, err = reopened.SearchDocuments(ctx, executor.Request{Queries: []string{"lighthouse"}})
	require.NoError(t, err)
	assert.Empty(t, results[0].Hits)
}

func TestUploadDocumentsUnknownIndexedField(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	_, err := eng.UploadDocuments(context.Background(), []ingest.Record{
		doc("d1", "anything", nil),
	}, []string{"missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestQuerySettingsUseActiveParameters(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	eng := openTestEngine(t, cfg)
	_, err := eng.UploadDocuments(ctx, []ingest.Record{doc("d1", "anchor", nil)}, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	// A reopen under a different configuration keeps the persisted k1; the
	// first query upload must record that value, not the new config's.
	cfg.Index.K1 = 9.9
	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()
	_, err = reopened.UploadQueries(ctx, []string{"anchor"}, nil)
	require.NoError(t, err)

	settings, found, err := reopened.store.LoadSettings(ctx, storage.SchemaQueries)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 1.5, settings.K1, 1e-9)
}

func TestSetStopwords(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	require.NoError(t, eng.SetStopwords(ctx, []string{"banana"}))
	_, err := eng.UploadDocuments(ctx, []ingest.Record{
		doc("d1", "banana bread", nil),
	}, nil)
	require.NoError(t, err)

	results, err := eng.SearchDocuments(ctx, executor.Request{Queries: []string{"banana"}})
	require.NoError(t, err)
	assert.Empty(t, results[0].Hits)

	results, err = eng.SearchDocuments(ctx, executor.Request{Queries: []string{"bread"}})
	require.NoError(t, err)
	assert.NotEmpty(t, results[0].Hits)
}

func TestEvaluate(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := eng.UploadDocuments(ctx, []ingest.Record{
		doc("d1", "rockets and rovers", nil),
		doc("d2", "gardening at home", nil),
	}, nil)
	require.NoError(t, err)

	qrels := evaluation.Qrels{
		"rockets":   {"d1": 1},
		"gardening": {"d2": 1},
	}
	report, err := eng.Evaluate(ctx, qrels, []string{"ndcg@10", "hits@1"}, executor.Request{TopK: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Queries)
	assert.InDelta(t, 1.0, report.Metrics["hits@1"], 1e-9)
	assert.InDelta(t, 1.0, report.Metrics["ndcg@10"], 1e-9)
}

func TestEmptyUploadIsNoop(t *testing.T) {
	eng := openTestEngine(t, testConfig(t))
	summary, err := eng.UploadDocuments(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Inserted)
}
