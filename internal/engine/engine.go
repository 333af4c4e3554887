// Package engine wires the pieces of the search engine together: the two
// in-memory indexes (documents and stored queries), the SQLite store they
// are mirrored into, the query executors, the bipartite re-ranking graph,
// and the optional Redis result cache.
//
// The engine is single-writer: upload and delete operations serialise on a
// mutex while searches run concurrently against index snapshots.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okapisearch/okapi/internal/evaluation"
	"github.com/okapisearch/okapi/internal/graph"
	"github.com/okapisearch/okapi/internal/index"
	"github.com/okapisearch/okapi/internal/ingest"
	"github.com/okapisearch/okapi/internal/searcher/cache"
	"github.com/okapisearch/okapi/internal/searcher/executor"
	"github.com/okapisearch/okapi/internal/storage"
	"github.com/okapisearch/okapi/internal/tokenizer"
	"github.com/okapisearch/okapi/pkg/config"
	"github.com/okapisearch/okapi/pkg/errors"
	"github.com/okapisearch/okapi/pkg/metrics"
	pkgredis "github.com/okapisearch/okapi/pkg/redis"
	"github.com/okapisearch/okapi/pkg/resilience"
	"github.com/okapisearch/okapi/pkg/sqlite"
)

// queryField is the single user column of the stored-query table.
const queryField = "query"

// Summary reports the outcome of one upload or delete operation.
type Summary struct {
	Inserted     int            `json:"inserted"`
	Deleted      int            `json:"deleted,omitempty"`
	Skipped      int            `json:"skipped"`
	Failed       int            `json:"failed"`
	EdgesAdded   int            `json:"edges_added,omitempty"`
	EdgesSkipped int            `json:"edges_skipped,omitempty"`
	Tables       map[string]int `json:"tables,omitempty"`
}

// Engine is the full search engine over one SQLite database.
type Engine struct {
	cfg    *config.Config
	client *sqlite.Client
	store  *storage.Store

	docIndex   *index.Index
	queryIndex *index.Index
	tok        *tokenizer.Tokenizer
	tokCfg     tokenizer.Config
	k1, b      float64
	edges      *graph.EdgeSet

	// indexedFields holds the document columns contributing to the indexed
	// text; empty means every column. Fixed once the settings are persisted.
	indexedFields []string

	docExec   *executor.Executor
	queryExec *executor.Executor

	redis   *pkgredis.Client
	cache   *cache.QueryCache
	metrics *metrics.Metrics

	writeMu sync.Mutex
	logger  *slog.Logger

	docSettingsSaved   bool
	querySettingsSaved bool
}

// Option customises engine construction.
type Option func(*Engine)

// WithMetrics attaches a registered metrics set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Open loads or creates the engine state at the configured database path.
// Persisted index settings win over the configuration: parameters are fixed
// at first build and a mismatch is logged, not applied.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	client, err := sqlite.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", cfg.Storage.Path, err)
	}

	e := &Engine{
		cfg:    cfg,
		client: client,
		store:  storage.New(client, cfg.Storage),
		edges:  graph.NewEdgeSet(),
		logger: slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.store.EnsureSchema(ctx, storage.SchemaDocuments, nil); err != nil {
		client.Close()
		return nil, err
	}
	if err := e.store.EnsureSchema(ctx, storage.SchemaQueries, []storage.Field{{Name: queryField, Type: "TEXT"}}); err != nil {
		client.Close()
		return nil, err
	}

	k1, b := cfg.Index.K1, cfg.Index.B
	tokCfg := tokenizer.Config{
		Lower:        cfg.Index.Lower,
		StripAccents: cfg.Index.StripAccents,
		Ignore:       cfg.Index.Ignore,
		Stemmer:      cfg.Index.Stemmer,
	}

	settings, found, err := e.store.LoadSettings(ctx, storage.SchemaDocuments)
	if err != nil {
		client.Close()
		return nil, err
	}
	if found {
		e.docSettingsSaved = true
		if settings.K1 != k1 || settings.B != b || settings.Stemmer != cfg.Index.Stemmer {
			e.logger.Warn("index settings differ from configuration, keeping persisted values",
				"persisted_k1", settings.K1, "configured_k1", k1,
				"persisted_b", settings.B, "configured_b", b,
				"persisted_stemmer", settings.Stemmer, "configured_stemmer", cfg.Index.Stemmer,
			)
		}
		k1, b = settings.K1, settings.B
		tokCfg.Lower = settings.Lower
		tokCfg.StripAccents = settings.StripAccents
		tokCfg.Ignore = settings.Ignore
		tokCfg.Stemmer = settings.Stemmer
		if settings.IndexedFields != "" {
			e.indexedFields = strings.Split(settings.IndexedFields, ",")
		}
	}
	e.k1, e.b = k1, b
	if _, e.querySettingsSaved, err = e.store.LoadSettings(ctx, storage.SchemaQueries); err != nil {
		client.Close()
		return nil, err
	}

	stopwords, err := e.store.LoadStopwords(ctx, storage.SchemaDocuments)
	if err != nil {
		client.Close()
		return nil, err
	}
	if len(stopwords) > 0 {
		tokCfg.Stopwords, err = tokenizer.ResolveStopwords(stopwords, "")
	} else {
		tokCfg.Stopwords, err = tokenizer.ResolveStopwords(cfg.Index.Stopwords, cfg.Index.StopwordLang)
	}
	if err != nil {
		client.Close()
		return nil, err
	}

	if e.tok, err = tokenizer.New(tokCfg); err != nil {
		client.Close()
		return nil, err
	}
	e.tokCfg = tokCfg

	e.docIndex = index.New(k1, b)
	e.queryIndex = index.New(k1, b)
	if err := e.store.LoadIndex(ctx, storage.SchemaDocuments, e.docIndex); err != nil {
		client.Close()
		return nil, err
	}
	if err := e.store.LoadIndex(ctx, storage.SchemaQueries, e.queryIndex); err != nil {
		client.Close()
		return nil, err
	}

	edgeRows, err := e.store.LoadEdges(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	for _, row := range edgeRows {
		e.edges.Add(row.DocumentID, row.QueryID, row.Weight)
	}

	e.docExec = executor.New(storage.SchemaDocuments, e.docIndex, e.tok, e.store)
	e.queryExec = executor.New(storage.SchemaQueries, e.queryIndex, e.tok, e.store)

	if cfg.Redis.Addr != "" {
		e.redis, err = pkgredis.New(cfg.Redis)
		if err != nil {
			client.Close()
			return nil, err
		}
		e.cache = cache.New(e.redis, cfg.Redis)
	}

	docStats := e.docIndex.Stats()
	e.logger.Info("engine opened",
		"path", cfg.Storage.Path,
		"documents", docStats.N,
		"queries", e.queryIndex.Stats().N,
		"edges", e.edges.Len(),
	)
	return e, nil
}

// Close releases the database and cache connections.
func (e *Engine) Close() error {
	if e.redis != nil {
		e.redis.Close()
	}
	return e.client.Close()
}

// UploadDocuments ingests records into the document index. The whole call
// becomes visible atomically; duplicate keys are skipped and invalid records
// fail individually. indexFields names the columns contributing to the
// indexed text; empty means every column. The list is fixed at first build.
func (e *Engine) UploadDocuments(ctx context.Context, records []ingest.Record, indexFields []string) (*Summary, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	start := time.Now()

	sum := &Summary{}
	valid := e.screen(e.docIndex, records, sum)
	if len(valid) == 0 {
		return e.finishWrite(ctx, storage.SchemaDocuments, sum)
	}

	fields := inferFields(valid)
	if err := e.store.AddFields(ctx, storage.SchemaDocuments, fields); err != nil {
		return nil, err
	}
	fieldNames, err := e.resolveIndexedFields(indexFields, fields)
	if err != nil {
		return nil, err
	}
	if err := e.ensureSettings(ctx, storage.SchemaDocuments, e.indexedFields); err != nil {
		return nil, err
	}

	analyzed, err := e.analyze(ctx, valid, fieldNames)
	if err != nil {
		return nil, err
	}

	cs, skipped, err := e.docIndex.Insert(ctx, analyzed, e.cfg.Ingest.NJobs)
	if err != nil {
		return nil, fmt.Errorf("indexing documents: %w", err)
	}
	sum.Skipped += len(skipped)

	rows := alignRows(cs.AddedDocs, valid)
	if err := e.store.ApplyChangeSet(ctx, storage.SchemaDocuments, cs, rows); err != nil {
		return nil, err
	}
	sum.Inserted = len(cs.AddedDocs)

	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.WithLabelValues(storage.SchemaDocuments).Add(float64(sum.Inserted))
		e.metrics.DocsSkippedTotal.WithLabelValues("duplicate").Add(float64(len(skipped)))
		e.metrics.ScoreRebuildsTotal.WithLabelValues("ingest").Add(float64(len(cs.Scores)))
		e.metrics.IngestDuration.WithLabelValues(storage.SchemaDocuments).Observe(time.Since(start).Seconds())
	}
	e.logger.Info("documents uploaded",
		"inserted", sum.Inserted,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"terms_rebuilt", len(cs.Scores),
		"took", time.Since(start),
	)
	return e.finishWrite(ctx, storage.SchemaDocuments, sum)
}

// UploadQueries stores query texts in the query index and records the given
// document-query edges. Edges naming an unknown document or query are
// skipped and counted.
func (e *Engine) UploadQueries(ctx context.Context, texts []string, edgeSpecs []ingest.EdgeSpec) (*Summary, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	start := time.Now()

	records := make([]ingest.Record, 0, len(texts))
	for _, text := range texts {
		records = append(records, ingest.Record{
			Key:    text,
			Fields: map[string]any{queryField: text},
		})
	}
	sum := &Summary{}
	valid := e.screen(e.queryIndex, records, sum)

	if len(valid) > 0 {
		if err := e.ensureSettings(ctx, storage.SchemaQueries, nil); err != nil {
			return nil, err
		}
		analyzed, err := e.analyze(ctx, valid, []string{queryField})
		if err != nil {
			return nil, err
		}
		cs, skipped, err := e.queryIndex.Insert(ctx, analyzed, e.cfg.Ingest.NJobs)
		if err != nil {
			return nil, fmt.Errorf("indexing queries: %w", err)
		}
		sum.Skipped += len(skipped)
		rows := alignRows(cs.AddedDocs, valid)
		if err := e.store.ApplyChangeSet(ctx, storage.SchemaQueries, cs, rows); err != nil {
			return nil, err
		}
		sum.Inserted = len(cs.AddedDocs)
		if e.metrics != nil {
			e.metrics.DocsIndexedTotal.WithLabelValues(storage.SchemaQueries).Add(float64(sum.Inserted))
			e.metrics.IngestDuration.WithLabelValues(storage.SchemaQueries).Observe(time.Since(start).Seconds())
		}
	}

	if len(edgeSpecs) > 0 {
		var rows []storage.EdgeRow
		for _, spec := range edgeSpecs {
			docID, ok := e.docIndex.DocIDByKey(spec.DocumentKey)
			if !ok {
				sum.EdgesSkipped++
				continue
			}
			queryID, ok := e.queryIndex.DocIDByKey(spec.QueryText)
			if !ok {
				sum.EdgesSkipped++
				continue
			}
			weight := spec.Weight
			if weight == 0 {
				weight = graph.DefaultWeight
			}
			rows = append(rows, storage.EdgeRow{DocumentID: docID, QueryID: queryID, Weight: weight})
		}
		if err := e.store.InsertEdges(ctx, rows); err != nil {
			return nil, err
		}
		for _, row := range rows {
			e.edges.Add(row.DocumentID, row.QueryID, row.Weight)
		}
		sum.EdgesAdded = len(rows)
	}

	e.logger.Info("queries uploaded",
		"inserted", sum.Inserted,
		"skipped", sum.Skipped,
		"edges_added", sum.EdgesAdded,
		"edges_skipped", sum.EdgesSkipped,
		"took", time.Since(start),
	)
	return e.finishWrite(ctx, storage.SchemaQueries, sum)
}

// DeleteDocuments removes documents by external key. Unknown keys are
// ignored; edges of removed documents are dropped with them.
func (e *Engine) DeleteDocuments(ctx context.Context, keys []string) (*Summary, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	sum := &Summary{}
	unique := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	ids := e.docIndex.DocIDsByKeys(unique)
	sum.Skipped = len(unique) - len(ids)
	if len(ids) == 0 {
		return e.finishWrite(ctx, storage.SchemaDocuments, sum)
	}

	cs, err := e.docIndex.Delete(ctx, ids, e.cfg.Ingest.NJobs)
	if err != nil {
		return nil, fmt.Errorf("deleting documents: %w", err)
	}
	// The change set drops the documents' edges in the same transaction.
	if err := e.store.ApplyChangeSet(ctx, storage.SchemaDocuments, cs, nil); err != nil {
		return nil, err
	}
	e.edges.RemoveDocs(cs.RemovedDocs)
	sum.Deleted = len(cs.RemovedDocs)

	if e.metrics != nil {
		e.metrics.DocsDeletedTotal.WithLabelValues(storage.SchemaDocuments).Add(float64(sum.Deleted))
		e.metrics.ScoreRebuildsTotal.WithLabelValues("delete").Add(float64(len(cs.Scores)))
	}
	e.logger.Info("documents deleted",
		"deleted", sum.Deleted,
		"unknown_keys", sum.Skipped,
		"terms_rebuilt", len(cs.Scores),
	)
	return e.finishWrite(ctx, storage.SchemaDocuments, sum)
}

// SetStopwords replaces the runtime stopword list. It applies to future
// tokenisation only; already-indexed documents keep their terms.
func (e *Engine) SetStopwords(ctx context.Context, words []string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.store.SaveStopwords(ctx, storage.SchemaDocuments, words); err != nil {
		return err
	}
	set, err := tokenizer.ResolveStopwords(words, "")
	if err != nil {
		return err
	}
	cfg := e.tokenizerConfig()
	cfg.Stopwords = set
	tok, err := tokenizer.New(cfg)
	if err != nil {
		return err
	}
	e.tok = tok
	e.tokCfg = cfg
	e.docExec = executor.New(storage.SchemaDocuments, e.docIndex, e.tok, e.store)
	e.queryExec = executor.New(storage.SchemaQueries, e.queryIndex, e.tok, e.store)
	return nil
}

// SearchDocuments runs a batched BM25 search over the document index.
func (e *Engine) SearchDocuments(ctx context.Context, req executor.Request) ([]executor.Result, error) {
	e.applyDefaults(&req, e.cfg.Search.TopKToken)
	return e.search(ctx, "documents", e.docExec, req)
}

// SearchQueries runs a batched BM25 search over the stored-query index.
func (e *Engine) SearchQueries(ctx context.Context, req executor.Request) ([]executor.Result, error) {
	e.applyDefaults(&req, e.cfg.Search.TopKToken)
	return e.search(ctx, "queries", e.queryExec, req)
}

// SearchGraphs runs the hybrid search: BM25 over documents and stored
// queries with the reduced token budget, recombined through the edge set.
// Random tiebreaking disables the cache since its output is nondeterministic.
func (e *Engine) SearchGraphs(ctx context.Context, req executor.Request, randomTiebreak bool) ([]executor.Result, error) {
	e.applyDefaults(&req, e.cfg.Search.GraphTopKToken)

	compute := func() ([]executor.Result, error) {
		var results []executor.Result
		err := resilience.WithTimeout(ctx, e.cfg.Search.Timeout, func(ctx context.Context) error {
			var err error
			results, err = e.searchGraphs(ctx, req, randomTiebreak)
			return err
		})
		return results, err
	}

	start := time.Now()
	var (
		results []executor.Result
		hit     bool
		err     error
	)
	if e.cache != nil && !randomTiebreak {
		results, hit, err = e.cache.GetOrCompute(ctx, "graphs", req, compute)
	} else {
		results, err = compute()
	}
	if err != nil {
		return nil, err
	}
	e.observeSearch("graphs", req, results, hit, time.Since(start))
	return results, nil
}

func (e *Engine) searchGraphs(ctx context.Context, req executor.Request, randomTiebreak bool) ([]executor.Result, error) {
	docResults, err := e.docExec.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	// Filters and ordering address document columns; the stored-query side
	// runs plain BM25.
	queryReq := req
	queryReq.Filters = ""
	queryReq.OrderBy = ""
	queryResults, err := e.queryExec.Search(ctx, queryReq)
	if err != nil {
		return nil, err
	}

	results := make([]executor.Result, len(docResults))
	for i := range docResults {
		bq := make(map[uint32]float64, len(queryResults[i].Hits))
		for _, h := range queryResults[i].Hits {
			bq[h.DocID] = h.Score
		}
		hits := e.edges.Rerank(docResults[i].Hits, bq, graph.Options{
			TopK:           req.TopK,
			RandomTiebreak: randomTiebreak,
			Live: func(docID uint32) bool {
				_, ok := e.docIndex.DocKey(docID)
				return ok
			},
		})
		if err := e.completeHits(ctx, hits); err != nil {
			return nil, err
		}
		results[i] = executor.Result{
			Query:   docResults[i].Query,
			Hits:    hits,
			Partial: docResults[i].Partial || queryResults[i].Partial,
		}
	}
	return results, nil
}

// completeHits fills keys and rows of documents that entered the ranking
// through an edge alone.
func (e *Engine) completeHits(ctx context.Context, hits []executor.Hit) error {
	var missing []uint32
	for i := range hits {
		if hits[i].Key != "" {
			continue
		}
		key, ok := e.docIndex.DocKey(hits[i].DocID)
		if !ok {
			continue
		}
		hits[i].Key = key
		missing = append(missing, hits[i].DocID)
	}
	if len(missing) == 0 {
		return nil
	}
	rows, err := e.store.Hydrate(ctx, storage.SchemaDocuments, missing)
	if err != nil {
		return err
	}
	for i := range hits {
		if hits[i].Row == nil {
			hits[i].Row = rows[hits[i].DocID]
		}
	}
	return nil
}

// Evaluate searches the qrels' queries over the document index and reports
// the requested metrics.
func (e *Engine) Evaluate(ctx context.Context, qrels evaluation.Qrels, metricNames []string, req executor.Request) (evaluation.Report, error) {
	queries := make([]string, 0, len(qrels))
	for q := range qrels {
		queries = append(queries, q)
	}
	sort.Strings(queries)
	req.Queries = queries

	results, err := e.SearchDocuments(ctx, req)
	if err != nil {
		return evaluation.Report{}, err
	}
	return evaluation.Evaluate(qrels, results, metricNames)
}

// TableSizes reports the row counts of the main tables.
func (e *Engine) TableSizes(ctx context.Context) (map[string]int, error) {
	return e.store.TableSizes(ctx)
}

// search runs a request through one executor, consulting the cache when
// enabled.
func (e *Engine) search(ctx context.Context, kind string, exec *executor.Executor, req executor.Request) ([]executor.Result, error) {
	compute := func() ([]executor.Result, error) {
		var results []executor.Result
		err := resilience.WithTimeout(ctx, e.cfg.Search.Timeout, func(ctx context.Context) error {
			var err error
			results, err = exec.Search(ctx, req)
			return err
		})
		return results, err
	}

	start := time.Now()
	var (
		results []executor.Result
		hit     bool
		err     error
	)
	if e.cache != nil {
		results, hit, err = e.cache.GetOrCompute(ctx, kind, req, compute)
	} else {
		results, err = compute()
	}
	if err != nil {
		return nil, err
	}
	e.observeSearch(kind, req, results, hit, time.Since(start))
	return results, nil
}

func (e *Engine) observeSearch(kind string, req executor.Request, results []executor.Result, cacheHit bool, took time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(kind).Add(float64(len(req.Queries)))
	e.metrics.SearchLatency.WithLabelValues(kind).Observe(took.Seconds())
	for _, res := range results {
		e.metrics.SearchResultsCount.Observe(float64(len(res.Hits)))
		if res.Partial {
			e.metrics.PartialResults.Inc()
		}
	}
	if cacheHit {
		e.metrics.CacheHitsTotal.Inc()
	} else if e.cache != nil {
		e.metrics.CacheMissesTotal.Inc()
	}
}

func (e *Engine) applyDefaults(req *executor.Request, topKToken int) {
	if req.TopK <= 0 {
		req.TopK = e.cfg.Search.TopK
	}
	if req.TopKToken <= 0 {
		req.TopKToken = topKToken
	}
	if req.BatchSize <= 0 {
		req.BatchSize = e.cfg.Search.BatchSize
	}
	if req.NJobs == 0 {
		req.NJobs = e.cfg.Search.NJobs
	}
}

// screen validates records and drops keys already indexed or repeated
// within the call, before any tokenisation work is spent on them.
func (e *Engine) screen(ix *index.Index, records []ingest.Record, sum *Summary) []ingest.Record {
	seen := make(map[string]struct{}, len(records))
	valid := make([]ingest.Record, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			sum.Failed++
			if e.metrics != nil {
				e.metrics.DocsSkippedTotal.WithLabelValues("invalid").Inc()
			}
			continue
		}
		_, dup := seen[rec.Key]
		if dup || ix.HasKey(rec.Key) {
			sum.Skipped++
			if e.metrics != nil {
				e.metrics.DocsSkippedTotal.WithLabelValues("duplicate").Inc()
			}
			continue
		}
		seen[rec.Key] = struct{}{}
		valid = append(valid, rec)
	}
	return valid
}

// analyze tokenises records in parallel batches. Batching only bounds the
// unit of work; visibility is decided by the single index insert that
// follows.
func (e *Engine) analyze(ctx context.Context, records []ingest.Record, fieldNames []string) ([]index.AnalyzedDoc, error) {
	analyzed := make([]index.AnalyzedDoc, len(records))
	batchSize := e.cfg.Ingest.BatchSize
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(index.Jobs(e.cfg.Ingest.NJobs))
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		start := start
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				counts, length := e.tok.Counts(records[i].Text(fieldNames))
				analyzed[i] = index.AnalyzedDoc{
					Key:    records[i].Key,
					Length: length,
					Terms:  counts,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tokenizing records: %w", err)
	}
	return analyzed, nil
}

// ensureSettings persists the index settings at first build, using the
// parameters the engine actually runs with.
func (e *Engine) ensureSettings(ctx context.Context, schema string, indexed []string) error {
	saved := &e.docSettingsSaved
	if schema == storage.SchemaQueries {
		saved = &e.querySettingsSaved
	}
	if *saved {
		return nil
	}
	cfg := e.tokenizerConfig()
	err := e.store.SaveSettings(ctx, schema, storage.Settings{
		K1:            e.k1,
		B:             e.b,
		Stemmer:       cfg.Stemmer,
		Stopwords:     strings.Join(e.cfg.Index.Stopwords, ","),
		Ignore:        cfg.Ignore,
		StripAccents:  cfg.StripAccents,
		Lower:         cfg.Lower,
		Fields:        e.store.Fields(schema),
		IndexedFields: strings.Join(indexed, ","),
	})
	if err != nil {
		return err
	}
	*saved = true
	return nil
}

// resolveIndexedFields picks the columns contributing to the indexed text.
// Once the document settings are persisted the list is fixed; an empty list
// means every column, including ones added by later uploads.
func (e *Engine) resolveIndexedFields(requested []string, fields []storage.Field) ([]string, error) {
	all := make([]string, len(fields))
	known := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		all[i] = f.Name
		known[f.Name] = struct{}{}
	}
	if e.docSettingsSaved {
		if len(requested) > 0 && !slices.Equal(requested, e.indexedFields) {
			e.logger.Warn("indexed fields are fixed at first build, keeping persisted list",
				"persisted", e.indexedFields, "requested", requested)
		}
		if len(e.indexedFields) == 0 {
			return all, nil
		}
		return e.indexedFields, nil
	}
	if len(requested) == 0 {
		return all, nil
	}
	for _, name := range requested {
		if _, ok := known[name]; !ok {
			return nil, errors.Newf(errors.ErrInvalidInput, "indexed field %q not present in the uploaded rows", name)
		}
	}
	e.indexedFields = append([]string(nil), requested...)
	return e.indexedFields, nil
}

// tokenizerConfig returns the active tokeniser options (persisted settings
// already overrode the configuration at Open) without the stopword set.
func (e *Engine) tokenizerConfig() tokenizer.Config {
	cfg := e.tokCfg
	cfg.Stopwords = nil
	return cfg
}

// finishWrite invalidates the result cache and attaches table sizes to the
// summary.
func (e *Engine) finishWrite(ctx context.Context, schema string, sum *Summary) (*Summary, error) {
	if e.cache != nil {
		if err := e.cache.Invalidate(ctx); err != nil {
			e.logger.Warn("cache invalidation failed", "schema", schema, "error", err)
		}
	}
	sizes, err := e.store.TableSizes(ctx)
	if err != nil {
		e.logger.Warn("table size query failed", "error", err)
	} else {
		sum.Tables = sizes
	}
	return sum, nil
}

// inferFields derives the user columns from the records' values: the union
// of field names with SQLite types inferred from the first non-nil value.
func inferFields(records []ingest.Record) []storage.Field {
	types := make(map[string]string)
	var names []string
	for _, rec := range records {
		for name, value := range rec.Fields {
			if _, seen := types[name]; !seen {
				names = append(names, name)
				types[name] = ""
			}
			if types[name] == "" && value != nil {
				types[name] = sqlType(value)
			}
		}
	}
	sort.Strings(names)
	fields := make([]storage.Field, 0, len(names))
	for _, name := range names {
		typ := types[name]
		if typ == "" {
			typ = "TEXT"
		}
		fields = append(fields, storage.Field{Name: name, Type: typ})
	}
	return fields
}

func sqlType(value any) string {
	switch value.(type) {
	case bool, int, int32, int64:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

// alignRows builds the user-column rows of the added documents, in the
// change set's order, normalising values for SQLite.
func alignRows(added []index.AddedDoc, records []ingest.Record) []map[string]any {
	byKey := make(map[string]ingest.Record, len(records))
	for _, rec := range records {
		byKey[rec.Key] = rec
	}
	rows := make([]map[string]any, len(added))
	for i, doc := range added {
		rec := byKey[doc.Key]
		row := make(map[string]any, len(rec.Fields))
		for name, value := range rec.Fields {
			row[name] = normalizeValue(value)
		}
		rows[i] = row
	}
	return rows
}

// normalizeValue maps record values onto SQLite-storable types; composites
// are stored as JSON text.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case nil, string, int, int32, int64, float32, float64, []byte:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
