// Package executor runs batched BM25 queries against an index: it tokenises
// query batches with the corpus pipeline, fetches truncated posting slices,
// accumulates scores, applies row filters, and selects the top-k.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/okapisearch/okapi/internal/index"
	"github.com/okapisearch/okapi/internal/searcher/topk"
	"github.com/okapisearch/okapi/internal/tokenizer"
)

// Row holds the hydrated user columns of one document.
type Row map[string]any

// RowBackend is the slice of the backing store the executor needs: filter
// evaluation and row hydration over the schema's document table.
type RowBackend interface {
	// FilterCandidates returns the subset of ids whose row satisfies the
	// SQL predicate.
	FilterCandidates(ctx context.Context, schema string, ids []uint32, filters string) (map[uint32]struct{}, error)
	// OrderCandidates returns ids reordered by the SQL order-by expression.
	OrderCandidates(ctx context.Context, schema string, ids []uint32, orderBy string) ([]uint32, error)
	// Hydrate returns the row columns of the given ids.
	Hydrate(ctx context.Context, schema string, ids []uint32) (map[uint32]Row, error)
}

// Request is one batched search invocation.
type Request struct {
	Queries   []string
	TopK      int
	TopKToken int
	Filters   string
	OrderBy   string
	BatchSize int
	NJobs     int
}

// Hit is one ranked result.
type Hit struct {
	DocID uint32  `json:"doc_id"`
	Key   string  `json:"id"`
	Score float64 `json:"score"`
	Row   Row     `json:"row,omitempty"`
}

// Result holds the ranked hits of a single query. Partial marks a deadline
// expiry: the hits were assembled from the slices fetched so far.
type Result struct {
	Query   string `json:"query"`
	Hits    []Hit  `json:"hits"`
	Partial bool   `json:"partial,omitempty"`
}

// Executor executes query batches against one index and its row table.
type Executor struct {
	schema  string
	ix      *index.Index
	tok     *tokenizer.Tokenizer
	backend RowBackend
	logger  *slog.Logger
}

func New(schema string, ix *index.Index, tok *tokenizer.Tokenizer, backend RowBackend) *Executor {
	return &Executor{
		schema:  schema,
		ix:      ix,
		tok:     tok,
		backend: backend,
		logger:  slog.Default().With("component", "query-executor", "schema", schema),
	}
}

// Search runs the request. Queries are split into batches executed in
// parallel; sibling queries are independent, and a failure in one query
// does not affect the others (failed queries yield empty results and the
// first error is reported alongside).
func (e *Executor) Search(ctx context.Context, req Request) ([]Result, error) {
	if req.BatchSize <= 0 {
		req.BatchSize = 32
	}
	results := make([]Result, len(req.Queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(index.Jobs(req.NJobs))
	for start := 0; start < len(req.Queries); start += req.BatchSize {
		end := min(start+req.BatchSize, len(req.Queries))
		start := start
		g.Go(func() error {
			return e.searchBatch(gctx, req, req.Queries[start:end], results[start:end])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("executing query batch: %w", err)
	}
	return results, nil
}

// searchBatch executes a contiguous batch of queries sharing one slice
// fetch: the union of the batch's terms is resolved once against a
// consistent index snapshot.
func (e *Executor) searchBatch(ctx context.Context, req Request, queries []string, out []Result) error {
	terms := make([][]string, len(queries))
	var union []string
	for i, q := range queries {
		terms[i] = e.tok.Tokenize(q)
		union = append(union, terms[i]...)
	}
	slices := e.ix.FetchSlices(union, req.TopKToken)

	for i, q := range queries {
		res, err := e.searchOne(ctx, req, q, terms[i], slices)
		if err != nil {
			// Sibling queries are unaffected by a single query's failure.
			e.logger.Error("query failed", "query", q, "error", err)
			out[i] = Result{Query: q, Hits: []Hit{}}
			continue
		}
		out[i] = *res
	}
	return nil
}

func (e *Executor) searchOne(ctx context.Context, req Request, query string, terms []string, slices map[string]index.TermSlice) (*Result, error) {
	res := &Result{Query: query, Hits: []Hit{}}
	if len(terms) == 0 {
		return res, nil
	}

	// Accumulate slice scores per document. Terms absent from the
	// dictionary contribute zero. A deadline expiry keeps whatever has
	// been accumulated and flags the result as partial.
	acc := make(map[uint32]float64)
	for _, term := range terms {
		if ctx.Err() != nil {
			res.Partial = true
			break
		}
		slice, ok := slices[term]
		if !ok {
			continue
		}
		for i, docID := range slice.Docs {
			acc[docID] += float64(slice.Scores[i])
		}
	}
	if len(acc) == 0 {
		return res, nil
	}

	candidates := make([]topk.Candidate, 0, len(acc))
	for docID, score := range acc {
		candidates = append(candidates, topk.Candidate{DocID: docID, Score: score})
	}

	if req.Filters != "" && e.backend != nil {
		ids := make([]uint32, len(candidates))
		for i, c := range candidates {
			ids[i] = c.DocID
		}
		keep, err := e.backend.FilterCandidates(ctx, e.schema, ids, req.Filters)
		if err != nil {
			if ctx.Err() != nil {
				return e.assembled(res, topk.Select(candidates, req.TopK)), nil
			}
			return nil, fmt.Errorf("applying filters %q: %w", req.Filters, err)
		}
		filtered := candidates[:0]
		for _, c := range candidates {
			if _, ok := keep[c.DocID]; ok {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	selected := topk.Select(candidates, req.TopK)

	if req.OrderBy != "" && e.backend != nil {
		if err := e.reorder(ctx, req, selected); err != nil {
			if ctx.Err() != nil {
				return e.assembled(res, selected), nil
			}
			return nil, err
		}
	}

	hits, err := e.hydrate(ctx, selected)
	if err != nil {
		if ctx.Err() != nil {
			return e.assembled(res, selected), nil
		}
		return nil, err
	}
	res.Hits = hits
	return res, nil
}

// assembled finishes a query whose deadline expired inside a backend call:
// the top-k accumulated so far is returned with keys from the index, no row
// columns, and the partial flag set.
func (e *Executor) assembled(res *Result, selected []topk.Candidate) *Result {
	res.Partial = true
	res.Hits = make([]Hit, 0, len(selected))
	for _, c := range selected {
		key, ok := e.ix.DocKey(c.DocID)
		if !ok {
			continue
		}
		res.Hits = append(res.Hits, Hit{DocID: c.DocID, Key: key, Score: c.Score})
	}
	return res
}

// reorder replaces the score ordering with the caller's SQL order-by
// expression, evaluated by the backing store over the selected rows.
func (e *Executor) reorder(ctx context.Context, req Request, selected []topk.Candidate) error {
	ids := make([]uint32, len(selected))
	byID := make(map[uint32]topk.Candidate, len(selected))
	for i, c := range selected {
		ids[i] = c.DocID
		byID[c.DocID] = c
	}
	ordered, err := e.backend.OrderCandidates(ctx, e.schema, ids, req.OrderBy)
	if err != nil {
		return fmt.Errorf("applying order-by %q: %w", req.OrderBy, err)
	}
	for i, id := range ordered {
		if i < len(selected) {
			selected[i] = byID[id]
		}
	}
	return nil
}

// hydrate attaches external keys and row columns to the selected documents.
func (e *Executor) hydrate(ctx context.Context, selected []topk.Candidate) ([]Hit, error) {
	hits := make([]Hit, 0, len(selected))
	var rows map[uint32]Row
	if e.backend != nil && len(selected) > 0 {
		ids := make([]uint32, len(selected))
		for i, c := range selected {
			ids[i] = c.DocID
		}
		var err error
		rows, err = e.backend.Hydrate(ctx, e.schema, ids)
		if err != nil {
			return nil, fmt.Errorf("hydrating rows: %w", err)
		}
	}
	for _, c := range selected {
		key, ok := e.ix.DocKey(c.DocID)
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			DocID: c.DocID,
			Key:   key,
			Score: c.Score,
			Row:   rows[c.DocID],
		})
	}
	return hits, nil
}

// SortHits orders hits by score descending, doc id ascending. Used by the
// graph path after recombination.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
}
