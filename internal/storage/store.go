// Package storage persists the engine's state in the embedded SQLite
// database: row tables with user columns, dictionaries, postings, score
// arrays, statistics, stopwords, settings, and graph edges. Two logical
// schemas coexist as table-name prefixes, one for documents and one for
// stored queries.
//
// Every logical engine operation is framed as a single transaction, and
// transient lock contention is retried with bounded backoff before
// escalating to a backend error.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/okapisearch/okapi/internal/index"
	"github.com/okapisearch/okapi/internal/searcher/executor"
	"github.com/okapisearch/okapi/pkg/config"
	"github.com/okapisearch/okapi/pkg/errors"
	"github.com/okapisearch/okapi/pkg/resilience"
	"github.com/okapisearch/okapi/pkg/sqlite"
)

// SchemaDocuments and SchemaQueries are the two logical schemas of the
// engine; they become table-name prefixes in SQLite.
const (
	SchemaDocuments = "documents"
	SchemaQueries   = "queries"
)

// hydrateChunk bounds the size of IN (...) lists.
const hydrateChunk = 500

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Field is one user column of a row table.
type Field struct {
	Name string
	Type string // TEXT, REAL, or INTEGER
}

// Settings are the tokeniser and BM25 parameters persisted with an index.
// Later uploads reuse them; a mismatch with the caller's parameters is
// logged, not applied.
type Settings struct {
	K1           float64
	B            float64
	Stemmer      string
	Stopwords    string
	Ignore       string
	StripAccents bool
	Lower        bool
	Fields       []Field
	// IndexedFields is the comma-joined list of columns contributing to
	// the indexed text; empty means every column.
	IndexedFields string
}

// EdgeRow is one persisted document-query edge.
type EdgeRow struct {
	DocumentID uint32
	QueryID    uint32
	Weight     float32
}

// Store wraps the SQLite client with the engine's schema.
type Store struct {
	client *sqlite.Client
	retry  resilience.RetryConfig
	logger *slog.Logger

	mu     sync.RWMutex
	fields map[string][]Field
}

func New(client *sqlite.Client, cfg config.StorageConfig) *Store {
	return &Store{
		client: client,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			ShouldRetry:  sqlite.IsTransient,
		},
		logger: slog.Default().With("component", "storage"),
		fields: make(map[string][]Field),
	}
}

// inTx frames fn as one retried transaction. Non-transient failures are
// wrapped as backend errors.
func (s *Store) inTx(ctx context.Context, name string, fn func(tx *sql.Tx) error) error {
	err := resilience.Retry(ctx, name, s.retry, func() error {
		return s.client.InTx(ctx, fn)
	})
	if err != nil {
		return errors.Newf(errors.ErrBackend, "%s: %v", name, err)
	}
	return nil
}

// EnsureSchema creates the schema's tables if needed. The user fields
// define the row table columns and are fixed at first creation.
func (s *Store) EnsureSchema(ctx context.Context, schema string, fields []Field) error {
	for _, f := range fields {
		if !identPattern.MatchString(f.Name) {
			return errors.Newf(errors.ErrInvalidInput, "illegal field name %q", f.Name)
		}
	}
	var cols strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&cols, ", %q %s", f.Name, f.Type)
	}
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_docs (
			doc_id INTEGER PRIMARY KEY,
			external_key TEXT UNIQUE NOT NULL,
			length INTEGER NOT NULL%s
		)`, schema, cols.String()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_terms (
			term_id INTEGER PRIMARY KEY,
			surface TEXT UNIQUE NOT NULL,
			df INTEGER NOT NULL
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_postings (
			doc_id INTEGER NOT NULL,
			term_id INTEGER NOT NULL,
			tf INTEGER NOT NULL,
			PRIMARY KEY (doc_id, term_id)
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_scores (
			term_id INTEGER PRIMARY KEY,
			entry BLOB NOT NULL
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_stats (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			n INTEGER NOT NULL,
			total_len INTEGER NOT NULL,
			nonempty INTEGER NOT NULL,
			next_doc_id INTEGER NOT NULL,
			next_term_id INTEGER NOT NULL
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			k1 REAL NOT NULL,
			b REAL NOT NULL,
			stemmer TEXT NOT NULL,
			stopwords TEXT NOT NULL,
			ignore_pattern TEXT NOT NULL,
			strip_accents INTEGER NOT NULL,
			lower INTEGER NOT NULL,
			fields TEXT NOT NULL,
			indexed_fields TEXT NOT NULL
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_stopwords (
			surface TEXT PRIMARY KEY
		)`, schema),
		`CREATE TABLE IF NOT EXISTS graph_edges (
			document_id INTEGER NOT NULL,
			query_id INTEGER NOT NULL,
			weight REAL NOT NULL,
			PRIMARY KEY (document_id, query_id)
		)`,
	}
	err := s.inTx(ctx, "ensure schema "+schema, func(tx *sql.Tx) error {
		for _, stmt := range ddl {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating table: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.fields[schema] = fields
	s.mu.Unlock()
	return nil
}

// AddFields appends missing user columns to an existing row table and
// records them for hydration. Column types are fixed once created.
func (s *Store) AddFields(ctx context.Context, schema string, fields []Field) error {
	s.mu.Lock()
	existing := make(map[string]struct{}, len(s.fields[schema]))
	for _, f := range s.fields[schema] {
		existing[f.Name] = struct{}{}
	}
	var missing []Field
	for _, f := range fields {
		if !identPattern.MatchString(f.Name) {
			s.mu.Unlock()
			return errors.Newf(errors.ErrInvalidInput, "illegal field name %q", f.Name)
		}
		if _, ok := existing[f.Name]; !ok {
			missing = append(missing, f)
		}
	}
	s.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}
	err := s.inTx(ctx, "add fields "+schema, func(tx *sql.Tx) error {
		for _, f := range missing {
			stmt := fmt.Sprintf("ALTER TABLE %s_docs ADD COLUMN %q %s", schema, f.Name, f.Type)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("adding column %q: %w", f.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.fields[schema] = append(s.fields[schema], missing...)
	s.mu.Unlock()
	return nil
}

// Fields returns the known user columns of a schema.
func (s *Store) Fields(schema string) []Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Field(nil), s.fields[schema]...)
}

// SaveSettings persists the index settings at first build.
func (s *Store) SaveSettings(ctx context.Context, schema string, st Settings) error {
	return s.inTx(ctx, "save settings "+schema, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT OR REPLACE INTO %s_settings
			 (id, k1, b, stemmer, stopwords, ignore_pattern, strip_accents, lower, fields, indexed_fields)
			 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, schema),
			st.K1, st.B, st.Stemmer, st.Stopwords, st.Ignore,
			boolInt(st.StripAccents), boolInt(st.Lower), encodeFields(st.Fields),
			st.IndexedFields,
		)
		return err
	})
}

// LoadSettings returns the persisted settings, reporting whether any exist.
func (s *Store) LoadSettings(ctx context.Context, schema string) (Settings, bool, error) {
	var st Settings
	var stripAccents, lower int
	var fields string
	row := s.client.DB.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT k1, b, stemmer, stopwords, ignore_pattern, strip_accents, lower, fields, indexed_fields
		 FROM %s_settings WHERE id = 1`, schema))
	err := row.Scan(&st.K1, &st.B, &st.Stemmer, &st.Stopwords, &st.Ignore, &stripAccents, &lower, &fields, &st.IndexedFields)
	if err == sql.ErrNoRows {
		return st, false, nil
	}
	if err != nil {
		return st, false, errors.Newf(errors.ErrBackend, "loading settings: %v", err)
	}
	st.StripAccents = stripAccents != 0
	st.Lower = lower != 0
	st.Fields = decodeFields(fields)
	s.mu.Lock()
	s.fields[schema] = st.Fields
	s.mu.Unlock()
	return st, true, nil
}

// SaveStopwords replaces the schema's runtime stopword list.
func (s *Store) SaveStopwords(ctx context.Context, schema string, words []string) error {
	return s.inTx(ctx, "save stopwords "+schema, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s_stopwords", schema)); err != nil {
			return err
		}
		for _, w := range words {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT OR IGNORE INTO %s_stopwords (surface) VALUES (?)", schema), w); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadStopwords returns the schema's persisted stopword list.
func (s *Store) LoadStopwords(ctx context.Context, schema string) ([]string, error) {
	rows, err := s.client.DB.QueryContext(ctx, fmt.Sprintf("SELECT surface FROM %s_stopwords", schema))
	if err != nil {
		return nil, errors.Newf(errors.ErrBackend, "loading stopwords: %v", err)
	}
	defer rows.Close()
	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, errors.Newf(errors.ErrBackend, "scanning stopword: %v", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// LoadIndex rebuilds the in-memory index of a schema from the persisted
// tables.
func (s *Store) LoadIndex(ctx context.Context, schema string, ix *index.Index) error {
	docs, err := s.client.DB.QueryContext(ctx,
		fmt.Sprintf("SELECT doc_id, external_key, length FROM %s_docs", schema))
	if err != nil {
		return errors.Newf(errors.ErrBackend, "loading docs: %v", err)
	}
	defer docs.Close()
	for docs.Next() {
		var id, length uint32
		var key string
		if err := docs.Scan(&id, &key, &length); err != nil {
			return errors.Newf(errors.ErrBackend, "scanning doc: %v", err)
		}
		ix.RestoreDoc(id, key, length)
	}
	if err := docs.Err(); err != nil {
		return errors.Newf(errors.ErrBackend, "iterating docs: %v", err)
	}

	terms, err := s.client.DB.QueryContext(ctx,
		fmt.Sprintf("SELECT term_id, surface, df FROM %s_terms ORDER BY term_id", schema))
	if err != nil {
		return errors.Newf(errors.ErrBackend, "loading terms: %v", err)
	}
	defer terms.Close()
	for terms.Next() {
		var id, df uint32
		var surface string
		if err := terms.Scan(&id, &surface, &df); err != nil {
			return errors.Newf(errors.ErrBackend, "scanning term: %v", err)
		}
		ix.RestoreTerm(id, surface, df)
	}
	if err := terms.Err(); err != nil {
		return errors.Newf(errors.ErrBackend, "iterating terms: %v", err)
	}

	postings, err := s.client.DB.QueryContext(ctx,
		fmt.Sprintf("SELECT doc_id, term_id, tf FROM %s_postings", schema))
	if err != nil {
		return errors.Newf(errors.ErrBackend, "loading postings: %v", err)
	}
	defer postings.Close()
	for postings.Next() {
		var docID, termID, tf uint32
		if err := postings.Scan(&docID, &termID, &tf); err != nil {
			return errors.Newf(errors.ErrBackend, "scanning posting: %v", err)
		}
		ix.RestorePosting(docID, termID, tf)
	}
	if err := postings.Err(); err != nil {
		return errors.Newf(errors.ErrBackend, "iterating postings: %v", err)
	}

	scores, err := s.client.DB.QueryContext(ctx,
		fmt.Sprintf("SELECT term_id, entry FROM %s_scores", schema))
	if err != nil {
		return errors.Newf(errors.ErrBackend, "loading scores: %v", err)
	}
	defer scores.Close()
	for scores.Next() {
		var termID uint32
		var blob []byte
		if err := scores.Scan(&termID, &blob); err != nil {
			return errors.Newf(errors.ErrBackend, "scanning score entry: %v", err)
		}
		entry, err := decodeScoreEntry(blob)
		if err != nil {
			return errors.Newf(errors.ErrBackend, "decoding score entry for term %d: %v", termID, err)
		}
		ix.RestoreScores(termID, entry)
	}
	if err := scores.Err(); err != nil {
		return errors.Newf(errors.ErrBackend, "iterating scores: %v", err)
	}

	var st index.Stats
	row := s.client.DB.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT n, total_len, nonempty, next_doc_id, next_term_id FROM %s_stats WHERE id = 1", schema))
	switch err := row.Scan(&st.N, &st.TotalLen, &st.NonEmpty, &st.NextDocID, &st.NextTermID); err {
	case nil:
		ix.RestoreStats(st)
	case sql.ErrNoRows:
	default:
		return errors.Newf(errors.ErrBackend, "loading stats: %v", err)
	}
	return nil
}

// ApplyChangeSet mirrors one logical index mutation into SQLite. rows
// holds the user column values of cs.AddedDocs, in the same order.
func (s *Store) ApplyChangeSet(ctx context.Context, schema string, cs *index.ChangeSet, rows []map[string]any) error {
	s.mu.RLock()
	fields := s.fields[schema]
	s.mu.RUnlock()

	return s.inTx(ctx, "apply changes "+schema, func(tx *sql.Tx) error {
		for i, doc := range cs.AddedDocs {
			cols := []string{"doc_id", "external_key", "length"}
			args := []any{doc.ID, doc.Key, doc.Length}
			if i < len(rows) {
				for _, f := range fields {
					if v, ok := rows[i][f.Name]; ok {
						cols = append(cols, fmt.Sprintf("%q", f.Name))
						args = append(args, v)
					}
				}
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
			stmt := fmt.Sprintf("INSERT INTO %s_docs (%s) VALUES (%s)",
				schema, strings.Join(cols, ", "), placeholders)
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("inserting doc %q: %w", doc.Key, err)
			}
		}

		for _, id := range cs.RemovedDocs {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s_postings WHERE doc_id = ?", schema), id); err != nil {
				return fmt.Errorf("deleting postings of doc %d: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s_docs WHERE doc_id = ?", schema), id); err != nil {
				return fmt.Errorf("deleting doc %d: %w", id, err)
			}
			// Edges go with their document, inside the same transaction.
			if schema == SchemaDocuments {
				if _, err := tx.ExecContext(ctx,
					"DELETE FROM graph_edges WHERE document_id = ?", id); err != nil {
					return fmt.Errorf("deleting edges of doc %d: %w", id, err)
				}
			}
		}

		for termID, surface := range cs.NewTerms {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO %s_terms (term_id, surface, df) VALUES (?, ?, 0)", schema),
				termID, surface); err != nil {
				return fmt.Errorf("inserting term %q: %w", surface, err)
			}
		}
		for termID, df := range cs.DF {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s_terms SET df = ? WHERE term_id = ?", schema),
				df, termID); err != nil {
				return fmt.Errorf("updating df of term %d: %w", termID, err)
			}
		}

		for _, p := range cs.Postings {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT OR REPLACE INTO %s_postings (doc_id, term_id, tf) VALUES (?, ?, ?)", schema),
				p.DocID, p.TermID, p.TF); err != nil {
				return fmt.Errorf("inserting posting (%d, %d): %w", p.DocID, p.TermID, err)
			}
		}

		for termID, entry := range cs.Scores {
			if entry == nil {
				if _, err := tx.ExecContext(ctx,
					fmt.Sprintf("DELETE FROM %s_scores WHERE term_id = ?", schema), termID); err != nil {
					return fmt.Errorf("deleting score entry of term %d: %w", termID, err)
				}
				continue
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT OR REPLACE INTO %s_scores (term_id, entry) VALUES (?, ?)", schema),
				termID, encodeScoreEntry(entry)); err != nil {
				return fmt.Errorf("storing score entry of term %d: %w", termID, err)
			}
		}

		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT OR REPLACE INTO %s_stats
			 (id, n, total_len, nonempty, next_doc_id, next_term_id)
			 VALUES (1, ?, ?, ?, ?, ?)`, schema),
			cs.Stats.N, cs.Stats.TotalLen, cs.Stats.NonEmpty, cs.Stats.NextDocID, cs.Stats.NextTermID)
		if err != nil {
			return fmt.Errorf("updating stats: %w", err)
		}
		return nil
	})
}

// InsertEdges stores document-query edges, replacing duplicates per pair.
func (s *Store) InsertEdges(ctx context.Context, edges []EdgeRow) error {
	return s.inTx(ctx, "insert edges", func(tx *sql.Tx) error {
		for _, e := range edges {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO graph_edges (document_id, query_id, weight) VALUES (?, ?, ?)",
				e.DocumentID, e.QueryID, e.Weight); err != nil {
				return fmt.Errorf("inserting edge (%d, %d): %w", e.DocumentID, e.QueryID, err)
			}
		}
		return nil
	})
}

// LoadEdges returns all persisted edges.
func (s *Store) LoadEdges(ctx context.Context) ([]EdgeRow, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		"SELECT document_id, query_id, weight FROM graph_edges")
	if err != nil {
		return nil, errors.Newf(errors.ErrBackend, "loading edges: %v", err)
	}
	defer rows.Close()
	var edges []EdgeRow
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.DocumentID, &e.QueryID, &e.Weight); err != nil {
			return nil, errors.Newf(errors.ErrBackend, "scanning edge: %v", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// FilterCandidates returns the candidate ids whose row satisfies the SQL
// predicate. Implements executor.RowBackend.
func (s *Store) FilterCandidates(ctx context.Context, schema string, ids []uint32, filters string) (map[uint32]struct{}, error) {
	keep := make(map[uint32]struct{}, len(ids))
	for start := 0; start < len(ids); start += hydrateChunk {
		chunk := ids[start:min(start+hydrateChunk, len(ids))]
		query := fmt.Sprintf("SELECT doc_id FROM %s_docs WHERE doc_id IN (%s) AND (%s)",
			schema, placeholders(len(chunk)), filters)
		rows, err := s.client.DB.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, errors.Newf(errors.ErrInvalidInput, "filter %q: %v", filters, err)
		}
		for rows.Next() {
			var id uint32
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, errors.Newf(errors.ErrBackend, "scanning filtered doc: %v", err)
			}
			keep[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errors.Newf(errors.ErrBackend, "iterating filtered docs: %v", err)
		}
		rows.Close()
	}
	return keep, nil
}

// OrderCandidates returns ids ordered by the SQL order-by expression.
// Implements executor.RowBackend.
func (s *Store) OrderCandidates(ctx context.Context, schema string, ids []uint32, orderBy string) ([]uint32, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT doc_id FROM %s_docs WHERE doc_id IN (%s) ORDER BY %s",
		schema, placeholders(len(ids)), orderBy)
	rows, err := s.client.DB.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, errors.Newf(errors.ErrInvalidInput, "order-by %q: %v", orderBy, err)
	}
	defer rows.Close()
	ordered := make([]uint32, 0, len(ids))
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Newf(errors.ErrBackend, "scanning ordered doc: %v", err)
		}
		ordered = append(ordered, id)
	}
	return ordered, rows.Err()
}

// Hydrate returns the user columns of the given ids. Implements
// executor.RowBackend.
func (s *Store) Hydrate(ctx context.Context, schema string, ids []uint32) (map[uint32]executor.Row, error) {
	s.mu.RLock()
	fields := s.fields[schema]
	s.mu.RUnlock()
	if len(fields) == 0 || len(ids) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, fmt.Sprintf("%q", f.Name))
	}
	out := make(map[uint32]executor.Row, len(ids))
	for start := 0; start < len(ids); start += hydrateChunk {
		chunk := ids[start:min(start+hydrateChunk, len(ids))]
		query := fmt.Sprintf("SELECT doc_id, %s FROM %s_docs WHERE doc_id IN (%s)",
			strings.Join(names, ", "), schema, placeholders(len(chunk)))
		rows, err := s.client.DB.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, errors.Newf(errors.ErrBackend, "hydrating rows: %v", err)
		}
		for rows.Next() {
			var id uint32
			values := make([]any, len(fields))
			dest := make([]any, 0, len(fields)+1)
			dest = append(dest, &id)
			for i := range values {
				dest = append(dest, &values[i])
			}
			if err := rows.Scan(dest...); err != nil {
				rows.Close()
				return nil, errors.Newf(errors.ErrBackend, "scanning row: %v", err)
			}
			row := make(executor.Row, len(fields))
			for i, f := range fields {
				row[f.Name] = values[i]
			}
			out[id] = row
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errors.Newf(errors.ErrBackend, "iterating rows: %v", err)
		}
		rows.Close()
	}
	return out, nil
}

// TableSizes returns row counts for the upload/delete summary.
func (s *Store) TableSizes(ctx context.Context) (map[string]int, error) {
	sizes := make(map[string]int)
	for _, table := range []string{
		SchemaDocuments + "_docs",
		SchemaQueries + "_docs",
		"graph_edges",
	} {
		var n int
		row := s.client.DB.QueryRowContext(ctx, "SELECT count(*) FROM "+table)
		if err := row.Scan(&n); err != nil {
			// A schema that was never created simply reports zero.
			continue
		}
		sizes[table] = n
	}
	return sizes, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []uint32) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeFields(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + ":" + f.Type
	}
	return strings.Join(parts, ",")
}

func decodeFields(s string) []Field {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	fields := make([]Field, 0, len(parts))
	for _, p := range parts {
		name, typ, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		fields = append(fields, Field{Name: name, Type: typ})
	}
	return fields
}
