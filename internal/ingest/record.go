// Package ingest defines the row-stream contract feeding the indexer:
// records with a caller-supplied key and arbitrary columns, read from JSONL
// files or a Kafka topic. Validation failures affect single records, never
// the surrounding batch.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Record is one document row awaiting ingestion.
type Record struct {
	Key    string
	Fields map[string]any
}

// Text concatenates the indexed fields into the document text, in field
// order.
func (r Record) Text(fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v, ok := r.Fields[f]; ok && v != nil {
			parts = append(parts, fmt.Sprintf("%v", v))
		}
	}
	return strings.Join(parts, " ")
}

// Validate checks that the record carries a usable key. A malformed record
// fails alone; callers count it and continue.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("record is missing its key")
	}
	return nil
}

// FromMap extracts a Record from a decoded row, pulling the key from the
// named column.
func FromMap(row map[string]any, keyField string) (Record, error) {
	raw, ok := row[keyField]
	if !ok || raw == nil {
		return Record{}, fmt.Errorf("row has no %q column", keyField)
	}
	key := strings.TrimSpace(fmt.Sprintf("%v", raw))
	fields := make(map[string]any, len(row))
	for k, v := range row {
		if k == keyField {
			continue
		}
		fields[k] = v
	}
	rec := Record{Key: key, Fields: fields}
	return rec, rec.Validate()
}

// ReadJSONL decodes one record per line. Undecodable lines are returned in
// the failure count, not as an error.
func ReadJSONL(r io.Reader, keyField string) (records []Record, failed int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			failed++
			continue
		}
		rec, err := FromMap(row, keyField)
		if err != nil {
			failed++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, failed, fmt.Errorf("reading records: %w", err)
	}
	return records, failed, nil
}

// EdgeSpec is one uploaded document-query association. A zero Weight means
// the default weight of 1.
type EdgeSpec struct {
	DocumentKey string  `json:"document"`
	QueryText   string  `json:"query"`
	Weight      float32 `json:"weight,omitempty"`
}

// ReadEdgesJSONL decodes edge specs, one per line.
func ReadEdgesJSONL(r io.Reader) (edges []EdgeSpec, failed int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var spec EdgeSpec
		if err := json.Unmarshal([]byte(line), &spec); err != nil {
			failed++
			continue
		}
		if spec.DocumentKey == "" || spec.QueryText == "" {
			failed++
			continue
		}
		edges = append(edges, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, failed, fmt.Errorf("reading edges: %w", err)
	}
	return edges, failed, nil
}
