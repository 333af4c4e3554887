// Package evaluation computes retrieval quality metrics (ndcg@k, hits@k)
// against relevance judgements loaded from JSONL qrels files.
package evaluation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/okapisearch/okapi/internal/searcher/executor"
)

// Qrels maps query text to the set of relevant document keys with graded
// relevance.
type Qrels map[string]map[string]float64

// qrelLine is one judgement row: a query and its judged documents.
type qrelLine struct {
	Query     string             `json:"query"`
	Relevant  map[string]float64 `json:"relevant,omitempty"`
	Document  string             `json:"document,omitempty"`
	Relevance *float64           `json:"relevance,omitempty"`
}

// ReadQrelsJSONL accepts either one judgement per line (query, document,
// relevance) or one query per line with a relevant map. Lines that cannot be
// decoded are skipped and counted.
func ReadQrelsJSONL(r io.Reader) (Qrels, int, error) {
	qrels := make(Qrels)
	failed := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row qrelLine
		if err := json.Unmarshal([]byte(line), &row); err != nil || row.Query == "" {
			failed++
			continue
		}
		judged := qrels[row.Query]
		if judged == nil {
			judged = make(map[string]float64)
			qrels[row.Query] = judged
		}
		for doc, rel := range row.Relevant {
			judged[doc] = rel
		}
		if row.Document != "" {
			rel := 1.0
			if row.Relevance != nil {
				rel = *row.Relevance
			}
			judged[row.Document] = rel
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, failed, fmt.Errorf("reading qrels: %w", err)
	}
	return qrels, failed, nil
}

// Report holds macro-averaged metrics over the evaluated queries.
type Report struct {
	Queries int                `json:"queries"`
	Metrics map[string]float64 `json:"metrics"`
}

// Evaluate scores ranked results against qrels for each requested metric.
// Supported metric names are "ndcg@K" and "hits@K". Queries absent from the
// qrels are skipped.
func Evaluate(qrels Qrels, results []executor.Result, metricNames []string) (Report, error) {
	cutoffs := make(map[string]int, len(metricNames))
	for _, name := range metricNames {
		kind, k, err := parseMetric(name)
		if err != nil {
			return Report{}, err
		}
		cutoffs[kind+"@"+itoa(k)] = k
	}

	sums := make(map[string]float64, len(cutoffs))
	n := 0
	for _, res := range results {
		judged, ok := qrels[res.Query]
		if !ok || len(judged) == 0 {
			continue
		}
		n++
		ranked := make([]string, len(res.Hits))
		for i, hit := range res.Hits {
			ranked[i] = hit.Key
		}
		for name, k := range cutoffs {
			var v float64
			if strings.HasPrefix(name, "ndcg@") {
				v = ndcgAt(judged, ranked, k)
			} else {
				v = hitsAt(judged, ranked, k)
			}
			sums[name] += v
		}
	}

	metrics := make(map[string]float64, len(sums))
	for name, sum := range sums {
		if n > 0 {
			metrics[name] = sum / float64(n)
		} else {
			metrics[name] = 0
		}
	}
	return Report{Queries: n, Metrics: metrics}, nil
}

// ndcgAt computes normalised discounted cumulative gain at cutoff k.
func ndcgAt(judged map[string]float64, ranked []string, k int) float64 {
	if k > len(ranked) {
		k = len(ranked)
	}
	dcg := 0.0
	for i := 0; i < k; i++ {
		if rel, ok := judged[ranked[i]]; ok && rel > 0 {
			dcg += rel / math.Log2(float64(i)+2)
		}
	}

	ideal := make([]float64, 0, len(judged))
	for _, rel := range judged {
		if rel > 0 {
			ideal = append(ideal, rel)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))
	idcg := 0.0
	for i := 0; i < len(ideal) && i < k; i++ {
		idcg += ideal[i] / math.Log2(float64(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// hitsAt reports whether any relevant document appears in the top k.
func hitsAt(judged map[string]float64, ranked []string, k int) float64 {
	if k > len(ranked) {
		k = len(ranked)
	}
	for i := 0; i < k; i++ {
		if rel, ok := judged[ranked[i]]; ok && rel > 0 {
			return 1
		}
	}
	return 0
}

func parseMetric(name string) (kind string, k int, err error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(name)), "@", 2)
	kind = parts[0]
	if kind != "ndcg" && kind != "hits" {
		return "", 0, fmt.Errorf("unsupported metric %q", name)
	}
	k = 10
	if len(parts) == 2 {
		if _, err := fmt.Sscanf(parts[1], "%d", &k); err != nil || k <= 0 {
			return "", 0, fmt.Errorf("bad metric cutoff in %q", name)
		}
	}
	return kind, k, nil
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
