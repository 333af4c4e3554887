package evaluation

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okapisearch/okapi/internal/searcher/executor"
)

func TestReadQrelsJSONLPerJudgementRows(t *testing.T) {
	input := `{"query": "q1", "document": "d1"}
{"query": "q1", "document": "d2", "relevance": 2}
{"query": "q2", "document": "d3"}
not json
`
	qrels, failed, err := ReadQrelsJSONL(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Len(t, qrels, 2)
	assert.Equal(t, 1.0, qrels["q1"]["d1"])
	assert.Equal(t, 2.0, qrels["q1"]["d2"])
}

func TestReadQrelsJSONLMapRows(t *testing.T) {
	input := `{"query": "q1", "relevant": {"d1": 1, "d2": 0.5}}`
	qrels, failed, err := ReadQrelsJSONL(strings.NewReader(input))
	require.NoError(t, err)
	assert.Zero(t, failed)
	assert.Equal(t, 0.5, qrels["q1"]["d2"])
}

func result(query string, keys ...string) executor.Result {
	hits := make([]executor.Hit, len(keys))
	for i, k := range keys {
		hits[i] = executor.Hit{Key: k, Score: float64(len(keys) - i)}
	}
	return executor.Result{Query: query, Hits: hits}
}

func TestEvaluatePerfectRanking(t *testing.T) {
	qrels := Qrels{"q": {"d1": 1, "d2": 1}}
	report, err := Evaluate(qrels, []executor.Result{result("q", "d1", "d2", "d3")}, []string{"ndcg@3", "hits@1"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Queries)
	assert.InDelta(t, 1.0, report.Metrics["ndcg@3"], 1e-9)
	assert.InDelta(t, 1.0, report.Metrics["hits@1"], 1e-9)
}

func TestEvaluateKnownNDCG(t *testing.T) {
	// Single relevant document at rank 2: dcg = 1/log2(3), idcg = 1.
	qrels := Qrels{"q": {"d2": 1}}
	report, err := Evaluate(qrels, []executor.Result{result("q", "d1", "d2")}, []string{"ndcg@10"})
	require.NoError(t, err)
	assert.InDelta(t, 1/math.Log2(3), report.Metrics["ndcg@10"], 1e-9)
}

func TestEvaluateHitsCutoff(t *testing.T) {
	qrels := Qrels{"q": {"d3": 1}}
	results := []executor.Result{result("q", "d1", "d2", "d3")}

	report, err := Evaluate(qrels, results, []string{"hits@2"})
	require.NoError(t, err)
	assert.Zero(t, report.Metrics["hits@2"])

	report, err = Evaluate(qrels, results, []string{"hits@3"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.Metrics["hits@3"], 1e-9)
}

func TestEvaluateMacroAverages(t *testing.T) {
	qrels := Qrels{
		"hit":  {"d1": 1},
		"miss": {"d9": 1},
	}
	results := []executor.Result{
		result("hit", "d1"),
		result("miss", "d1"),
		result("unjudged", "d1"),
	}
	report, err := Evaluate(qrels, results, []string{"hits@1"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Queries)
	assert.InDelta(t, 0.5, report.Metrics["hits@1"], 1e-9)
}

func TestEvaluateRejectsUnknownMetric(t *testing.T) {
	_, err := Evaluate(Qrels{}, nil, []string{"mrr@10"})
	assert.Error(t, err)
}
