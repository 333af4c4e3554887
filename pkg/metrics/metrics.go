// Package metrics defines the Prometheus metric collectors used by the
// engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	DocsIndexedTotal   *prometheus.CounterVec
	DocsDeletedTotal   *prometheus.CounterVec
	DocsSkippedTotal   *prometheus.CounterVec
	ScoreRebuildsTotal *prometheus.CounterVec
	IngestDuration     *prometheus.HistogramVec
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram
	PartialResults     prometheus.Counter
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	StoreRetriesTotal  prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okapi_docs_indexed_total",
				Help: "Total documents indexed, by schema.",
			},
			[]string{"schema"},
		),
		DocsDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okapi_docs_deleted_total",
				Help: "Total documents deleted, by schema.",
			},
			[]string{"schema"},
		),
		DocsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okapi_docs_skipped_total",
				Help: "Documents skipped on ingest by reason (duplicate, invalid).",
			},
			[]string{"reason"},
		),
		ScoreRebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okapi_score_rebuilds_total",
				Help: "Per-term score entry rebuilds by trigger (ingest, delete).",
			},
			[]string{"trigger"},
		),
		IngestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "okapi_ingest_duration_seconds",
				Help:    "Wall time of ingest operations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"schema"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okapi_search_queries_total",
				Help: "Total search queries by kind (documents, queries, graphs).",
			},
			[]string{"kind"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "okapi_search_latency_seconds",
				Help:    "Per-query search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"kind"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "okapi_search_results_count",
				Help:    "Number of results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		PartialResults: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "okapi_search_partial_results_total",
				Help: "Queries that hit their deadline and returned partial results.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "okapi_cache_hits_total",
				Help: "Total query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "okapi_cache_misses_total",
				Help: "Total query cache misses.",
			},
		),
		StoreRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "okapi_store_retries_total",
				Help: "Retried backing-store operations after transient contention.",
			},
		),
	}
	prometheus.MustRegister(
		m.DocsIndexedTotal,
		m.DocsDeletedTotal,
		m.DocsSkippedTotal,
		m.ScoreRebuildsTotal,
		m.IngestDuration,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.PartialResults,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.StoreRetriesTotal,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
