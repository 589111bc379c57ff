// Package metrics defines the Prometheus collectors of the retrieval engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vectorsearch"

// Embedding metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding calls by outcome",
		},
		[]string{"status"}, // "ok" / "error"
	)

	EmbeddingAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_attempts_total",
			Help:      "Total number of embedding HTTP attempts including retries",
		},
	)

	EmbeddingRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding call duration in seconds, retries included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// Retrieval metrics.
var (
	RerankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_requests_total",
			Help:      "Total number of rerank calls by outcome",
		},
		[]string{"outcome"}, // "ok" / "no_match" / "error"
	)

	RerankFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_fallbacks_total",
			Help:      "Searches that returned store order because rerank failed",
		},
		[]string{"search"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"search"},
	)

	SourceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unified_source_errors_total",
			Help:      "Unified search sources that failed and were skipped or aborted the query",
		},
		[]string{"source"},
	)

	IndexedPointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_points_total",
			Help:      "Vector points written by the indexing pipeline",
		},
		[]string{"collection"},
	)
)

var registerOnce sync.Once

// Register registers all engine collectors with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingAttemptsTotal,
			EmbeddingRequestDuration,
			EmbeddingCacheTotal,
			RerankRequestsTotal,
			RerankFallbacksTotal,
			SearchDuration,
			SourceErrorsTotal,
			IndexedPointsTotal,
		)
	})
}
