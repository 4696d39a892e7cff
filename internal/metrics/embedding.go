package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding chain metrics. Requests, duration, tokens and errors are
// provider-level; cache and pool metrics cover the decorators above it.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docvault",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"layer", "result"}, // "lru"/"redis", "hit"/"miss"
	)

	EmbeddingPoolInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docvault",
			Name:      "embedding_pool_in_flight",
			Help:      "Embedding calls currently holding a pool slot",
		},
	)

	EmbeddingPoolWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docvault",
			Name:      "embedding_pool_wait_seconds",
			Help:      "Time spent waiting for a pool slot and the rate limiter",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

var registerEmbeddingOnce sync.Once

// RegisterEmbeddingMetrics registers the embedding chain metrics with the
// default registry. Safe to call more than once.
func RegisterEmbeddingMetrics() {
	registerEmbeddingOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			EmbeddingPoolInFlight,
			EmbeddingPoolWaitSeconds,
		)
	})
}
