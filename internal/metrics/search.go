package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search and index-maintenance Prometheus metrics.
var (
	SearchLegDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docvault",
			Name:      "search_leg_duration_seconds",
			Help:      "Duration of each hybrid search leg",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"leg", "status"}, // "keyword"/"vector", "ok"/"error"
	)

	SearchVectorSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Name:      "search_vector_skipped_total",
			Help:      "Vector results dropped from a hybrid search",
		},
		[]string{"reason"}, // "leg_error" / "malformed"
	)

	IndexCASRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Name:      "index_cas_retries_total",
			Help:      "Compare-and-swap attempts lost to a concurrent writer",
		},
		[]string{"target"}, // "enumeration" / "record"
	)

	ReindexDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Name:      "reindex_documents_total",
			Help:      "Documents visited by re-index sweeps, by outcome",
		},
		[]string{"outcome"}, // indexed / unindexed / missing / failed
	)
)

var registerSearchOnce sync.Once

// RegisterSearchMetrics registers search, index-maintenance and re-index
// metrics with the default registry. Safe to call more than once.
func RegisterSearchMetrics() {
	registerSearchOnce.Do(func() {
		prometheus.MustRegister(
			SearchLegDuration,
			SearchVectorSkippedTotal,
			IndexCASRetriesTotal,
			ReindexDocumentsTotal,
		)
	})
}
