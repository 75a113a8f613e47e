package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchlight",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"mode", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchlight",
			Name:      "search_duration_seconds",
			Help:      "Search execution duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	SemanticDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "searchlight",
			Name:      "semantic_degraded_total",
			Help:      "Searches where the semantic backend failed and results degraded to keyword-only",
		},
	)

	SuggestionFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "searchlight",
			Name:      "suggestion_fallback_total",
			Help:      "Searches that returned suggestions due to sparse results",
		},
	)

	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchlight",
			Name:      "search_cache_total",
			Help:      "Search response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IndexedDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchlight",
			Name:      "indexed_documents_total",
			Help:      "Documents written to the keyword index",
		},
		[]string{"status"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search Prometheus metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SemanticDegradedTotal)
	prometheus.MustRegister(SuggestionFallbackTotal)
	prometheus.MustRegister(SearchCacheTotal)
	prometheus.MustRegister(IndexedDocumentsTotal)
	searchMetricsRegistered = true
}
