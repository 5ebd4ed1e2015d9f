package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AnalyzeRequestsTotal counts analyze requests by outcome.
	AnalyzeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boxity",
		Subsystem: "analyzer",
		Name:      "analyze_requests_total",
		Help:      "Total number of analyze requests processed, labeled by outcome.",
	}, []string{"outcome"})

	// AnalyzeDurationSeconds is end-to-end time per analyze request, measured in the service layer.
	AnalyzeDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "boxity",
		Subsystem: "analyzer",
		Name:      "analyze_duration_seconds",
		Help:      "End-to-end time to serve an analyze request (load + preprocess + AI + scoring).",
		// Keep buckets fairly coarse to avoid high-cardinality time series.
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"outcome"})

	// AICallsTotal counts provider calls by result.
	AICallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boxity",
		Subsystem: "analyzer",
		Name:      "ai_calls_total",
		Help:      "Total number of LLM provider calls, labeled by result.",
	}, []string{"result"})

	AIRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boxity",
		Subsystem: "analyzer",
		Name:      "ai_retries_total",
		Help:      "Total number of rate-limit retries against the LLM provider.",
	})

	// RepairsTotal counts schema repair round trips by result.
	RepairsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boxity",
		Subsystem: "analyzer",
		Name:      "schema_repairs_total",
		Help:      "Total number of schema repair attempts on malformed LLM replies, labeled by result.",
	}, []string{"result"})

	// PublishesTotal counts completed-analysis publishes by result.
	PublishesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boxity",
		Subsystem: "analyzer",
		Name:      "analysis_publishes_total",
		Help:      "Total number of completed-analysis events published to RabbitMQ, labeled by result.",
	}, []string{"result"})

	// FindingsPerAnalysis tracks how many findings survive normalization per request.
	FindingsPerAnalysis = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "boxity",
		Subsystem: "analyzer",
		Name:      "findings_per_analysis",
		Help:      "Number of normalized findings per analysis (capped at 8).",
		Buckets:   prometheus.LinearBuckets(0, 1, 9),
	})
)

// Register registers analyzer metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalyzeRequestsTotal,
			AnalyzeDurationSeconds,
			AICallsTotal,
			AIRetriesTotal,
			RepairsTotal,
			PublishesTotal,
			FindingsPerAnalysis,
		)
	})
}
