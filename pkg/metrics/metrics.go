// Package metrics defines the Prometheus collectors used by the evaluation
// engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RetrievalsTotal      *prometheus.CounterVec
	RetrievalLatency     *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CorpusDocuments      prometheus.Gauge
	CorpusTerms          prometheus.Gauge
	QuestionsEvaluated   *prometheus.CounterVec
	QuestionScore        *prometheus.HistogramVec
	SkippedGrounding     prometheus.Counter
	SinkWritesTotal      *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Passing a fresh
// prometheus.NewRegistry keeps repeated construction (tests, several servers
// in one process) from colliding on the global registry.
func New(reg prometheus.Registerer) *Metrics {
	scoreBuckets := prometheus.LinearBuckets(0, 0.1, 11)
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RetrievalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_retrievals_total",
				Help: "Total retrievals by outcome (hit, miss, empty, error).",
			},
			[]string{"outcome"},
		),
		RetrievalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rag_retrieval_latency_seconds",
				Help:    "Retrieval latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rag_cache_hits_total",
				Help: "Total number of rank cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rag_cache_misses_total",
				Help: "Total number of rank cache misses.",
			},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rag_corpus_documents",
				Help: "Number of documents in the loaded corpus index.",
			},
		),
		CorpusTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rag_corpus_terms",
				Help: "Number of distinct terms in the loaded corpus index.",
			},
		),
		QuestionsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_questions_evaluated_total",
				Help: "Total evaluated questions by status (ok, error).",
			},
			[]string{"status"},
		),
		QuestionScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rag_question_score",
				Help:    "Distribution of per-question metric values.",
				Buckets: scoreBuckets,
			},
			[]string{"metric"},
		),
		SkippedGrounding: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rag_skipped_grounding_total",
				Help: "Grounding document identifiers not found in the corpus.",
			},
		),
		SinkWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_sink_writes_total",
				Help: "Report sink writes by sink and status.",
			},
			[]string{"sink", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RetrievalsTotal,
		m.RetrievalLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusDocuments,
		m.CorpusTerms,
		m.QuestionsEvaluated,
		m.QuestionScore,
		m.SkippedGrounding,
		m.SinkWritesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
