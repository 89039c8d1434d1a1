// Package metrics provides Prometheus metrics for the chunking and
// relationship stages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vbpl"

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Resolver
	ResolverOutcomes    *prometheus.CounterVec
	ResolverAttempts    *prometheus.HistogramVec
	ResolverCorrections *prometheus.CounterVec
	ResolverInFlight    prometheus.Gauge
	EdgesTotal          *prometheus.CounterVec

	// LLM calls
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensTotal     *prometheus.CounterVec

	// Segmentation
	DocumentsTotal *prometheus.CounterVec
	NodesTotal     *prometheus.CounterVec
	ChunkFallbacks prometheus.Counter
}

// New creates and registers all collectors with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	m := &Metrics{}

	m.ResolverOutcomes = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_articles_total",
			Help:      "Articles classified by the relationship resolver, by terminal state",
		},
		[]string{"state"},
	)

	m.ResolverAttempts = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolver_attempts",
			Help:      "Classification attempts per article",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
		[]string{"state"},
	)

	m.ResolverCorrections = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_corrections_total",
			Help:      "Post-condition corrections applied to classifier output",
		},
		[]string{"kind"},
	)

	m.ResolverInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resolver_in_flight",
			Help:      "Articles currently being classified",
		},
	)

	m.EdgesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relationship_edges_total",
			Help:      "Relationship edges produced, by type and scope",
		},
		[]string{"type", "scope"},
	)

	m.LLMRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM requests by prompt key and status",
		},
		[]string{"prompt", "status"},
	)

	m.LLMRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9),
		},
		[]string{"prompt"},
	)

	m.LLMTokensTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by LLM requests",
		},
		[]string{"prompt", "direction"},
	)

	m.DocumentsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by chunking mode",
		},
		[]string{"mode"},
	)

	m.NodesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structural_nodes_total",
			Help:      "Structural nodes produced by segmentation, by kind",
		},
		[]string{"kind"},
	)

	m.ChunkFallbacks = f.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_chunk_fallbacks_total",
			Help:      "Documents where LLM chunking failed and prefix segmentation was used",
		},
	)

	return m
}

// ObserveResolution records one article reaching a terminal state.
func (m *Metrics) ObserveResolution(state string, attempts int) {
	if m == nil {
		return
	}
	m.ResolverOutcomes.WithLabelValues(state).Inc()
	m.ResolverAttempts.WithLabelValues(state).Observe(float64(attempts))
}

// Correction counts one post-condition correction.
func (m *Metrics) Correction(kind string) {
	if m == nil {
		return
	}
	m.ResolverCorrections.WithLabelValues(kind).Inc()
}

// InFlight adjusts the in-flight gauge by delta.
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.ResolverInFlight.Add(delta)
}

// Edge counts one produced relationship edge.
func (m *Metrics) Edge(relType, scope string) {
	if m == nil {
		return
	}
	m.EdgesTotal.WithLabelValues(relType, scope).Inc()
}

// LLMCall records one LLM request.
func (m *Metrics) LLMCall(prompt string, success bool, seconds float64, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.LLMRequestsTotal.WithLabelValues(prompt, status).Inc()
	m.LLMRequestDuration.WithLabelValues(prompt).Observe(seconds)
	m.LLMTokensTotal.WithLabelValues(prompt, "prompt").Add(float64(promptTokens))
	m.LLMTokensTotal.WithLabelValues(prompt, "completion").Add(float64(completionTokens))
}

// Document counts one segmented document.
func (m *Metrics) Document(mode string, counts map[string]int) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues(mode).Inc()
	for kind, n := range counts {
		m.NodesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ChunkFallback counts one LLM chunking fallback.
func (m *Metrics) ChunkFallback() {
	if m == nil {
		return
	}
	m.ChunkFallbacks.Inc()
}
