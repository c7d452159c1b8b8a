package modelclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// metricsSet holds the Prometheus instrumentation for model calls, grounded
// on the ambient-stack rule that observability keeps using the pack's own
// client even where the distilled spec is silent on it.
type metricsSet struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metricsSet {
	m := &metricsSet{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navagent_model_requests_total",
			Help: "Model completion calls by vendor and outcome.",
		}, []string{"vendor", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navagent_model_request_duration_seconds",
			Help:    "Model completion call latency by vendor.",
			Buckets: prometheus.DefBuckets,
		}, []string{"vendor"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navagent_model_tokens_total",
			Help: "Token usage by vendor, model, and kind (prompt/cached_prompt/completion).",
		}, []string{"vendor", "model", "kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.tokens)
	}
	return m
}

func (m *metricsSet) observe(vendor, outcome string, seconds float64, usage models.TokenUsage) {
	m.requests.WithLabelValues(vendor, outcome).Inc()
	m.latency.WithLabelValues(vendor).Observe(seconds)
	if usage.Prompt > 0 {
		m.tokens.WithLabelValues(vendor, usage.Model, "prompt").Add(float64(usage.Prompt))
	}
	if usage.CachedPrompt > 0 {
		m.tokens.WithLabelValues(vendor, usage.Model, "cached_prompt").Add(float64(usage.CachedPrompt))
	}
	if usage.Completion > 0 {
		m.tokens.WithLabelValues(vendor, usage.Model, "completion").Add(float64(usage.Completion))
	}
}
