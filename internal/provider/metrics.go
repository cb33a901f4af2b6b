package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "lumond"
	metricsSubsystem = "provider"
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Duration of LLM provider requests in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "Total number of LLM provider requests",
		},
		[]string{"provider", "status"},
	)

	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "fallbacks_total",
			Help:      "Total number of intra-provider fallbacks to an alternate endpoint or model",
		},
		[]string{"provider"},
	)

	tokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "tokens_total",
			Help:      "Total number of tokens reported by providers",
		},
		[]string{"provider", "type"},
	)
)

// RecordRequest records the outcome and duration of one provider attempt.
func RecordRequest(provider string, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	requestDuration.WithLabelValues(provider, status).Observe(seconds)
	requestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordFallback counts a switch to the next endpoint or model within one provider.
func RecordFallback(provider string) {
	fallbacksTotal.WithLabelValues(provider).Inc()
}

// RecordTokens records token usage when the provider reports it.
func RecordTokens(provider string, promptTokens, completionTokens int) {
	tokensTotal.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	tokensTotal.WithLabelValues(provider, "completion").Add(float64(completionTokens))
}
