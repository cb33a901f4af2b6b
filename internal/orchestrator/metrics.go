package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "lumond"
	metricsSubsystem = "orchestrator"
)

var (
	extensionsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "extensions_applied_total",
			Help:      "Total number of topic extensions folded into outgoing prompts",
		},
		[]string{"topic"},
	)

	providersExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "providers_exhausted_total",
			Help:      "Total number of turns answered with the apology because every provider failed",
		},
	)
)

func recordExtensionApplied(topic string) {
	extensionsApplied.WithLabelValues(topic).Inc()
}

func recordExhausted() {
	providersExhausted.Inc()
}
