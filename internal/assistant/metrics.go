package assistant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "lumond"
	metricsSubsystem = "assistant"
)

var (
	sessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created",
		},
	)

	chatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "chat_turns_total",
			Help:      "Total number of completed chat turns by answering provider",
		},
		[]string{"provider"},
	)

	handoffs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "handoffs_total",
			Help:      "Total number of human-handoff escalations by trigger",
		},
		[]string{"trigger"},
	)

	bookings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "appointments_booked_total",
			Help:      "Total number of appointments booked",
		},
	)
)

func recordSessionCreated() { sessionsCreated.Inc() }

func recordChatTurn(provider string) { chatTurns.WithLabelValues(provider).Inc() }

func recordHandoff(trigger string) { handoffs.WithLabelValues(trigger).Inc() }

func recordBooking() { bookings.Inc() }
