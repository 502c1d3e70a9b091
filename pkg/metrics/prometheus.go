package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProtocolsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prototrack_protocols_created_total",
			Help: "Total number of protocols created",
		},
		[]string{"department"},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prototrack_transitions_total",
			Help: "Total number of status transitions by target status",
		},
		[]string{"status"},
	)

	SequenceRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prototrack_sequence_retries_total",
			Help: "Protocol number collisions resolved by internal retry",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prototrack_notifications_total",
			Help: "Notification delivery outcomes",
		},
		[]string{"outcome"},
	)

	RowToggles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prototrack_row_toggles_total",
			Help: "Total per-row check toggles",
		},
	)
)
