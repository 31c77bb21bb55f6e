package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Presence
	ConnectedParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatroom_connected_participants",
			Help: "Participants currently holding a display name",
		},
	)

	// Pipeline
	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_messages_persisted_total",
			Help: "Messages stored and broadcast",
		},
		[]string{"kind"}, // "text" or "image"
	)

	MessageFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatroom_message_failures_total",
			Help: "Messages rejected because persistence failed",
		},
	)

	PersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatroom_persist_duration_seconds",
			Help:    "Message insert latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
	)

	// Transport
	DeliveriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatroom_deliveries_dropped_total",
			Help: "Outbound events dropped because a connection could not accept them",
		},
	)

	UploadsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatroom_uploads_stored_total",
			Help: "Images accepted by the upload endpoint",
		},
	)
)
