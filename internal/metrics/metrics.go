// Package metrics defines the Prometheus instruments shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Booking lifecycle metrics
var (
	// BookingsCreated counts successful booking creations.
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total bookings successfully created",
		},
	)

	// BookingTransitions counts state-machine transitions by target status.
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking status transitions by target status",
		},
		[]string{"to"},
	)

	// SlotHolds counts hold attempts by outcome (acquired, lost, released).
	SlotHolds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_holds_total",
			Help: "Slot hold operations by outcome",
		},
		[]string{"outcome"},
	)
)

// Session metrics
var (
	// SessionsCreated counts logins.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Total sessions created by login",
		},
	)

	// SessionsSwept counts expired sessions removed by the background sweep.
	SessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_swept_total",
			Help: "Total expired sessions removed by the sweeper",
		},
	)
)

// Realtime hub metrics
var (
	// WebSocketConnections tracks currently open realtime connections.
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_current",
			Help: "Currently open WebSocket connections",
		},
	)

	// ForceLogouts counts connections closed by session supersession.
	ForceLogouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_force_logouts_total",
			Help: "Connections closed because a newer login superseded them",
		},
	)

	// FramesSent counts frames pushed to clients by frame type.
	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_frames_sent_total",
			Help: "Realtime frames sent by type",
		},
		[]string{"type"},
	)

	// SlowClientDisconnects counts clients dropped for failing to keep up.
	SlowClientDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_client_disconnects_total",
			Help: "Clients disconnected because their send buffer filled",
		},
	)

	// ConnectionsRejected counts upgrades refused by the connection limiters.
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Connection attempts rejected by limiter",
		},
		[]string{"limiter"},
	)
)

// HTTP metrics
var (
	// HTTPErrorsTotal tracks HTTP errors by type.
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"type"},
	)
)

// Cross-instance coordination metrics
var (
	// PubSubMessagesReceived counts remote fan-out messages by channel.
	PubSubMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_messages_received_total",
			Help: "Pub/sub messages received by channel",
		},
		[]string{"channel"},
	)

	// EventPublishFailures counts dropped external bus publishes.
	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "External event bus publishes that failed and were dropped",
		},
	)
)
