package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhive_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyhive_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhive_chat_connections_active",
			Help: "Currently open WebSocket connections",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhive_chat_rooms_active",
			Help: "Rooms with at least one live connection",
		},
	)

	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhive_chat_messages_relayed_total",
			Help: "Messages fanned out to rooms",
		},
		[]string{"type"}, // text, image, file, system
	)

	MessagePersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyhive_chat_message_persist_failures_total",
			Help: "Durable writes that failed after the broadcast went out",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyhive_chat_events_dropped_total",
			Help: "Server events dropped because a session buffer was full or closed",
		},
	)

	TypingEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhive_chat_typing_events_total",
			Help: "Typing start/stop signals processed",
		},
		[]string{"action"}, // "start" or "stop"
	)

	ReactionsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyhive_chat_reactions_added_total",
			Help: "Reactions recorded on messages",
		},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studyhive_store_latency_seconds",
			Help:    "Durable store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
