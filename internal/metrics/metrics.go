package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Message metrics
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_messages_received_total",
			Help: "Total messages received",
		},
		[]string{"chat_kind", "type"},
	)

	MessagesDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupbot_messages_duplicate_total",
			Help: "Total duplicate message deliveries dropped",
		},
	)

	MessageLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groupbot_message_latency_seconds",
			Help:    "Delay between platform timestamp and receipt",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	RepliesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_replies_sent_total",
			Help: "Total outbound messages",
		},
		[]string{"status"}, // "ok" or "error"
	)

	// Routing metrics
	RouteHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_route_hits_total",
			Help: "Messages dispatched per route",
		},
		[]string{"route"},
	)

	HandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_handler_errors_total",
			Help: "Uncaught handler errors and panics",
		},
		[]string{"route", "kind"}, // kind: "error" or "panic"
	)

	// Rate limit metrics
	Throttled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupbot_throttled_total",
			Help: "Messages answered with the throttle placeholder",
		},
	)

	// Admin metrics
	AdminCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_admin_commands_total",
			Help: "Admin commands executed",
		},
		[]string{"branch"}, // "command", "shell" or "grammar"
	)

	Invites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_invites_total",
			Help: "Join flow outcomes",
		},
		[]string{"result"}, // "joined" or "added"
	)

	HeartbeatsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbot_heartbeats_total",
			Help: "Heartbeat status reports",
		},
		[]string{"status"},
	)
)
