package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connections tracks live websocket connections.
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circlet_ws_connections",
			Help: "Number of live websocket connections",
		},
	)

	// OnlineUsers tracks users with at least one live connection.
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circlet_online_users",
			Help: "Number of users with at least one live connection",
		},
	)

	// ActiveCalls tracks call sessions held in memory (ringing or active).
	ActiveCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circlet_active_calls",
			Help: "Number of tracked call sessions",
		},
	)

	// CallOutcomes counts terminal call statuses (rejected|missed|ended) and offline failures.
	CallOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circlet_call_outcomes_total",
			Help: "Total number of calls by terminal outcome",
		},
		[]string{"outcome"},
	)

	// InboundEvents counts client events by name and result (ok|error).
	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circlet_inbound_events_total",
			Help: "Total number of inbound websocket events",
		},
		[]string{"event", "result"},
	)

	// Notifications counts dispatched notifications by type.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circlet_notifications_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"type"},
	)

	// DroppedSends counts outbound events that could not be enqueued.
	DroppedSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circlet_dropped_sends_total",
			Help: "Outbound events dropped because a connection was closed or full",
		},
	)
)
