package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connections
	ActivePeers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_active_peers",
		Help: "Number of connected peers",
	})

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_active_rooms",
		Help: "Number of live rooms",
	})

	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_connections_total",
		Help: "Total WebSocket connections accepted",
	})

	// Message flow
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_messages_received_total",
		Help: "Inbound messages by type",
	}, []string{"type"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_messages_sent_total",
		Help: "Outbound messages enqueued",
	})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_errors_total",
		Help: "Error envelopes sent to peers, by kind",
	}, []string{"kind"})

	// Liveness
	EvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_evictions_total",
		Help: "Peers evicted by the supervisor, by reason",
	}, []string{"reason"})

	// Trickle ICE
	ICEQueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_ice_queued_total",
		Help: "ICE candidates held for a not-yet-ready recipient",
	})

	ICEFlushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_ice_flushed_total",
		Help: "Queued ICE candidates delivered on drain",
	})
)

// Helper functions

func RecordError(kind string) {
	ErrorsTotal.WithLabelValues(kind).Inc()
}

func RecordEviction(reason string) {
	EvictionsTotal.WithLabelValues(reason).Inc()
}

func RecordMessage(msgType string) {
	MessagesReceived.WithLabelValues(msgType).Inc()
}
