// Package ws – Prometheus instrumentation for the chat core.
//
// Collectors mirror the HTTP layer's conventions: bounded label sets,
// counters for discrete events, a gauge for live state. All collectors are
// safe for concurrent use.
package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	// connectionsActive gauges the number of live WebSocket connections.
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Current number of live chat WebSocket connections.",
		},
	)

	// handshakesTotal counts handshake attempts by outcome. Outcomes:
	// accepted, refused_forbidden, refused_not_found, refused_bad_request,
	// failed_upgrade, failed_internal.
	handshakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_handshakes_total",
			Help: "Total chat handshake attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// framesTotal counts inbound frames by result. Results: published,
	// malformed, rejected, store_error.
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_inbound_frames_total",
			Help: "Total inbound chat frames by processing result.",
		},
		[]string{"result"},
	)

	// publishDropsTotal counts fan-out deliveries dropped because a
	// member's send queue was full.
	publishDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_publish_drops_total",
			Help: "Total fan-out deliveries dropped due to full send queues.",
		},
	)
)

func init() {
	prometheus.MustRegister(connectionsActive, handshakesTotal, framesTotal, publishDropsTotal)
}
