package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	apiRequestsTotal         *prometheus.CounterVec
	apiLatencySeconds        *prometheus.HistogramVec
	apiErrorsTotal           *prometheus.CounterVec
	gatewayConnectionsTotal  prometheus.Counter
	gatewayConnectedSessions prometheus.Gauge
	gatewayEventsTotal       *prometheus.CounterVec
	messagesStoredTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octave_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "octave_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octave_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gatewayConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "octave_gateway_connections_total",
			Help: "Total number of websocket gateway connections accepted.",
		})

		gatewayConnectedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "octave_gateway_connected_sessions",
			Help: "Number of currently connected gateway sessions.",
		})

		gatewayEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octave_gateway_events_total",
			Help: "Total number of gateway events emitted, by event name.",
		}, []string{"event"})

		messagesStoredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octave_messages_stored_total",
			Help: "Total number of messages persisted, by message type.",
		}, []string{"type"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			gatewayConnectionsTotal,
			gatewayConnectedSessions,
			gatewayEventsTotal,
			messagesStoredTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GatewayConnectionsTotal exposes the counter for accepted gateway
// connections.
func GatewayConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return gatewayConnectionsTotal
}

// GatewayConnectedSessions exposes the gauge of live gateway sessions.
func GatewayConnectedSessions() prometheus.Gauge {
	RegisterMetrics()
	return gatewayConnectedSessions
}

// GatewayEventsTotal exposes the counter for emitted gateway events.
func GatewayEventsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return gatewayEventsTotal
}

// MessagesStoredTotal exposes the counter for persisted messages.
func MessagesStoredTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesStoredTotal
}
