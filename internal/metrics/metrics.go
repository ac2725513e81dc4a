package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "collab_service"

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnectionsTotal  prometheus.Counter
	WSActiveConnections prometheus.Gauge
	WSAuthFailures      prometheus.Counter
	WSRateLimited       prometheus.Counter

	// Hub metrics
	RoomsActive        prometheus.Gauge
	RoomJoinsTotal     prometheus.Counter
	RoomJoinsDenied    prometheus.Counter
	EventsRoutedTotal  *prometheus.CounterVec
	EventsDroppedTotal prometheus.Counter
	PresenceEntries    prometheus.Gauge
	SweepEvictions     *prometheus.CounterVec

	// External API metrics
	ExternalAPIRequestDuration *prometheus.HistogramVec
	ExternalAPIErrors          *prometheus.CounterVec
}

// New creates and registers all metrics with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all metrics with a custom registry.
// Tests use this to avoid duplicate registration panics.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "endpoint"},
		),
		WSConnectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_connections_total",
				Help:      "Total number of WebSocket connections accepted",
			},
		),
		WSActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_active_connections",
				Help:      "Number of currently open WebSocket connections",
			},
		),
		WSAuthFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_auth_failures_total",
				Help:      "Connections refused due to token validation failure",
			},
		),
		WSRateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_rate_limited_total",
				Help:      "Connection attempts rejected by the per-origin limiter",
			},
		),
		RoomsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rooms_active",
				Help:      "Number of topics with at least one member",
			},
		),
		RoomJoinsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "room_joins_total",
				Help:      "Total number of successful topic joins",
			},
		),
		RoomJoinsDenied: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "room_joins_denied_total",
				Help:      "Topic joins rejected by access control",
			},
		),
		EventsRoutedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_routed_total",
				Help:      "Envelopes routed, labeled by event name",
			},
			[]string{"event"},
		),
		EventsDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Envelope deliveries dropped because a connection's send buffer was full",
			},
		),
		PresenceEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "presence_entries",
				Help:      "Number of identities with a live presence record",
			},
		),
		SweepEvictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_evictions_total",
				Help:      "Entries expired by lifecycle sweeps, labeled by sweep name",
			},
			[]string{"sweep"},
		),
		ExternalAPIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_api_request_duration_seconds",
				Help:      "External service call duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method"},
		),
		ExternalAPIErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_api_errors_total",
				Help:      "External service call failures",
			},
			[]string{"service"},
		),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ShouldSkipEndpoint reports whether a path is excluded from HTTP metrics.
func ShouldSkipEndpoint(path string) bool {
	switch path {
	case "/metrics", "/health", "/ready":
		return true
	}
	return false
}

// RecordExternalAPICall records duration and outcome of a collaborator call.
func (m *Metrics) RecordExternalAPICall(service, method string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ExternalAPIRequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
	if err != nil {
		m.ExternalAPIErrors.WithLabelValues(service).Inc()
	}
}
