package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginAttemptsTotal        *prometheus.CounterVec
	AccessControlWritesTotal  *prometheus.CounterVec
	WebsocketClientsConnected prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "school_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_login_attempts_total",
				Help: "Login attempts partitioned by outcome code",
			},
			[]string{"outcome"},
		),
		AccessControlWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_access_control_writes_total",
				Help: "Licensing/RBAC state transitions by action",
			},
			[]string{"action"},
		),
		WebsocketClientsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "school_websocket_clients_connected",
				Help: "Currently connected dashboard websocket clients",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttemptsTotal,
		m.AccessControlWritesTotal,
		m.WebsocketClientsConnected,
	)

	return m
}

// Handler exposes the registry for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
