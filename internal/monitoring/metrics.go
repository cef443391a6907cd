// Package monitoring exposes Prometheus metrics for the bridge.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Call surface metrics
	CallsTotal *prometheus.CounterVec

	// Correlation metrics
	CorrelationsPending  prometheus.Gauge
	CorrelationsTimedOut prometheus.Gauge

	// Port metrics
	PortsActive prometheus.Gauge

	// Storage metrics
	StorageMutations       *prometheus.CounterVec
	StorageQuotaRejections prometheus.Counter

	// Alarm metrics
	AlarmsActive prometheus.Gauge
	AlarmsFired  prometheus.Counter

	// Transport metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_calls_total",
				Help: "Total method calls from script contexts",
			},
			[]string{"method", "status"},
		),
		CorrelationsPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_correlations_pending",
				Help: "Correlation entries awaiting settlement",
			},
		),
		CorrelationsTimedOut: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_correlations_timed_out_total",
				Help: "Correlation entries settled by timeout",
			},
		),
		PortsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_ports_active",
				Help: "Currently connected ports",
			},
		),
		StorageMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_storage_mutations_total",
				Help: "Successful storage mutations",
			},
			[]string{"op"},
		),
		StorageQuotaRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_storage_quota_rejections_total",
				Help: "Storage mutations rejected over quota",
			},
		),
		AlarmsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_alarms_active",
				Help: "Currently armed alarms",
			},
		),
		AlarmsFired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_alarms_fired_total",
				Help: "Total alarm firings",
			},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_ws_connections",
				Help: "Attached websocket contexts",
			},
		),
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}
}

// Handler returns the scrape endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// UpdateUptime refreshes the uptime gauge
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
