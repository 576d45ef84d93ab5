package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access control metrics
	AccessChecksTotal  *prometheus.CounterVec
	AccessDeniedTotal  *prometheus.CounterVec

	// Audit metrics
	AuditRecordsTotal      *prometheus.CounterVec
	AuditWriteFailuresTotal prometheus.Counter

	// Notification metrics
	NotificationsEnqueuedTotal *prometheus.CounterVec
	NotificationsDroppedTotal  prometheus.Counter
	NotificationSendsTotal     *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	PermitsTotal    prometheus.Gauge
	MilestonesTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permitdesk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "permitdesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AccessChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permitdesk_access_checks_total",
				Help: "Total number of permit access resolutions",
			},
			[]string{"outcome"},
		),
		AccessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permitdesk_access_denied_total",
				Help: "Total number of denied mutation attempts",
			},
			[]string{"operation"},
		),
		AuditRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permitdesk_audit_records_total",
				Help: "Total number of activity records written",
			},
			[]string{"action"},
		),
		AuditWriteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "permitdesk_audit_write_failures_total",
				Help: "Total number of failed activity record writes; compliance-relevant",
			},
		),
		NotificationsEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permitdesk_notifications_enqueued_total",
				Help: "Total number of notifications enqueued for dispatch",
			},
			[]string{"kind"},
		),
		NotificationsDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "permitdesk_notifications_dropped_total",
				Help: "Total number of notifications dropped due to a full queue",
			},
		),
		NotificationSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permitdesk_notification_sends_total",
				Help: "Total number of notification delivery attempts",
			},
			[]string{"channel", "outcome"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "permitdesk_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "permitdesk_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		PermitsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "permitdesk_permits_total",
				Help: "Total number of permits",
			},
		),
		MilestonesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "permitdesk_milestones_total",
				Help: "Total number of milestones",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessChecksTotal,
		m.AccessDeniedTotal,
		m.AuditRecordsTotal,
		m.AuditWriteFailuresTotal,
		m.NotificationsEnqueuedTotal,
		m.NotificationsDroppedTotal,
		m.NotificationSendsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.PermitsTotal,
		m.MilestonesTotal,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusWriter captures the response status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
