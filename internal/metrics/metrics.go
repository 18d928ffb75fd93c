// Package metrics holds the backend's Prometheus collectors on a private
// registry, plus a JSON summary handler for the status page.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the huddle backend.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Media metrics.
	MediaUploadsTotal   prometheus.Counter
	MediaDeletesTotal   prometheus.Counter
	PresignIssuedTotal  *prometheus.CounterVec
	MediaBytesStored    prometheus.Counter
	ThumbnailsGenerated prometheus.Counter

	// Auth metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec

	// Rate limiting.
	RateLimitRejectionsTotal prometheus.Counter

	// Audit collector metrics.
	AuditEventsTotal  prometheus.Counter
	AuditFlushesTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "huddle_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		MediaUploadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_media_uploads_total",
			Help: "Total number of completed media uploads.",
		}),

		MediaDeletesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_media_deletes_total",
			Help: "Total number of media deletions.",
		}),

		PresignIssuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_presign_issued_total",
			Help: "Total number of presigned URLs issued.",
		}, []string{"direction"}),

		MediaBytesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_media_bytes_stored_total",
			Help: "Total bytes registered through upload completion.",
		}),

		ThumbnailsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_thumbnails_generated_total",
			Help: "Total number of thumbnails generated.",
		}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"auth_type"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"auth_type"}),

		RateLimitRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}),

		AuditEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_audit_events_total",
			Help: "Total number of audit events recorded.",
		}),

		AuditFlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_audit_flushes_total",
			Help: "Total number of audit collector flushes.",
		}, []string{"status"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.MediaUploadsTotal,
		m.MediaDeletesTotal,
		m.PresignIssuedTotal,
		m.MediaBytesStored,
		m.ThumbnailsGenerated,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.RateLimitRejectionsTotal,
		m.AuditEventsTotal,
		m.AuditFlushesTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// IncHTTPRequest records one finished request.
func (m *Metrics) IncHTTPRequest(method, pathPattern string, statusCode int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, fmt.Sprintf("%d", statusCode)).Inc()
}

// ObserveHTTPDuration records one request duration.
func (m *Metrics) ObserveHTTPDuration(method, pathPattern string, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(seconds)
}

// IncAuthFailure increments the auth failure counter for the given auth type.
func (m *Metrics) IncAuthFailure(authType string) {
	m.AuthFailuresTotal.WithLabelValues(authType).Inc()
}

// IncAuthSuccess increments the auth success counter for the given auth type.
func (m *Metrics) IncAuthSuccess(authType string) {
	m.AuthSuccessesTotal.WithLabelValues(authType).Inc()
}

// IncPresign counts an issued presigned URL; direction is upload or download.
func (m *Metrics) IncPresign(direction string) {
	m.PresignIssuedTotal.WithLabelValues(direction).Inc()
}
