// Package metrics exposes the Prometheus collectors shared by the services.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	// AuthzDenials counts rejected access decisions by reason code
	AuthzDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denials_total",
			Help: "Access decisions that were denied",
		},
		[]string{"code", "capability"},
	)

	// AuditWrites counts audit appends by outcome
	AuditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_writes_total",
			Help: "Audit record writes by result",
		},
		[]string{"result"},
	)

	// OutboxPublished counts audit outbox rows handed to the event bus
	OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_outbox_published_total",
			Help: "Audit outbox rows processed by result",
		},
		[]string{"result"},
	)

	registerOnce sync.Once
)

// Register adds the collectors to the default registry once per process
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AuthzDenials,
			AuditWrites,
			OutboxPublished,
		)
	})
}

// Middleware records request count and latency for service
func Middleware(service string) gin.HandlerFunc {
	Register()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		RequestCounter.WithLabelValues(service, c.Request.Method, path, status).Inc()
		RequestDuration.WithLabelValues(service, c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus exposition format
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
