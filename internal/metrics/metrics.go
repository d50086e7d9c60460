// Package metrics exposes Prometheus metrics for the auth facade and the HTTP surface.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nutrinani/nutrinani/internal/auth"
)

// Collector records facade operations. It implements auth.Observer.
type Collector struct {
	operations     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	sessionLookups *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

var _ auth.Observer = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrinani_auth_operations_total",
			Help: "Auth facade operations by operation, mode and outcome.",
		}, []string{"operation", "mode", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nutrinani_auth_operation_duration_seconds",
			Help:    "Latency of state-changing auth facade operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "mode"}),
		sessionLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrinani_auth_session_lookups_total",
			Help: "CurrentUser and AccessToken calls by whether a session was found.",
		}, []string{"operation", "found"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrinani_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.operations,
		c.latency,
		c.sessionLookups,
		c.httpStatus,
	)

	return c
}

// ObserveAuth records one facade call.
func (c *Collector) ObserveAuth(_ context.Context, e auth.Event) {
	op := string(e.Operation)
	if e.Query {
		c.sessionLookups.WithLabelValues(op, strconv.FormatBool(e.Found)).Inc()
		return
	}

	status := "success"
	if e.Err != nil {
		status = "failed"
	}
	c.operations.WithLabelValues(op, string(e.Mode), status).Inc()
	c.latency.WithLabelValues(op, string(e.Mode)).Observe(e.Duration.Seconds())
}

// RecordHTTPStatus records a response status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Middleware counts responses by status code.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		c.RecordHTTPStatus(ctx.Writer.Status())
	}
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		Timeout: 10 * time.Second,
	})
}
