// Package metrics provides Prometheus instrumentation for the console.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "console",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "console",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// GatewayRequestsTotal counts calls to the backend gateway API by operation and result.
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "console",
			Name:      "gateway_requests_total",
			Help:      "Total backend gateway API calls by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// PaymentSessionsStarted counts payment sessions created.
	PaymentSessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "payment_sessions_started_total",
		Help:      "Total payment sessions initialized.",
	})

	// PaymentSessionsByOutcome counts terminal session outcomes.
	PaymentSessionsByOutcome = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "console",
			Name:      "payment_sessions_total",
			Help:      "Total payment sessions reaching a terminal step.",
		},
		[]string{"outcome"},
	)

	// AddressesGenerated counts successful deposit address generations.
	AddressesGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "addresses_generated_total",
		Help:      "Total deposit addresses minted via the payment page.",
	})

	// ActivePaymentSessions tracks live in-memory payment sessions.
	ActivePaymentSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "console",
		Name:      "active_payment_sessions",
		Help:      "Number of currently live payment sessions.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "console",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GatewayRequestsTotal,
		PaymentSessionsStarted,
		PaymentSessionsByOutcome,
		AddressesGenerated,
		ActivePaymentSessions,
		ActiveWebSocketClients,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
