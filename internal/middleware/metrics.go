package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// httpRequestsTotal counts requests by method, route pattern and status.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration measures request latency. Proxy routes include the
	// backend round trip.
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// authAttemptsTotal counts logins.
	//
	// Labels: provider (local, google, facebook), result (success,
	// invalid_credentials, verification_failed, invalid_state, oauth_failed, error)
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"provider", "result"},
	)

	// upstreamRequestsTotal counts proxied calls to the assistant backend.
	//
	// Labels: route (chat, history, demo), outcome (success, backend_error,
	// network_error, invalid_response, unauthorized)
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of requests proxied to the assistant backend",
		},
		[]string{"route", "outcome"},
	)

	// sessionExpirationsTotal counts sessions ended because the backend
	// rejected the token or the token's own expiry passed.
	sessionExpirationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_expirations_total",
			Help: "Total number of sessions cleared after expiry",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpResponseSize)
	prometheus.MustRegister(authAttemptsTotal)
	prometheus.MustRegister(upstreamRequestsTotal)
	prometheus.MustRegister(sessionExpirationsTotal)
}

// Metrics records count, latency and response size of every request.
// Requests are labeled with the chi route pattern (for example
// "/api/v1/auth/{provider}/login") so path parameters do not explode the
// label space.
//
// Example Prometheus queries:
//
//	# Proxy error rate
//	sum(rate(upstream_requests_total{outcome!="success"}[5m])) / sum(rate(upstream_requests_total[5m]))
//
//	# P95 chat latency
//	histogram_quantile(0.95, rate(http_request_duration_seconds_bucket{path="/api/chat/"}[5m]))
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := routePattern(r)
			status := strconv.Itoa(ww.Status())

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			httpResponseSize.WithLabelValues(r.Method, path).Observe(float64(ww.BytesWritten()))
		})
	}
}

// routePattern returns the matched chi pattern, or "unmatched" so unknown
// paths share one series.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// MetricsHandler exposes the default registry in Prometheus text format.
//
// Usage:
//
//	r.Get("/metrics", middleware.MetricsHandler().ServeHTTP)
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// IncrementAuthAttempts counts one login attempt.
//
// Example:
//
//	middleware.IncrementAuthAttempts("local", "invalid_credentials")
func IncrementAuthAttempts(provider, result string) {
	authAttemptsTotal.WithLabelValues(provider, result).Inc()
}

// RecordUpstream counts one proxied backend call.
func RecordUpstream(route, outcome string) {
	upstreamRequestsTotal.WithLabelValues(route, outcome).Inc()
}

// IncrementSessionExpirations counts one expired session.
func IncrementSessionExpirations() {
	sessionExpirationsTotal.Inc()
}
