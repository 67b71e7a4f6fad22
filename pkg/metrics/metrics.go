// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests.
	// Labels: method, route (chi pattern), status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlink_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// CodeCollisions counts random candidates rejected because they were taken.
	CodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_code_collisions_total",
			Help: "Generated short codes that were already in use",
		},
	)

	// URLsCreated counts created short URLs.
	// Labels: kind ("alias" or "generated").
	URLsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_urls_created_total",
			Help: "Total number of short URLs created",
		},
		[]string{"kind"},
	)

	// Redirects counts redirect lookups.
	// Labels: outcome ("hit", "miss", "not_found", "error"), where hit/miss
	// refers to the redirect cache.
	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_redirects_total",
			Help: "Total number of redirect lookups",
		},
		[]string{"outcome"},
	)
)

// Middleware records HTTPRequests and HTTPDuration for every request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
