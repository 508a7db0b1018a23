package middlewares

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Number of HTTP requests per path",
		},
		[]string{"path"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests)
	prometheus.MustRegister(httpRequestDuration)
}

func PrometheusMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// start timer
		timer := prometheus.NewTimer(
			httpRequestDuration.
				WithLabelValues(r.URL.Path),
		)
		defer timer.ObserveDuration()

		// increment counter
		httpRequests.
			WithLabelValues(r.URL.Path).
			Inc()

		// call next handler
		next.ServeHTTP(w, r)
	})
}
