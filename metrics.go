package attachments

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachments_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attachments_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// metricsMiddleware records request counts and durations per route
// pattern.
func metricsMiddleware() gin.HandlerFunc {
	return func(gc *gin.Context) {
		start := time.Now()
		gc.Next()

		path := gc.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(gc.Writer.Status())
		httpRequestsTotal.WithLabelValues(gc.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(gc.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
