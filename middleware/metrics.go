package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "servicehub",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route, method and status",
	Buckets:   prometheus.DefBuckets,
}, []string{"route", "method", "status"})

// Metrics records request latency. Routes are labelled by their pattern so
// ids in the path do not explode the label set.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
