package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PaymentsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_store_payments_settled_total",
		Help: "Deposit transactions settled, by outcome.",
	}, []string{"outcome"})

	PurchasesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proxy_store_purchases_completed_total",
		Help: "Proxy purchases applied successfully.",
	})

	ReplaysRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proxy_store_replays_rejected_total",
		Help: "Requests rejected by the replay guard.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxy_store_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Middleware records request latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
