// Package metrics は Prometheus 向けのメトリクスを定義します。
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tool_forge"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Number of HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"method", "route"})

	downloadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "video_downloads_in_flight",
		Help:      "Number of video downloads currently running.",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "video_downloads_total",
		Help:      "Number of finished video downloads by result.",
	}, []string{"result"})
)

// Middleware はルート単位でリクエスト数とレイテンシを記録します。
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler は /metrics のハンドラーを返します。
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// DownloadStarted は実行中ダウンロード数を増やします。
func DownloadStarted() {
	downloadsInFlight.Inc()
}

// DownloadFinished は実行中ダウンロード数を減らし、結果を記録します。
func DownloadFinished(result string) {
	downloadsInFlight.Dec()
	downloadsTotal.WithLabelValues(result).Inc()
}
