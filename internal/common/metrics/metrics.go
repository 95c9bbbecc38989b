package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 汇总本服务的 Prometheus 指标。
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec   // 按 method/path/status 统计请求数
	HTTPRequestDuration *prometheus.HistogramVec // 请求耗时（秒）
	RateLimitRejections prometheus.Counter       // 被限流拒绝的请求数

	registry *prometheus.Registry
}

// NewMetrics 创建并注册全部指标。reg 传 nil 时使用独立 registry
// （/metrics 只暴露本服务指标，不带 go runtime 默认采集之外的内容）。
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status code",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RateLimitRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limit_rejections_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
		registry: reg,
	}
}

// Handler 返回 /metrics 的 HTTP handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
