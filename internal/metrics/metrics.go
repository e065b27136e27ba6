package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qcs_http_requests_total",
		Help: "HTTP requests handled, by route and status code",
	}, []string{"method", "route", "status"})
	httpDurationMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qcs_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	issueEventsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qcs_issue_events_total",
		Help: "Issue lifecycle mutations committed, by action",
	}, []string{"action"})
	fileCleanupFailuresMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qcs_file_cleanup_failures_total",
		Help: "Stored photo files that could not be removed",
	})
)

// ObserveRequest 记录一次HTTP请求
func ObserveRequest(method, route, status string, seconds float64) {
	httpRequestsMetric.WithLabelValues(method, route, status).Inc()
	httpDurationMetric.WithLabelValues(method, route).Observe(seconds)
}

// IssueEvent 记录一次已提交的生命周期变更
func IssueEvent(action string) {
	issueEventsMetric.WithLabelValues(action).Inc()
}

// FileCleanupFailed 文件删除失败计数
func FileCleanupFailed() {
	fileCleanupFailuresMetric.Inc()
}
