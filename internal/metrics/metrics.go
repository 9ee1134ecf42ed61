package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 业务指标（promauto 注册到默认 Registry，经 /metrics 暴露）
var (
	// ResolutionsTotal 解析引擎调用计数，按命中层级与缓存命中情况
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ki2go",
		Name:      "resolutions_total",
		Help:      "Superprompt 解析次数（按解析层级与缓存命中）",
	}, []string{"type", "cache"})

	// ChangeRequestsTotal Change Request 状态流转计数
	ChangeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ki2go",
		Name:      "change_requests_total",
		Help:      "Change Request 状态流转次数",
	}, []string{"status"})

	// ExecutionsTotal 任务执行计数
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ki2go",
		Name:      "executions_total",
		Help:      "任务执行次数（按结果）",
	}, []string{"result"})

	// HTTPRequestDuration HTTP 请求耗时直方图
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ki2go",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP 请求耗时",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"method", "path", "status"})
)
