package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "osm_eval"

// 引擎指标
var (
	// LeasesGranted 租约领取结果：created | reused | no_work | not_entitled | error
	LeasesGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "requests_total",
			Help:      "Lease requests by outcome.",
		},
		[]string{"outcome"},
	)

	// ItemsLeased 分配出去的答卷份数
	ItemsLeased = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lease",
		Name:      "items_assigned_total",
		Help:      "Work items assigned through new leases.",
	})

	// Commits 评分提交结果：active | completed | expired | untracked
	Commits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "commits_total",
			Help:      "Evaluation commits by resulting batch status.",
		},
		[]string{"batch_status"},
	)

	// ConsistencyWarnings 提交时找不到对应台账的次数
	ConsistencyWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "consistency_warnings_total",
		Help:      "Commits accepted without a matching open ledger entry.",
	})

	// LeasesReclaimed 过期回收的租约数
	LeasesReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reclaimer",
		Name:      "leases_total",
		Help:      "Expired leases deactivated by the reclaimer.",
	})

	// ItemsReleased 回收后回到答卷池的份数
	ItemsReleased = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reclaimer",
		Name:      "items_released_total",
		Help:      "Unchecked work items returned to the pool.",
	})

	// SweepDuration 单次回收扫描耗时
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reclaimer",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a reclaim sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	// TxRetries 事务冲突重试次数
	TxRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "tx_retries_total",
		Help:      "Transactions re-run after a retryable conflict.",
	})
)

// HTTP 指标
var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		LeasesGranted,
		ItemsLeased,
		Commits,
		ConsistencyWarnings,
		LeasesReclaimed,
		ItemsReleased,
		SweepDuration,
		TxRetries,
		HTTPRequests,
		HTTPDuration,
	)
}

// Handler 返回 Prometheus 抓取端点
func Handler() http.Handler {
	return promhttp.Handler()
}
