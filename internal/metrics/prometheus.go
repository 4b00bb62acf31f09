package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PortalRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ifbcloud_portal_requests_total",
		Help: "门户请求次数",
	}, []string{"operation", "result"})

	PortalRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ifbcloud_portal_request_duration_seconds",
		Help:    "门户请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	IPPollAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ifbcloud_ip_poll_attempts",
		Help:    "获取实例 IP 时的轮询次数",
		Buckets: []float64{1, 2, 3, 5, 8, 13},
	})
)

// MustRegister 注册指标，可在 main 中调用。
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(PortalRequests, PortalRequestDuration, IPPollAttempts)
}

// ObservePortalRequest 记录一次门户请求的结果与耗时。
func ObservePortalRequest(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	PortalRequests.WithLabelValues(op, result).Inc()
	PortalRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
