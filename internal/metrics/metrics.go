package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verba_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verba_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verba_quota_checks_total",
			Help: "Total quota admission checks by capability and outcome.",
		},
		[]string{"capability", "outcome"},
	)

	UsageCommittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verba_usage_committed_total",
			Help: "Total usage units committed by capability.",
		},
		[]string{"capability"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verba_provider_request_duration_seconds",
			Help:    "Latency of external AI provider calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"capability", "status"},
	)

	PlanGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verba_plan_grants_total",
			Help: "Total subscription grants by source.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaChecksTotal,
		UsageCommittedTotal,
		ProviderRequestDuration,
		PlanGrantsTotal,
	)
}
