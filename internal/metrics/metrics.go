// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	// Time spent building month aggregates, excluding storage reads.
	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_aggregation_duration_seconds",
			Help:    "Time spent computing habit, task and overview aggregates",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10µs to ~160ms
		},
		[]string{"view"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_requests_total",
			Help: "Month snapshot cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_mutations_total",
			Help: "Write operations by kind and outcome",
		},
		[]string{"operation", "status"}, // status: success, failed
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	SuspiciousRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_suspicious_requests_total",
			Help: "Requests matching known attack patterns",
		},
	)

	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_mq_consume_latency_ms",
			Help:    "MQ message handling latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"queue", "status"},
	)
)

func RecordHTTPRequestDuration(method, route, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func RecordAggregation(view string, d time.Duration) {
	AggregationDuration.WithLabelValues(view).Observe(d.Seconds())
}

func CacheHit()  { CacheRequests.WithLabelValues("hit").Inc() }
func CacheMiss() { CacheRequests.WithLabelValues("miss").Inc() }

// RecordMutation counts a write, labelling it failed when err is non-nil.
func RecordMutation(op string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	Mutations.WithLabelValues(op, status).Inc()
}

func RecordMQConsumeLatency(queue, status string, d time.Duration) {
	MQConsumeLatency.WithLabelValues(queue, status).Observe(float64(d.Milliseconds()))
}
