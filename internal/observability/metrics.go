package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the job metrics.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"

	// OutcomeUnrecorded marks a post published on the platform whose posted
	// state could not be stored.
	OutcomeUnrecorded = "published_unrecorded"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xfm_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xfm_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DispatchItems counts dispatched posts by outcome.
	DispatchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xfm_dispatch_items_total",
		Help: "Total number of due posts processed by the dispatch job",
	}, []string{"outcome"})

	// FollowerSnapshots counts follower snapshot attempts by outcome.
	FollowerSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xfm_follower_snapshots_total",
		Help: "Total number of follower snapshot attempts",
	}, []string{"outcome"})

	// JobDuration records how long each job invocation takes.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xfm_job_duration_seconds",
		Help:    "Duration of periodic job invocations in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"job"})

	// PublisherRequests counts calls to the publishing platform.
	PublisherRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xfm_publisher_requests_total",
		Help: "Total number of publishing platform API requests",
	}, []string{"operation", "outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackJob returns a function that records a job's duration when called.
func TrackJob(job string) func() {
	start := time.Now()
	return func() {
		JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	}
}
