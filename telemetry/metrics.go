// Package telemetry holds the service's Prometheus collectors.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scribe"

// Cache lookup results.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultError   = "error"
	ResultCorrupt = "corrupt"
)

// Metrics holds all Prometheus collectors for the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	CacheLookups      *prometheus.CounterVec
	CacheStoreErrors  *prometheus.CounterVec
	Invalidations     *prometheus.CounterVec
	InvalidatedKeys   prometheus.Counter
	RetryQueueLength  prometheus.Gauge
	RetryDropped      prometheus.Counter
	RateLimitRejects  *prometheus.CounterVec
	AIRequestDuration *prometheus.HistogramVec
	AIRequestErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Read-through cache lookups by key kind and result.",
		}, []string{"kind", "result"}),

		CacheStoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_store_errors_total",
			Help:      "Cache store operations that failed or timed out.",
		}, []string{"op"}),

		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Write-triggered invalidations by event and outcome.",
		}, []string{"event", "outcome"}),

		InvalidatedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidated_keys_total",
			Help:      "Keys removed by invalidation.",
		}),

		RetryQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_retry_queue_length",
			Help:      "Invalidations waiting for a background retry.",
		}),

		RetryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_retry_dropped_total",
			Help:      "Invalidations dropped because the retry queue was full or attempts ran out.",
		}),

		RateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejects_total",
			Help:      "Total rate limit rejections.",
		}, []string{"policy"}),

		AIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Remote model call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),

		AIRequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_request_errors_total",
			Help:      "Remote model calls that failed.",
		}, []string{"task"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.CacheLookups,
		m.CacheStoreErrors,
		m.Invalidations,
		m.InvalidatedKeys,
		m.RetryQueueLength,
		m.RetryDropped,
		m.RateLimitRejects,
		m.AIRequestDuration,
		m.AIRequestErrors,
	)

	return m
}

func (m *Metrics) CacheLookup(kind, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) CacheStoreError(op string) {
	if m == nil {
		return
	}
	m.CacheStoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) Invalidation(event, outcome string, keys int) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(event, outcome).Inc()
	if keys > 0 {
		m.InvalidatedKeys.Add(float64(keys))
	}
}

func (m *Metrics) RetryQueue(depth int) {
	if m == nil {
		return
	}
	m.RetryQueueLength.Set(float64(depth))
}

func (m *Metrics) RetryDrop() {
	if m == nil {
		return
	}
	m.RetryDropped.Inc()
}

func (m *Metrics) RateLimitReject(policy string) {
	if m == nil {
		return
	}
	m.RateLimitRejects.WithLabelValues(policy).Inc()
}

func (m *Metrics) AIRequest(task string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.AIRequestDuration.WithLabelValues(task).Observe(elapsed.Seconds())
	if err != nil {
		m.AIRequestErrors.WithLabelValues(task).Inc()
	}
}

func (m *Metrics) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
