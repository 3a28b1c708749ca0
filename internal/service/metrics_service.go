package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/peer-tutoring-api/pkg/jobs"
)

// MetricsService owns the Prometheus registry and every collector the API exports.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheWrite      prometheus.Observer

	matchingDuration  prometheus.Histogram
	pairingsAccepted  prometheus.Counter
	conflictRejected  prometheus.Counter
	completionTicks   *prometheus.CounterVec
	requestsCompleted prometheus.Counter
	transitions       *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	matchingDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matching_run_duration_seconds",
		Help:    "Duration of matching computations",
		Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	pairingsAccepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matching_pairings_accepted_total",
		Help: "Pairings confirmed by persisted matching runs",
	})

	conflictRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matching_conflict_rejections_total",
		Help: "Matched edges dropped by the timeslot conflict pass",
	})

	completionTicks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "completion_ticks_total",
		Help: "Completion scheduler ticks by outcome",
	}, []string{"outcome"})

	requestsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "completion_requests_completed_total",
		Help: "Requests moved from CONFIRMED to COMPLETED",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairing_request_transitions_total",
		Help: "Pairing request state transitions",
	}, []string{"to"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheWrite,
		matchingDuration, pairingsAccepted, conflictRejected, completionTicks, requestsCompleted, transitions, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLookups:      cacheLookups,
		cacheWrite:        cacheWrite,
		matchingDuration:  matchingDuration,
		pairingsAccepted:  pairingsAccepted,
		conflictRejected:  conflictRejected,
		completionTicks:   completionTicks,
		requestsCompleted: requestsCompleted,
		transitions:       transitions,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RegisterQueue exports the counters of an event queue.
func (m *MetricsService) RegisterQueue(name string, q *jobs.Queue) {
	if m == nil || q == nil {
		return
	}
	labels := prometheus.Labels{"queue": name}
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "queue_jobs_processed_total", Help: "Jobs handled successfully", ConstLabels: labels,
		}, func() float64 { return float64(q.Stats().Processed) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "queue_jobs_failed_total", Help: "Jobs that exhausted their retries", ConstLabels: labels,
		}, func() float64 { return float64(q.Stats().Failed) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "queue_jobs_dropped_total", Help: "Jobs rejected by a full buffer", ConstLabels: labels,
		}, func() float64 { return float64(q.Stats().Dropped) }),
	)
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup counts a cache hit, miss or error.
func (m *MetricsService) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveMatching records one matching computation.
func (m *MetricsService) ObserveMatching(duration time.Duration, conflictRejections int) {
	if m == nil {
		return
	}
	m.matchingDuration.Observe(duration.Seconds())
	m.conflictRejected.Add(float64(conflictRejections))
}

// AddPairingsAccepted counts persisted pairings.
func (m *MetricsService) AddPairingsAccepted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pairingsAccepted.Add(float64(n))
}

// ObserveCompletionTick records a scheduler tick.
func (m *MetricsService) ObserveCompletionTick(completed int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.completionTicks.WithLabelValues(outcome).Inc()
	if completed > 0 {
		m.requestsCompleted.Add(float64(completed))
	}
}

// RecordTransition counts a request entering status to.
func (m *MetricsService) RecordTransition(to string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.transitions.WithLabelValues(to).Add(float64(n))
}
