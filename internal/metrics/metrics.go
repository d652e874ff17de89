// Package metrics exposes Prometheus collectors for the coach service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

const namespace = "coach"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	generatorAttempts *prometheus.CounterVec
	generatorOutcomes *prometheus.CounterVec
	generatorDuration *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	persistence       *prometheus.CounterVec
	requests          *prometheus.CounterVec
}

// New registers the collectors on a fresh registry. Go runtime and process
// collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generatorAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_attempts_total",
			Help:      "Generator invocations, including retries.",
		}, []string{"service"}),
		generatorOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_outcomes_total",
			Help:      "Generator runs by final result.",
		}, []string{"service", "result"}),
		generatorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generator_duration_seconds",
			Help:      "Wall time of a generator run including backoff.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"service"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Optimizer cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		persistence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_persist_total",
			Help:      "Session writes by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Coach requests by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generatorAttempts,
		m.generatorOutcomes,
		m.generatorDuration,
		m.cacheLookups,
		m.persistence,
		m.requests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveGeneration records one finished generator run.
func (m *Metrics) ObserveGeneration(outcome domain.GenerationOutcome, elapsed time.Duration) {
	service := string(outcome.Service)
	m.generatorAttempts.WithLabelValues(service).Add(float64(outcome.Attempts))
	m.generatorDuration.WithLabelValues(service).Observe(elapsed.Seconds())

	result := "success"
	if !outcome.Success {
		result = string(outcome.ErrorCode)
	}
	m.generatorOutcomes.WithLabelValues(service, result).Inc()
}

// CacheLookup records an optimizer cache hit or miss.
func (m *Metrics) CacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// ObservePersist records a session write.
func (m *Metrics) ObservePersist(ok bool) {
	if ok {
		m.persistence.WithLabelValues("stored").Inc()
		return
	}
	m.persistence.WithLabelValues("failed").Inc()
}

// ObserveRequest records the outcome of a coach request: complete, partial or
// an error code.
func (m *Metrics) ObserveRequest(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}
