package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "atmosight"

// Metrics holds the Prometheus collectors for analyses, fetches and caches.
type Metrics struct {
	Analyses         *prometheus.CounterVec   // labels: variable, outcome={ok,no_data,insufficient_data,error}
	FetchDuration    *prometheus.HistogramVec // labels: source={cache,power}
	CacheLookups     *prometheus.CounterVec   // labels: kind={series,geocode}, result={hit,miss}
	GeocodeFallbacks prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates all collectors on a private registry so the CLI and
// tests never collide with the global default registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Day-of-year analyses by variable and outcome.",
		}, []string{"variable", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time to obtain a raw series, by source.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Local cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		GeocodeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_fallbacks_total",
			Help:      "Locations that fell back to the default coordinates.",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.Analyses, m.FetchDuration, m.CacheLookups, m.GeocodeFallbacks)
	return m
}

// Registry exposes the private registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheObserver returns a hit/miss callback for the given cache kind.
func (m *Metrics) CacheObserver(kind string) func(hit bool) {
	return func(hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		m.CacheLookups.WithLabelValues(kind, result).Inc()
	}
}

// ObserveFetch records how long a series fetch took.
func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}
