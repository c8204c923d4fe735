// Package metrics provides Prometheus metrics for the converter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adeilh/go-niconvert/website"
)

const outcomeOK = "ok"

// Metrics holds the cache and conversion metrics. It implements the cache
// loader's observer interface.
type Metrics struct {
	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	// Resolver metrics
	ResolvesTotal  *prometheus.CounterVec
	ResolveLatency prometheus.Histogram

	// Output metrics
	SubtitlesRendered prometheus.Counter

	factory   promauto.Factory
	namespace string
}

// NewMetrics registers a new set of metrics with reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Lookups answered from the cache",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Lookups that fell through to the resolver",
		}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted to stay within capacity",
		}),

		ResolvesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolves_total",
			Help:      "Resolver calls by outcome",
		}, []string{"outcome"}),
		ResolveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_latency_seconds",
			Help:      "Resolver latency in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		SubtitlesRendered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subtitles_rendered_total",
			Help:      "ASS scripts written to clients",
		}),

		factory:   f,
		namespace: namespace,
	}
}

func (m *Metrics) Hit(string) { m.CacheHits.Inc() }

func (m *Metrics) Miss(string) { m.CacheMisses.Inc() }

func (m *Metrics) Evicted(string) { m.CacheEvictions.Inc() }

// Resolved records a resolver call. Failures are labelled with their
// website.Kind.
func (m *Metrics) Resolved(_ string, took time.Duration, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = website.KindOf(err).String()
	}
	m.ResolvesTotal.WithLabelValues(outcome).Inc()
	m.ResolveLatency.Observe(took.Seconds())
}

// RecordSubtitle counts a rendered script.
func (m *Metrics) RecordSubtitle() {
	m.SubtitlesRendered.Inc()
}

// TrackEntries exports the value of size as the cache_entries gauge.
func (m *Metrics) TrackEntries(size func() int) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "cache_entries",
		Help:      "Entries currently held by the cache, expired ones included",
	}, func() float64 { return float64(size()) })
}

// Handler exposes the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
