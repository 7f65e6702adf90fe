// Package metrics exposes Prometheus instrumentation for searches and the
// HTTP API. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/marksearch/internal/model"
)

// Source outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Metrics holds the service's collectors.
type Metrics struct {
	reg *prometheus.Registry

	// Per-source search latency
	SourceLatency *prometheus.HistogramVec

	// Per-source outcomes: ok, empty, error
	SourceOutcome *prometheus.CounterVec

	// Which extraction strategy produced records
	StrategyUsed *prometheus.CounterVec

	// Full fan-out latency
	AggregateLatency prometheus.Histogram

	// Records returned after dedup
	AggregateTrademarks prometheus.Histogram

	// HTTP requests by route and status code
	HTTPRequests *prometheus.CounterVec
}

// New creates Metrics registered on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,

		SourceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marksearch_source_duration_seconds",
			Help:    "Duration of a single registry search",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		}, []string{"source"}),

		SourceOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marksearch_source_searches_total",
			Help: "Registry searches by source and outcome",
		}, []string{"source", "outcome"}),

		StrategyUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marksearch_extraction_strategy_total",
			Help: "Searches by the extraction strategy that produced records",
		}, []string{"source", "strategy"}),

		AggregateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "marksearch_search_all_duration_seconds",
			Help:    "Duration of a search across all registries",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}),

		AggregateTrademarks: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "marksearch_search_all_trademarks",
			Help:    "Deduplicated trademarks returned by a search across all registries",
			Buckets: []float64{0, 1, 5, 10, 20, 40, 70},
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marksearch_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		}, []string{"route", "code"}),
	}
}

// Outcome classifies a source result.
func Outcome(r model.SourceResult) string {
	switch {
	case r.Failed():
		return OutcomeError
	case len(r.Trademarks) == 0:
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}

// ObserveSource records one registry search.
func (m *Metrics) ObserveSource(r model.SourceResult) {
	if m == nil {
		return
	}
	m.SourceLatency.WithLabelValues(r.Source).Observe((time.Duration(r.DurationMs) * time.Millisecond).Seconds())
	m.SourceOutcome.WithLabelValues(r.Source, Outcome(r)).Inc()
	if r.Strategy != "" {
		m.StrategyUsed.WithLabelValues(r.Source, r.Strategy).Inc()
	}
}

// ObserveAggregate records a search across all registries.
func (m *Metrics) ObserveAggregate(total int, d time.Duration) {
	if m != nil {
		m.AggregateLatency.Observe(d.Seconds())
		m.AggregateTrademarks.Observe(float64(total))
	}
}

// IncHTTPRequest records a served request.
func (m *Metrics) IncHTTPRequest(route string, code int) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
