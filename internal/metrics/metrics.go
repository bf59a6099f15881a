// Package metrics exposes run counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RecordsTotal   prometheus.Counter
	SkippedTotal   *prometheus.CounterVec
	OutcomesTotal  *prometheus.CounterVec
	Shapes         prometheus.Gauge
	FlushesTotal   prometheus.Counter
	FlushDuration  prometheus.Histogram
	RunsInProgress prometheus.Gauge
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "shapescan_records_total",
			Help: "Records read from the source",
		}),
		// Labels: "decode", "filter", "build"
		SkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shapescan_records_skipped_total",
			Help: "Records skipped by stage",
		}, []string{"stage"}),
		// Labels: "noop", "push", "keep", "take"
		OutcomesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shapescan_insert_outcomes_total",
			Help: "Shape set insertions by action",
		}, []string{"action"}),
		Shapes: f.NewGauge(prometheus.GaugeOpts{
			Name: "shapescan_shapes",
			Help: "Distinct shapes currently retained",
		}),
		FlushesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "shapescan_flushes_total",
			Help: "Result writes, periodic and final",
		}),
		FlushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shapescan_flush_duration_seconds",
			Help:    "Result write duration",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		}),
		RunsInProgress: f.NewGauge(prometheus.GaugeOpts{
			Name: "shapescan_runs_in_progress",
			Help: "Inference runs currently executing",
		}),
	}
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record counts one record read from the source.
func (m *Metrics) Record() {
	if m == nil {
		return
	}
	m.RecordsTotal.Inc()
}

// Skip counts a record dropped at stage.
func (m *Metrics) Skip(stage string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(stage).Inc()
}

// Outcome counts one insertion and updates the shape gauge.
func (m *Metrics) Outcome(action string, shapes int) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(action).Inc()
	m.Shapes.Set(float64(shapes))
}

// Flushed records a completed result write.
func (m *Metrics) Flushed(seconds float64) {
	if m == nil {
		return
	}
	m.FlushesTotal.Inc()
	m.FlushDuration.Observe(seconds)
}

// RunStarted marks a run as executing and returns the func that ends it.
func (m *Metrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	m.RunsInProgress.Inc()
	return m.RunsInProgress.Dec
}
