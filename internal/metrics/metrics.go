// Package metrics exposes Prometheus counters for the export agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the exporter.
type Metrics struct {
	registry              *prometheus.Registry
	exportsStartedTotal   prometheus.Counter
	exportsCompletedTotal prometheus.Counter
	exportsFailedTotal    prometheus.Counter
	framesRenderedTotal   prometheus.Counter
	activeExports         prometheus.Gauge
}

// New creates and registers exporter metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	exportsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storyboard_exports_started_total",
		Help: "Total number of export runs started",
	})
	exportsCompletedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storyboard_exports_completed_total",
		Help: "Total number of export runs that completed successfully",
	})
	exportsFailedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storyboard_exports_failed_total",
		Help: "Total number of export runs that failed",
	})
	framesRenderedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storyboard_frames_rendered_total",
		Help: "Total number of frames composited and handed to the encoder",
	})
	activeExports := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storyboard_active_exports",
		Help: "Number of export runs currently in flight",
	})

	registry.MustRegister(
		exportsStartedTotal,
		exportsCompletedTotal,
		exportsFailedTotal,
		framesRenderedTotal,
		activeExports,
	)

	return &Metrics{
		registry:              registry,
		exportsStartedTotal:   exportsStartedTotal,
		exportsCompletedTotal: exportsCompletedTotal,
		exportsFailedTotal:    exportsFailedTotal,
		framesRenderedTotal:   framesRenderedTotal,
		activeExports:         activeExports,
	}
}

// IncExportsStarted increments the started counter.
func (m *Metrics) IncExportsStarted() {
	m.exportsStartedTotal.Inc()
}

// IncExportsCompleted increments the completed counter.
func (m *Metrics) IncExportsCompleted() {
	m.exportsCompletedTotal.Inc()
}

// IncExportsFailed increments the failed counter.
func (m *Metrics) IncExportsFailed() {
	m.exportsFailedTotal.Inc()
}

// AddFramesRendered adds n to the rendered frame counter.
func (m *Metrics) AddFramesRendered(n int) {
	m.framesRenderedTotal.Add(float64(n))
}

// SetActiveExports sets the in-flight export gauge.
func (m *Metrics) SetActiveExports(n int) {
	m.activeExports.Set(float64(n))
}

// Handler returns an http.Handler that serves the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
