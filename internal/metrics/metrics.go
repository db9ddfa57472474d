// Package metrics exposes Prometheus instrumentation for the capture and
// publishing pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service collectors around a private registry so
// tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	FramesProcessed  *prometheus.CounterVec
	FramesDropped    *prometheus.CounterVec
	PipelineFailures *prometheus.CounterVec
	LUTRegenerations prometheus.Counter
	TuningReloads    prometheus.Counter
	TransformSeconds prometheus.Histogram
}

// New creates a registry populated with the service collectors plus the
// standard Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depthcast_frames_processed_total",
			Help: "Frames read from a source and handed to its sink.",
		}, []string{"pipeline"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depthcast_frames_dropped_total",
			Help: "Frames dropped before reaching the sink.",
		}, []string{"pipeline"}),
		PipelineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depthcast_pipeline_failures_total",
			Help: "Pipeline goroutines that exited with an error.",
		}, []string{"pipeline"}),
		LUTRegenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "depthcast_lut_regenerations_total",
			Help: "Times the infrared tone-mapping table was rebuilt.",
		}),
		TuningReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "depthcast_tuning_reloads_total",
			Help: "Tuning file changes adopted by the parameter store.",
		}),
		TransformSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "depthcast_transform_duration_seconds",
			Help:    "Time spent tone-mapping one infrared frame.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.FramesProcessed,
		m.FramesDropped,
		m.PipelineFailures,
		m.LUTRegenerations,
		m.TuningReloads,
		m.TransformSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
