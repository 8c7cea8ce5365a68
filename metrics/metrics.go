// Package metrics records per-run Prometheus metrics and writes them in the
// node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vid2doc/vid2doc"
)

const namespace = "vid2doc"

type Metrics struct {
	reg *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec

	Segments prometheus.Counter
	Frames   prometheus.Counter
	Sections prometheus.Counter
}

var _ vid2doc.StageObserver = (*Metrics)(nil)

// New registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage"}),
		StageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Total number of failed pipeline stages",
		}, []string{"stage"}),

		Segments: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Total number of transcript segments in written reports",
		}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of frames in written reports",
		}),
		Sections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sections_total",
			Help:      "Total number of sections in written reports",
		}),
	}
}

func (m *Metrics) ObserveStage(stage string, took time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage).Observe(took.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveReport(segments, frames, sections int) {
	m.Segments.Add(float64(segments))
	m.Frames.Add(float64(frames))
	m.Sections.Add(float64(sections))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// WriteTextfile atomically replaces path with the current values.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
