package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	jobs       *prometheus.CounterVec
	inFlight   prometheus.Gauge
	stages     *prometheus.HistogramVec
	generation *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "concept2video_jobs_total",
			Help: "Finished jobs by entry point and outcome",
		}, []string{"kind", "outcome"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "concept2video_jobs_in_flight",
			Help: "Jobs currently executing",
		}),
		stages: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concept2video_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
		}, []string{"stage", "outcome"}),
		generation: f.NewCounterVec(prometheus.CounterOpts{
			Name: "concept2video_generation_attempts_total",
			Help: "Text-to-graphic generation attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
	}
}

// JobStarted marks a job as in flight.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// JobFinished records the terminal outcome of a job.
func (m *Metrics) JobFinished(kind, outcome string) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.jobs.WithLabelValues(kind, outcome).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage, outcome(err)).Observe(d.Seconds())
}

// GenerationAttempt counts one call to a text-generation provider.
func (m *Metrics) GenerationAttempt(provider string, err error) {
	if m == nil {
		return
	}
	m.generation.WithLabelValues(provider, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
