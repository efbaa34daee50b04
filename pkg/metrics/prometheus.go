package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	regimeDays    *prometheus.GaugeVec
	stageDuration *prometheus.HistogramVec
	artifactsSent *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_runs_total",
				Help: "Total number of detection runs by outcome",
			},
			[]string{"status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		regimeDays: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimelab_regime_days",
				Help: "Observation count per regime label in the latest detection",
			},
			[]string{"label"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regimelab_stage_duration_seconds",
				Help:    "Duration of detection pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		artifactsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_artifacts_sent_total",
				Help: "Total number of artifacts routed to a backend",
			},
			[]string{"backend", "kind"},
		),
	}
}

// RecordRun records the outcome of a detection run.
func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRegimeDays records the observation count for a regime label.
func (r *Recorder) RecordRegimeDays(label string, days int) {
	r.regimeDays.WithLabelValues(label).Set(float64(days))
}

// RecordStageDuration records pipeline stage latency in seconds.
func (r *Recorder) RecordStageDuration(stage string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordArtifactSent records an artifact routed to a backend.
func (r *Recorder) RecordArtifactSent(backend, kind string) {
	r.artifactsSent.WithLabelValues(backend, kind).Inc()
}
