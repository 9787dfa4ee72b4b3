// Package metrics exposes ingest counters and timings to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tracksync/internal/ingest"
)

// Metrics holds the ingest collectors. It implements ingest.Observer.
type Metrics struct {
	FilesDetected      prometheus.Counter       // tracksync_files_detected_total
	FilesCompleted     *prometheus.CounterVec   // tracksync_files_completed_total{outcome}
	StageFailures      *prometheus.CounterVec   // tracksync_stage_failures_total{stage}
	RelocationAttempts *prometheus.CounterVec   // tracksync_relocation_attempts_total{result}
	Inflight           prometheus.Gauge         // tracksync_inflight_files
	StageDuration      *prometheus.HistogramVec // tracksync_stage_duration_seconds{stage}
	QueueDepth         prometheus.Gauge         // tracksync_queue_depth

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		FilesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracksync_files_detected_total",
			Help: "Dropped files picked up by the ingest pipeline",
		}),
		FilesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracksync_files_completed_total",
			Help: "Files that reached a terminal stage, by outcome",
		}, []string{"outcome"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracksync_stage_failures_total",
			Help: "Failed files by the stage that could not be reached",
		}, []string{"stage"}),
		RelocationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracksync_relocation_attempts_total",
			Help: "Move attempts made by the relocator, by result",
		}, []string{"result"}),
		Inflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracksync_inflight_files",
			Help: "Files currently between detection and a terminal stage",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracksync_stage_duration_seconds",
			Help:    "Time spent reaching each stage",
			Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 15, 60, 300, 900},
		}, []string{"stage"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracksync_queue_depth",
			Help: "Paths waiting for a free worker",
		}),
		gatherer: reg,
	}
}

// ObserveTransition implements ingest.Observer.
func (m *Metrics) ObserveTransition(rec ingest.Record, from ingest.Stage, elapsed time.Duration) {
	if from == ingest.StageDetected {
		m.FilesDetected.Inc()
		m.Inflight.Inc()
	}
	m.StageDuration.WithLabelValues(string(rec.Stage)).Observe(elapsed.Seconds())
	if !rec.Stage.Terminal() {
		return
	}
	m.Inflight.Dec()
	m.FilesCompleted.WithLabelValues(string(rec.Stage)).Inc()
	if rec.Stage == ingest.StageFailed {
		m.StageFailures.WithLabelValues(string(rec.FailedStage)).Inc()
	}
}

// ObserveRelocationAttempt matches relocate.AttemptHook.
func (m *Metrics) ObserveRelocationAttempt(_ int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RelocationAttempts.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
