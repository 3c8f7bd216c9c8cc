package harness

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

// Cell outcomes used as metric labels.
const (
	OutcomeDetected = "detected"
	OutcomeClean    = "clean"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Metrics exposes harness progress to Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	cells      *prometheus.CounterVec
	detections *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	attempts   prometheus.Histogram
	inFlight   prometheus.Gauge
}

// NewMetrics registers the harness metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cells: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qqeval",
			Subsystem: "harness",
			Name:      "cells_total",
			Help:      "Matrix cells processed, by condition and outcome",
		}, []string{"condition", "outcome"}),

		detections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qqeval",
			Subsystem: "harness",
			Name:      "detections_total",
			Help:      "Question-quality comments detected, by condition and detection method",
		}, []string{"condition", "method"}),

		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qqeval",
			Subsystem: "collector",
			Name:      "latency_seconds",
			Help:      "Latency of the successful collector attempt",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"condition"}),

		attempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qqeval",
			Subsystem: "collector",
			Name:      "attempts",
			Help:      "Collector attempts per cell",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		}),

		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "qqeval",
			Subsystem: "harness",
			Name:      "cells_in_flight",
			Help:      "Cells currently being collected or classified",
		}),
	}
}

func (m *Metrics) observeSkipped(conditionID string) {
	if m == nil {
		return
	}
	m.cells.WithLabelValues(conditionID, OutcomeSkipped).Inc()
}

func (m *Metrics) observeResult(r models.RunResult) {
	if m == nil {
		return
	}
	switch {
	case r.Failed():
		m.cells.WithLabelValues(r.ConditionID, OutcomeFailed).Inc()
	case r.Detected:
		m.cells.WithLabelValues(r.ConditionID, OutcomeDetected).Inc()
		m.detections.WithLabelValues(r.ConditionID, string(r.DetectionMethod)).Inc()
	default:
		m.cells.WithLabelValues(r.ConditionID, OutcomeClean).Inc()
	}
	if r.Attempts > 0 {
		m.attempts.Observe(float64(r.Attempts))
	}
	if r.LatencyMS > 0 {
		m.latency.WithLabelValues(r.ConditionID).Observe(r.Latency().Seconds())
	}
}

func (m *Metrics) cellStarted() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) cellDone() {
	if m != nil {
		m.inFlight.Dec()
	}
}
