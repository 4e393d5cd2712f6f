// Package observability exposes optional Prometheus metrics for the
// detection/training pipeline. The core cascade never imports this
// package directly; it only depends on the small StageRecorder
// interface so instrumentation stays out of the hot path.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WindowsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tless",
		Name:      "objectness_windows_total",
		Help:      "Windows emitted by the objectness prefilter",
	}, []string{"stage"})

	CandidatesVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tless",
		Name:      "hash_candidates_total",
		Help:      "Candidate templates surviving hash-table verification",
	}, []string{"stage"})

	MatchesScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tless",
		Name:      "matches_scored_total",
		Help:      "Matches surviving the full five-test cascade",
	}, []string{"stage"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tless",
		Name:      "stage_duration_seconds",
		Help:      "Duration of one pipeline stage",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"stage"})

	PyramidLevelsRun = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tless",
		Name:      "pyramid_levels_run",
		Help:      "Pyramid levels processed by the last detection run",
	})
)

// StageRecorder is the pipeline's only observability dependency. A nil
// Recorder is valid and records nothing, so the core stays usable
// without wiring any metrics backend.
type StageRecorder interface {
	WindowsFound(stage string, n int)
	CandidatesVerified(stage string, n int)
	MatchesScored(stage string, n int)
	StageDuration(stage string, seconds float64)
}

// PrometheusRecorder implements StageRecorder against the package-level
// collectors above.
type PrometheusRecorder struct{}

func (PrometheusRecorder) WindowsFound(stage string, n int) {
	WindowsEmitted.WithLabelValues(stage).Add(float64(n))
}

func (PrometheusRecorder) CandidatesVerified(stage string, n int) {
	CandidatesVerified.WithLabelValues(stage).Add(float64(n))
}

func (PrometheusRecorder) MatchesScored(stage string, n int) {
	MatchesScored.WithLabelValues(stage).Add(float64(n))
}

func (PrometheusRecorder) StageDuration(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// NoopRecorder discards every observation. Used when no recorder is
// configured.
type NoopRecorder struct{}

func (NoopRecorder) WindowsFound(string, int)          {}
func (NoopRecorder) CandidatesVerified(string, int)    {}
func (NoopRecorder) MatchesScored(string, int)         {}
func (NoopRecorder) StageDuration(string, float64)     {}
