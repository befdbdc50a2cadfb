// Package enginemetrics instruments the per-frame identity-assignment
// pipeline with Prometheus metrics, the way internal/metrics instruments
// cartographus's sync/API/cache layers: package-level promauto
// collectors registered once, updated from the call sites that own the
// relevant event.
package enginemetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesProcessed counts every ProcessFrame call, regardless of
	// outcome.
	FramesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playerid_frames_processed_total",
			Help: "Total number of frames processed by the identity assigner.",
		},
	)

	// FrameProcessingDuration records wall-clock time spent in a single
	// ProcessFrame call (feature extraction + merge + anchor resolve +
	// assign; the extraction fan-out is also recorded on its own in
	// FeatureExtractionDuration below).
	FrameProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playerid_frame_processing_duration_seconds",
			Help:    "Duration of a single ProcessFrame call.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// AssignmentsBySource counts every Assignment produced, labeled by
	// its Source (Anchor, Gallery, CsvHint, Unmatched) — the dashboard
	// equivalent of py-motmetrics' match/miss/false-positive counters.
	AssignmentsBySource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playerid_assignments_total",
			Help: "Total assignments produced, labeled by source.",
		},
		[]string{"source"},
	)

	// FeatureExtractionDuration records wall-clock time spent extracting
	// features for one frame's detections (the errgroup fan-out as a
	// whole, not per-detection).
	FeatureExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playerid_feature_extraction_duration_seconds",
			Help:    "Duration of one frame's feature-extraction fan-out.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// FeatureExtractionFailures counts per-detection extraction errors
	// (best-effort: the frame still completes, but the failure is worth
	// alerting on if it spikes).
	FeatureExtractionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playerid_feature_extraction_failures_total",
			Help: "Total per-detection feature extraction failures.",
		},
	)

	// GallerySize reports the current number of enrolled players, so a
	// dashboard can correlate match-rate drift with gallery growth.
	GallerySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playerid_gallery_size",
			Help: "Current number of players enrolled in the gallery.",
		},
	)

	// ActiveAnchorProtections reports how many anchor-protection windows
	// cover the current frame, regardless of whether a detection ends up
	// claiming them — ground-truth-aware violation counting is
	// idmetrics.Accumulator's job, used in regression tests where the
	// expected name is known.
	ActiveAnchorProtections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playerid_active_anchor_protections",
			Help: "Number of anchor-protection windows covering the current frame.",
		},
	)
)

// Timer starts a duration measurement; call ObserveDuration when the
// measured section completes.
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer begins timing against observer (typically
// FrameProcessingDuration or FeatureExtractionDuration).
func NewTimer(observer prometheus.Observer) *Timer {
	return &Timer{start: time.Now(), observer: observer}
}

// ObserveDuration records the elapsed time since NewTimer.
func (t *Timer) ObserveDuration() {
	t.observer.Observe(time.Since(t.start).Seconds())
}
