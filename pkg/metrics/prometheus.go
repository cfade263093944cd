// Package metrics provides Prometheus metrics for the FormSense analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the FormSense service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Frame intake metrics - stream boundary health
	framesIngested prometheus.Counter
	framesDropped  prometheus.Counter
	framesRejected *prometheus.CounterVec

	// Pipeline latency metrics - the compute budget
	frameLatency prometheus.Histogram
	stageLatency *prometheus.HistogramVec
	budgetMisses prometheus.Counter

	// Data quality metrics
	missingJoints        prometheus.Counter
	unreliableLandmarks  prometheus.Counter
	smootherResets       prometheus.Counter
	alignmentConfidence  prometheus.Gauge
	alignmentResyncs     prometheus.Counter

	// Detector metrics
	eventsPending   prometheus.Counter
	eventsConfirmed *prometheus.CounterVec
	eventsCleared   prometheus.Counter
	feedbackUpdates prometheus.Counter

	// Session metrics
	activeSessions  prometheus.Gauge
	templatesLoaded prometheus.Gauge

	// Error tracking
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "formsense",
		subsystem:        "pipeline",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 250},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	// Frame intake metrics - stream boundary health
	m.framesIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_ingested_total",
		Help:      "Total number of pose frames accepted at the stream boundary",
	})

	m.framesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_dropped_total",
		Help:      "Total number of unprocessed frames overwritten by newer arrivals (latest-wins)",
	})

	m.framesRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "frames_rejected_total",
			Help:      "Total number of frames rejected at the boundary by reason",
		},
		[]string{"reason"},
	)

	// Pipeline latency metrics - the compute budget
	m.frameLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frame_latency_milliseconds",
		Help:      "End-to-end per-frame compute latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.stageLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stage_latency_milliseconds",
			Help:      "Per-stage compute latency in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"stage"},
	)

	m.budgetMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "budget_misses_total",
		Help:      "Total number of frames whose compute exceeded the configured budget",
	})

	// Data quality metrics
	m.missingJoints = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "missing_joints_total",
		Help:      "Total number of joint angles skipped for low landmark confidence",
	})

	m.unreliableLandmarks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unreliable_landmarks_total",
		Help:      "Total number of landmarks below the visibility threshold",
	})

	m.smootherResets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "smoother_resets_total",
		Help:      "Total number of smoother resets after tracking loss",
	})

	m.alignmentConfidence = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "alignment_confidence",
		Help:      "Confidence of the most recent live-to-template alignment",
	})

	m.alignmentResyncs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "alignment_resyncs_total",
		Help:      "Total number of aligner re-synchronizations after a pause",
	})

	// Detector metrics
	m.eventsPending = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "error_events_pending_total",
		Help:      "Total number of form-error state machines entering Pending",
	})

	m.eventsConfirmed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_events_confirmed_total",
			Help:      "Total number of confirmed form-error events by severity",
		},
		[]string{"severity"},
	)

	m.eventsCleared = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "error_events_cleared_total",
		Help:      "Total number of pending or confirmed events cleared by recovery",
	})

	m.feedbackUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feedback_updates_total",
		Help:      "Total number of prioritized feedback recomputations",
	})

	// Session metrics
	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_sessions",
		Help:      "Number of comparison sessions currently running",
	})

	m.templatesLoaded = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "templates_loaded",
		Help:      "Number of reference templates held by the template store",
	})

	// Error tracking
	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and type",
		},
		[]string{"component", "error_type"},
	)
}

// Package-level helper functions using the global manager.

// RecordFrameIngested increments the accepted-frame counter.
func RecordFrameIngested() {
	globalManager.framesIngested.Inc()
}

// RecordFrameDropped increments the latest-wins overwrite counter.
func RecordFrameDropped() {
	globalManager.framesDropped.Inc()
}

// RecordFrameRejected increments the boundary rejection counter for a reason.
func RecordFrameRejected(reason string) {
	globalManager.framesRejected.WithLabelValues(reason).Inc()
}

// RecordFrameLatency records end-to-end per-frame compute latency.
func RecordFrameLatency(latencyMs float64) {
	globalManager.frameLatency.Observe(latencyMs)
}

// RecordStageLatency records compute latency for a named pipeline stage.
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordBudgetMiss increments the compute-budget miss counter.
func RecordBudgetMiss() {
	globalManager.budgetMisses.Inc()
}

// RecordMissingJoint increments the skipped-joint counter.
func RecordMissingJoint() {
	globalManager.missingJoints.Inc()
}

// RecordUnreliableLandmark increments the low-visibility landmark counter.
func RecordUnreliableLandmark() {
	globalManager.unreliableLandmarks.Inc()
}

// RecordSmootherReset increments the tracking-loss reset counter.
func RecordSmootherReset() {
	globalManager.smootherResets.Inc()
}

// UpdateAlignmentConfidence sets the most recent alignment confidence.
func UpdateAlignmentConfidence(confidence float64) {
	globalManager.alignmentConfidence.Set(confidence)
}

// RecordAlignmentResync increments the re-synchronization counter.
func RecordAlignmentResync() {
	globalManager.alignmentResyncs.Inc()
}

// RecordEventPending increments the Pending-transition counter.
func RecordEventPending() {
	globalManager.eventsPending.Inc()
}

// RecordEventConfirmed increments the confirmed-event counter for a severity.
func RecordEventConfirmed(severity string) {
	globalManager.eventsConfirmed.WithLabelValues(severity).Inc()
}

// RecordEventCleared increments the recovery-clear counter.
func RecordEventCleared() {
	globalManager.eventsCleared.Inc()
}

// RecordFeedbackUpdate increments the feedback recomputation counter.
func RecordFeedbackUpdate() {
	globalManager.feedbackUpdates.Inc()
}

// UpdateActiveSessions sets the number of running sessions.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// UpdateTemplatesLoaded sets the number of stored templates.
func UpdateTemplatesLoaded(count int) {
	globalManager.templatesLoaded.Set(float64(count))
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry for the metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
