package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/claude/posecoach/internal/models"
)

type Manager struct {
	// counters
	CounterFrames             *prometheus.CounterVec
	CounterReps               *prometheus.CounterVec
	CounterAnalysisFailures   *prometheus.CounterVec
	CounterRequests           *prometheus.CounterVec
	CounterHandleRequestPanic prometheus.Counter

	// gauges
	GaugeActiveSessions prometheus.Gauge

	// histograms
	HistogramFormScore       *prometheus.HistogramVec
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("posecoach", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("posecoach", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterFrames := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames",
		Help:      "The total number of evaluated pose frames",
	}, []string{"exercise"})
	counterReps := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reps",
		Help:      "The total number of completed repetitions",
	}, []string{"exercise"})
	counterAnalysisFailures := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "analysis_failures",
		Help:      "The total number of recovered rep detection or form analysis faults",
	}, []string{"exercise"})
	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})

	gaugeActiveSessions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_sessions",
		Help:      "Current number of live coaching sessions",
	})

	histogramFormScore := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "form_score",
		Help:      "Distribution of per-frame form scores",
		Buckets:   prometheus.LinearBuckets(0, 1, models.MaxFormScore+1),
	}, []string{"exercise"})
	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method"})

	return &Manager{
		CounterFrames:             counterFrames,
		CounterReps:               counterReps,
		CounterAnalysisFailures:   counterAnalysisFailures,
		CounterRequests:           counterRequests,
		CounterHandleRequestPanic: counterHandleRequestPanic,
		GaugeActiveSessions:       gaugeActiveSessions,
		HistogramFormScore:        histogramFormScore,
		HistogramRequestDuration:  histogramRequestDuration,
	}
}

// ObserveFrame records one evaluated frame.
func (m *Manager) ObserveFrame(kind models.ExerciseKind, rep models.RepResult, fb models.FormFeedback) {
	ex := label(kind)
	m.CounterFrames.WithLabelValues(ex).Inc()
	m.HistogramFormScore.WithLabelValues(ex).Observe(float64(fb.Score))
	if rep.RepCompleted {
		m.CounterReps.WithLabelValues(ex).Inc()
	}
}

// ObserveFailure records a recovered analysis fault.
func (m *Manager) ObserveFailure(kind models.ExerciseKind) {
	m.CounterAnalysisFailures.WithLabelValues(label(kind)).Inc()
}

// SetActiveSessions reports the live session count.
func (m *Manager) SetActiveSessions(n int) {
	m.GaugeActiveSessions.Set(float64(n))
}

// label keeps client-supplied exercise names out of the label space.
func label(kind models.ExerciseKind) string {
	if !kind.Supported() {
		return "unsupported"
	}
	return string(kind)
}
