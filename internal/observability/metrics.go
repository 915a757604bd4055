package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_coach_active_sessions",
		Help: "Number of active coaching sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_coach_sessions_total",
		Help: "Total number of coaching sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_coach_session_duration_seconds",
		Help:    "Duration of coaching sessions in seconds",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
	})

	// Audio frame metrics
	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_coach_frames_sent_total",
		Help: "Total audio frames transmitted to the recognizer",
	})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_coach_frames_dropped_total",
		Help: "Total audio frames dropped before transmission",
	}, []string{"reason"}) // reason: "link_not_active", "write_error"

	// Transcript metrics
	transcriptEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_coach_transcript_events_total",
		Help: "Total transcript events received, by kind",
	}, []string{"kind"})

	malformedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_coach_malformed_messages_total",
		Help: "Total inbound messages discarded as unparseable",
	})

	// Link metrics
	reconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_coach_reconnect_attempts_total",
		Help: "Total reconnection attempts to the recognizer",
	})

	linkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_coach_link_errors_total",
		Help: "Total transcription link errors, by type",
	}, []string{"type"})

	// Coaching metrics
	warningsShown = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_coach_warnings_total",
		Help: "Total debounced warnings surfaced, by metric",
	}, []string{"metric"})

	feedbackTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_coach_feedback_ticks_total",
		Help: "Total coaching feedback ticks, by outcome",
	}, []string{"outcome"}) // outcome: "ok", "partial", "no_speech"

	reportsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_coach_reports_written_total",
		Help: "Total session reports written, by status",
	}, []string{"status"})
)

// RecordSessionStart records the start of a coaching session
func RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a coaching session
func RecordSessionEnd(seconds float64) {
	activeSessions.Dec()
	sessionDuration.Observe(seconds)
}

// RecordFrameSent records a frame transmitted to the recognizer
func RecordFrameSent() {
	framesSent.Inc()
}

// RecordFrameDropped records a frame dropped before transmission
func RecordFrameDropped(reason string) {
	framesDropped.WithLabelValues(reason).Inc()
}

// RecordTranscriptEvent records a transcript event by kind
func RecordTranscriptEvent(kind string) {
	transcriptEvents.WithLabelValues(kind).Inc()
}

// RecordMalformedMessage records a discarded inbound message
func RecordMalformedMessage() {
	malformedMessages.Inc()
}

// RecordReconnectAttempt records a reconnection attempt
func RecordReconnectAttempt() {
	reconnectAttempts.Inc()
}

// RecordLinkError records a transcription link error
func RecordLinkError(errorType string) {
	linkErrors.WithLabelValues(errorType).Inc()
}

// RecordWarning records a surfaced warning for a metric
func RecordWarning(metric string) {
	warningsShown.WithLabelValues(metric).Inc()
}

// RecordFeedbackTick records a coaching feedback tick outcome
func RecordFeedbackTick(outcome string) {
	feedbackTicks.WithLabelValues(outcome).Inc()
}

// RecordReportWritten records a session report write
func RecordReportWritten(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	reportsWritten.WithLabelValues(status).Inc()
}
