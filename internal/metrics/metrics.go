package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the orchestration layer. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	turns               *prometheus.CounterVec
	commentaryFallbacks prometheus.Counter
	playbackFailures    *prometheus.CounterVec
	backendDuration     *prometheus.HistogramVec
	personaSubmissions  *prometheus.CounterVec
}

// New registers the collectors with reg. Registration errors panic, like promauto.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phi",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		commentaryFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phi",
			Subsystem: "conversation",
			Name:      "commentary_fallbacks_total",
			Help:      "Turns that used the fallback commentary text.",
		}),
		playbackFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phi",
			Subsystem: "speech",
			Name:      "playback_failures_total",
			Help:      "Speech playback attempts that failed.",
		}, []string{"backend"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "phi",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Round-trip time of prediction backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		personaSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phi",
			Subsystem: "wizard",
			Name:      "persona_submissions_total",
			Help:      "Persona wizard finish attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.turns, m.commentaryFallbacks, m.playbackFailures, m.backendDuration, m.personaSubmissions)
	return m
}

func (m *Metrics) TurnCompleted(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CommentaryFallback() {
	if m == nil {
		return
	}
	m.commentaryFallbacks.Inc()
}

func (m *Metrics) PlaybackFailed(backend string) {
	if m == nil {
		return
	}
	m.playbackFailures.WithLabelValues(backend).Inc()
}

// ObserveBackend records one backend round trip. status 0 means transport failure.
func (m *Metrics) ObserveBackend(operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.backendDuration.WithLabelValues(operation, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) PersonaSubmitted(outcome string) {
	if m == nil {
		return
	}
	m.personaSubmissions.WithLabelValues(outcome).Inc()
}
