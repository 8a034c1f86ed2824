// Package metrics exposes Prometheus collectors for quiz sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Intent outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
)

// Recorder groups the session collectors. A nil *Recorder records nothing.
type Recorder struct {
	sessionsCreated prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	intents         *prometheus.CounterVec
	answers         *prometheus.CounterVec
	completions     prometheus.Counter
}

// Option tunes which collectors New registers.
type Option func(*options)

type options struct {
	skipActive bool
}

// WithoutActiveSessions leaves out the active session gauge. Use it when
// sessions can end without the process noticing, such as Redis key expiry.
func WithoutActiveSessions() Option {
	return func(o *options) { o.skipActive = true }
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer, opts ...Option) *Recorder {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	f := promauto.With(reg)
	r := &Recorder{
		sessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_created_total",
			Help: "Quiz sessions started.",
		}),
		sessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_sessions_ended_total",
			Help: "Quiz sessions torn down, by reason.",
		}, []string{"reason"}),
		intents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_intents_total",
			Help: "User intents received, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		answers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Answers selected, by correctness.",
		}, []string{"result"}),
		completions: f.NewCounter(prometheus.CounterOpts{
			Name: "quiz_completions_total",
			Help: "Quizzes advanced past the last question.",
		}),
	}
	if !o.skipActive {
		r.activeSessions = f.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_active_sessions",
			Help: "Quiz sessions currently held by this process.",
		})
	}
	return r
}

func (r *Recorder) SessionCreated() {
	if r == nil {
		return
	}
	r.sessionsCreated.Inc()
	if r.activeSessions != nil {
		r.activeSessions.Inc()
	}
}

// SessionEnded counts a session removal; reason is "deleted" or "expired".
func (r *Recorder) SessionEnded(reason string) {
	if r == nil {
		return
	}
	r.sessionsEnded.WithLabelValues(reason).Inc()
	if r.activeSessions != nil {
		r.activeSessions.Dec()
	}
}

func (r *Recorder) Intent(kind string, applied bool) {
	if r == nil {
		return
	}
	outcome := OutcomeIgnored
	if applied {
		outcome = OutcomeApplied
	}
	r.intents.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) Answer(correct bool) {
	if r == nil {
		return
	}
	result := "incorrect"
	if correct {
		result = "correct"
	}
	r.answers.WithLabelValues(result).Inc()
}

func (r *Recorder) Completed() {
	if r == nil {
		return
	}
	r.completions.Inc()
}
