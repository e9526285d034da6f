// Package metrics provides observability for the verification flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks verification flow outcomes and critical path durations.
type Metrics struct {
	FlowsInitiated   prometheus.Counter
	FlowsCompleted   prometheus.Counter
	FlowsFailed      *prometheus.CounterVec
	SessionsSwept    prometheus.Counter
	CallbackDuration prometheus.Histogram
}

// New creates a Metrics instance with all verification flow metrics registered.
func New() *Metrics {
	return &Metrics{
		FlowsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_auth_flows_initiated_total",
			Help: "Total number of verification flows started",
		}),
		FlowsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_auth_flows_completed_total",
			Help: "Total number of verification flows that produced a profile",
		}),
		FlowsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_auth_flows_failed_total",
			Help: "Total number of verification flows that failed, by stage",
		}, []string{"stage"}),
		SessionsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_auth_sessions_swept_total",
			Help: "Total number of expired handshake sessions removed by the sweeper",
		}),
		CallbackDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatepass_auth_callback_duration_seconds",
			Help:    "Duration of callback completion (token exchange and userinfo fetch)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementInitiated records a started flow.
func (m *Metrics) IncrementInitiated() {
	m.FlowsInitiated.Inc()
}

// IncrementCompleted records a flow that ended in a verified profile.
func (m *Metrics) IncrementCompleted() {
	m.FlowsCompleted.Inc()
}

// IncrementFailed records a failed flow with the stage it died in.
func (m *Metrics) IncrementFailed(stage string) {
	m.FlowsFailed.WithLabelValues(stage).Inc()
}

// AddSessionsSwept records how many expired sessions a sweep removed.
func (m *Metrics) AddSessionsSwept(count int) {
	m.SessionsSwept.Add(float64(count))
}

// ObserveCallback records the duration of a callback completion.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCallback(start time.Time) {
	m.CallbackDuration.Observe(time.Since(start).Seconds())
}
