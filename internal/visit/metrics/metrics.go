// Package metrics provides observability for the visit register.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks register activity and visit durations.
type Metrics struct {
	CheckIns         prometheus.Counter
	CheckInConflicts prometheus.Counter
	CheckOuts        *prometheus.CounterVec
	VisitDuration    prometheus.Histogram
}

// New creates a Metrics instance with all register metrics registered.
func New() *Metrics {
	return &Metrics{
		CheckIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_checkins_total",
			Help: "Total number of visitors checked in",
		}),
		CheckInConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_checkin_conflicts_total",
			Help: "Total number of check-ins rejected because the subject already had an open visit",
		}),
		CheckOuts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_checkouts_total",
			Help: "Total number of visitors checked out, by kind (regular or forced)",
		}, []string{"kind"}),
		VisitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "gatepass_visit_duration_minutes",
			Help: "Duration of completed visits in minutes",
			// Visits run from a quick drop-off to a full working day.
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480},
		}),
	}
}

// IncrementCheckIns records a successful check-in.
func (m *Metrics) IncrementCheckIns() {
	m.CheckIns.Inc()
}

// IncrementCheckInConflicts records a check-in rejected for an open visit.
func (m *Metrics) IncrementCheckInConflicts() {
	m.CheckInConflicts.Inc()
}

// IncrementCheckOuts records a completed checkout of the given kind.
func (m *Metrics) IncrementCheckOuts(kind string) {
	m.CheckOuts.WithLabelValues(kind).Inc()
}

// ObserveVisitDuration records how long a completed visit lasted.
func (m *Metrics) ObserveVisitDuration(d time.Duration) {
	m.VisitDuration.Observe(d.Minutes())
}
