// Package metrics exposes the booking and reminder counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/tutorconnect/core/session"
)

const namespace = "tutorconnect"

// Metrics implements session.Metrics and counts reminder sweeps.
type Metrics struct {
	sessionsBooked    prometheus.Counter
	bookingsRejected  *prometheus.CounterVec
	sessionsCancelled *prometheus.CounterVec
	remindersSent     prometheus.Counter
	sweepFailures     prometheus.Counter
}

var _ session.Metrics = (*Metrics)(nil)

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsBooked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_booked_total",
			Help:      "Sessions booked.",
		}),
		bookingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_rejected_total",
			Help:      "Bookings and reschedulings refused, by reason.",
		}, []string{"reason"}),
		sessionsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_cancelled_total",
			Help:      "Sessions cancelled, by role of the canceller.",
		}, []string{"by"}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Sessions reminded.",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_sweep_failures_total",
			Help:      "Reminder sweeps that failed.",
		}),
	}
	reg.MustRegister(m.sessionsBooked, m.bookingsRejected, m.sessionsCancelled, m.remindersSent, m.sweepFailures)
	return m
}

func (m *Metrics) SessionBooked()                { m.sessionsBooked.Inc() }
func (m *Metrics) BookingRejected(reason string) { m.bookingsRejected.WithLabelValues(reason).Inc() }
func (m *Metrics) SessionCancelled(by string)    { m.sessionsCancelled.WithLabelValues(by).Inc() }
func (m *Metrics) RemindersSent(n int)           { m.remindersSent.Add(float64(n)) }
func (m *Metrics) SweepFailed()                  { m.sweepFailures.Inc() }
