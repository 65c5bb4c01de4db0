package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is optional; a nil *Metrics records nothing.
type Metrics struct {
	processed     *prometheus.CounterVec
	autoCancelled prometheus.Counter
	runs          *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_processed_total",
				Help: "Reminder decisions by type and outcome",
			},
			[]string{"type", "status"},
		),
		autoCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_auto_cancelled_total",
			Help: "Orders cancelled for missing full payment at H-3",
		}),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminder_runs_total",
				Help: "Daily reminder runs by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.processed, m.autoCancelled, m.runs)
	return m
}

func (m *Metrics) observeDecision(t Type, s Status) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(string(t), string(s)).Inc()
}

func (m *Metrics) observeAutoCancel() {
	if m == nil {
		return
	}
	m.autoCancelled.Inc()
}

func (m *Metrics) observeRun(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(result).Inc()
}
