package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks task outcomes at the dispatcher.
type Metrics struct {
	tasks   *prometheus.CounterVec
	retries prometheus.Counter
}

// NewMetrics creates and registers the dispatcher metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		tasks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_tasks_total",
			Help: "Consumed pipeline tasks by final outcome",
		}, []string{"outcome"}),
		retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verity_task_retries_total",
			Help: "Task-level retries after transient failures",
		}),
	}
}

// ObserveTask counts one finished task.
func (m *Metrics) ObserveTask(outcome string) {
	m.tasks.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts one task retry.
func (m *Metrics) ObserveRetry() {
	m.retries.Inc()
}
