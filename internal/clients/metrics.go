package clients

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks downstream call outcomes and retry volume per service.
type Metrics struct {
	calls   *prometheus.CounterVec
	retries *prometheus.CounterVec
}

// NewMetrics creates and registers the client-layer metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		calls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_downstream_calls_total",
			Help: "Downstream service calls by service and outcome (ok, failed, exhausted)",
		}, []string{"service", "outcome"}),
		retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_downstream_retries_total",
			Help: "Transient downstream failures that triggered a backoff retry",
		}, []string{"service"}),
	}
}

// ObserveCall records a completed call attempt sequence.
func (m *Metrics) ObserveCall(service, outcome string) {
	m.calls.WithLabelValues(service, outcome).Inc()
}

// ObserveRetry records one scheduled retry.
func (m *Metrics) ObserveRetry(service string) {
	m.retries.WithLabelValues(service).Inc()
}
