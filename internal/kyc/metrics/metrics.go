package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus metrics.
type Metrics struct {
	processed *prometheus.CounterVec
	reviews   *prometheus.CounterVec
	stages    *prometheus.HistogramVec
}

// New creates and registers the pipeline metrics.
func New() *Metrics {
	return &Metrics{
		processed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_applications_processed_total",
			Help: "Pipeline decisions by resulting status",
		}, []string{"status"}),
		reviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_review_actions_total",
			Help: "Reviewer decisions by action",
		}, []string{"action"}),
		stages: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verity_pipeline_stage_seconds",
			Help:    "Wall time per pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// ObserveProcessed counts one pipeline decision.
func (m *Metrics) ObserveProcessed(status string) {
	m.processed.WithLabelValues(status).Inc()
}

// ObserveReview counts one reviewer action.
func (m *Metrics) ObserveReview(action string) {
	m.reviews.WithLabelValues(action).Inc()
}

// ObserveStage records one stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}
