package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator's Prometheus collectors.
type Metrics struct {
	jobs     *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates collectors registered with reg. A nil registerer yields
// working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rostersync_jobs_total",
			Help: "Job transitions by queue and state",
		}, []string{"queue", "state"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rostersync_jobs_in_flight",
			Help: "Jobs currently executing per queue",
		}, []string{"queue"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rostersync_job_duration_seconds",
			Help:    "Handler execution time per attempt",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),
	}
}
