package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's prometheus collectors.
type Metrics struct {
	JobRuns              *prometheus.CounterVec
	JobAffectedRecords   *prometheus.CounterVec
	NotificationsCreated *prometheus.CounterVec
	EmailDeliveries      *prometheus.CounterVec
	DeadlinesCreated     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "editorial_job_runs_total",
			Help: "Scheduled job invocations by outcome.",
		}, []string{"job", "result"}),
		JobAffectedRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "editorial_job_affected_records_total",
			Help: "Records changed by scheduled jobs.",
		}, []string{"job"}),
		NotificationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "editorial_notifications_created_total",
			Help: "Persisted notifications by type.",
		}, []string{"type"}),
		EmailDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "editorial_email_deliveries_total",
			Help: "Email delivery attempts by channel and outcome.",
		}, []string{"channel", "result"}),
		DeadlinesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "editorial_deadlines_created_total",
			Help: "Deadlines created by type.",
		}, []string{"type"}),
	}
}
