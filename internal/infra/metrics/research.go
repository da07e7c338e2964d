package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		researchJobsSubmittedTotal,
		researchJobsResolvedTotal,
		researchStatusErrorsTotal,
		researchJobsTracked,
		researchReconcileCycleSeconds,
		researchJobDurationSeconds,
	)
}

var (
	researchJobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_jobs_submitted_total",
			Help: "Research job submissions, labeled by result.",
		},
		[]string{"result"}, // 'ok', 'error', 'rate_limited'
	)

	researchJobsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_jobs_resolved_total",
			Help: "Research jobs removed from tracking, labeled by outcome.",
		},
		[]string{"outcome"}, // 'answered', 'no_result', 'failed', 'lost'
	)

	researchStatusErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "research_status_errors_total",
			Help: "Transient failures while querying job status.",
		},
	)

	researchJobsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "research_jobs_tracked",
			Help: "Jobs currently awaiting a terminal state.",
		},
	)

	researchReconcileCycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_reconcile_cycle_seconds",
			Help:    "Wall time of one reconcile cycle.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	researchJobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_job_duration_seconds",
			Help:    "Time from submission to resolution.",
			Buckets: []float64{30, 60, 120, 300, 600, 900, 1800, 3600},
		},
		[]string{"outcome"},
	)
)

func IncJobSubmitted(result string) {
	researchJobsSubmittedTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveJobResolved(outcome string, age time.Duration) {
	researchJobsResolvedTotal.WithLabelValues(norm(outcome)).Inc()
	researchJobDurationSeconds.WithLabelValues(norm(outcome)).Observe(age.Seconds())
}

func IncStatusError() {
	researchStatusErrorsTotal.Inc()
}

func SetJobsTracked(n int) {
	researchJobsTracked.Set(float64(n))
}

func ObserveReconcileCycle(d time.Duration) {
	researchReconcileCycleSeconds.Observe(d.Seconds())
}
