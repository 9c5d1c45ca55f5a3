package generator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeGenerated     = "generated"
	outcomeSkipped       = "skipped"
	outcomeMissingSource = "missing_source"
	outcomeFailed        = "failed"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachments_generation_jobs_total",
			Help: "Total number of derivative generation jobs by outcome",
		},
		[]string{"outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attachments_generation_job_duration_seconds",
			Help:    "Derivative generation job duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)
)

func observe(outcome string, start time.Time) {
	jobsTotal.WithLabelValues(outcome).Inc()
	jobDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
