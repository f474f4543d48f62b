package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luminaforge/headshotd/internal/journal"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headshotd_jobs_total",
			Help: "Total number of jobs processed by the worker.",
		},
		[]string{"status"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "headshotd_job_duration_seconds",
			Help:    "End-to-end job duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	phaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headshotd_phase_transitions_total",
			Help: "Total number of worker lifecycle phase transitions.",
		},
		[]string{"to"},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(phaseTransitions)

	// Pre-initialize counter label combinations so they appear in /metrics
	// with value 0 from startup, rather than only after first observation.
	jobsTotal.WithLabelValues(journal.StatusSucceeded)
	jobsTotal.WithLabelValues(journal.StatusFailed)
	for _, phase := range []string{PhaseInitializing, PhaseReady, PhaseDegraded} {
		phaseTransitions.WithLabelValues(phase)
	}
}
