package gpu

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for acquisition outcome.
const (
	acquireReady  = "ready"
	acquireFailed = "failed"
)

var (
	acquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headshotd_gpu_acquisitions_total",
			Help: "Total number of compute-resource acquisition attempts.",
		},
		[]string{"status"},
	)

	reclaims = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "headshotd_gpu_reclaims_total",
			Help: "Total number of device-capacity reclaim operations.",
		},
	)

	freeVRAM = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "headshotd_gpu_free_vram_mb",
			Help: "Free device memory in MiB as of the last measurement.",
		},
	)
)

func init() {
	prometheus.MustRegister(acquisitions)
	prometheus.MustRegister(reclaims)
	prometheus.MustRegister(freeVRAM)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup, rather than only after first observation.
	acquisitions.WithLabelValues(acquireReady)
	acquisitions.WithLabelValues(acquireFailed)
}
