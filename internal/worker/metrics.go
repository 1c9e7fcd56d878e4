package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncGroupSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "slonyx",
		Subsystem: "worker",
		Name:      "sync_group_size",
		Help:      "Number of SYNC events applied together in one transaction.",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
	}, []string{"origin"})

	applyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slonyx",
		Subsystem: "worker",
		Name:      "apply_errors_total",
		Help:      "Number of apply failures by kind (admin, sync).",
	}, []string{"origin", "kind"})
)
