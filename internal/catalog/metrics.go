package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics grounded in the per-operation counter+histogram pairing the
// teacher registers for its staging layer (internal/staging/stage),
// generalized here to the catalog's own event/confirm traffic.
var (
	EventsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slonyx",
		Subsystem: "catalog",
		Name:      "events_created_total",
		Help:      "Number of sl_event rows inserted, by event type.",
	}, []string{"event_type"})

	EventCreateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "slonyx",
		Subsystem: "catalog",
		Name:      "event_create_seconds",
		Help:      "Latency of sl_event insertion including the exclusive lock wait.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	ConfirmHighWater = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "slonyx",
		Subsystem: "catalog",
		Name:      "confirm_seqno",
		Help:      "Highest confirmed seqno per (origin, receiver) pair.",
	}, []string{"origin", "receiver"})
)
