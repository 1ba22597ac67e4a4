package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxstats_scheduler_checks_total",
			Help: "Staleness checks by track and resulting state",
		},
		[]string{"kind", "state"},
	)

	collectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxstats_scheduler_collections_total",
			Help: "Collections triggered by stale snapshots",
		},
		[]string{"kind", "outcome"},
	)

	checkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fluxstats_scheduler_check_duration_seconds",
			Help:    "Time taken by one staleness check including collections",
			Buckets: []float64{0.01, 0.1, 1, 10, 60, 300},
		},
	)
)
