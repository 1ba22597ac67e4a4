package snapshotter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotCollectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluxstats_snapshot_collection_duration_seconds",
			Help:    "Time taken to collect and persist one snapshot",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	snapshotCollectionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxstats_snapshot_collection_total",
			Help: "Total number of snapshot collection attempts",
		},
		[]string{"kind", "status"}, // success or error
	)

	snapshotLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fluxstats_snapshot_last_success_timestamp_seconds",
			Help: "Unix time of the snapshot taken by the last successful collection",
		},
		[]string{"kind"},
	)
)
