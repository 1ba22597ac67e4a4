package series

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reloadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxstats_dataset_reload_total",
			Help: "Total number of dataset reloads",
		},
		[]string{"status"},
	)

	datasetRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fluxstats_dataset_rows",
			Help: "Number of rows in the current dataset",
		},
		[]string{"table"}, // containers, totals, utilization
	)
)
