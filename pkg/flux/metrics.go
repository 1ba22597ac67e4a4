package flux

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluxstats_fetch_duration_seconds",
			Help:    "Time taken to fetch one upstream endpoint",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxstats_fetch_total",
			Help: "Total number of upstream fetch attempts",
		},
		[]string{"endpoint", "status"}, // success, error, invalid, http_<code>
	)
)
