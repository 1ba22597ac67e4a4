package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chartCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxstats_chart_cache_total",
			Help: "Rendered chart cache lookups",
		},
		[]string{"chart", "result"}, // hit or miss
	)

	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fluxstats_websocket_clients",
			Help: "Connected dashboard pages",
		},
	)
)
