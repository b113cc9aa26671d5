package ridehistory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	persistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxisim",
			Subsystem: "history",
			Name:      "persist_failures_total",
			Help:      "History backend operations that failed",
		},
		[]string{"operation"},
	)

	storedRides = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taxisim",
			Subsystem: "history",
			Name:      "rides",
			Help:      "Completed rides currently held in history",
		},
	)
)
