package rides

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ridesBooked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxisim",
			Name:      "rides_booked_total",
			Help:      "Rides booked, by rate regime",
		},
		[]string{"regime"},
	)

	ridesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxisim",
			Name:      "rides_completed_total",
			Help:      "Rides completed, by rate regime",
		},
		[]string{"regime"},
	)

	ridesCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taxisim",
			Name:      "rides_cancelled_total",
			Help:      "Rides cancelled before completion",
		},
	)

	activeRides = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taxisim",
			Name:      "active_rides",
			Help:      "Rides currently in progress",
		},
	)

	rideFares = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "taxisim",
			Name:      "ride_fare",
			Help:      "Final fare of completed rides",
			Buckets:   []float64{10, 15, 20, 30, 40, 60, 80, 120},
		},
	)
)
