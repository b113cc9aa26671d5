package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxisim",
			Subsystem: "realtime",
			Name:      "messages_sent_total",
			Help:      "Websocket messages built for delivery, by type",
		},
		[]string{"type"},
	)

	connectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taxisim",
			Subsystem: "realtime",
			Name:      "connections_total",
			Help:      "Websocket connections accepted",
		},
	)
)
