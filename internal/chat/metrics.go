package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reactivities",
		Subsystem: "chat",
		Name:      "connected_clients",
		Help:      "Websocket clients currently connected to this node.",
	})

	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reactivities",
		Subsystem: "chat",
		Name:      "comments_delivered_total",
		Help:      "Comments appended to an activity feed.",
	})

	duplicateCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reactivities",
		Subsystem: "chat",
		Name:      "comments_duplicate_total",
		Help:      "Comments dropped because their ID was already delivered.",
	})

	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reactivities",
		Subsystem: "chat",
		Name:      "frames_dropped_total",
		Help:      "Frames discarded because a client send buffer was full.",
	})
)

func init() {
	prometheus.MustRegister(connectedGauge, deliveredCounter, duplicateCounter, droppedCounter)
}
