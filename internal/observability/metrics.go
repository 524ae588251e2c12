// Package observability holds the process-wide Prometheus collectors for command handling.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/reactivities/internal/errorx"
)

var (
	commandCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reactivities",
		Subsystem: "commands",
		Name:      "handled_total",
		Help:      "Number of commands handled, labeled by command and outcome kind.",
	}, []string{"command", "outcome"})

	commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reactivities",
		Subsystem: "commands",
		Name:      "duration_seconds",
		Help:      "Time spent handling a command, including store round trips.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"command"})

	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reactivities",
		Subsystem: "persistence",
		Name:      "last_activity_write_timestamp_seconds",
		Help:      "Unix timestamp of the most recent committed activity write.",
	})

	eventPublishedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reactivities",
		Subsystem: "outbox",
		Name:      "last_event_published_timestamp_seconds",
		Help:      "Unix timestamp of the most recent outbox batch published to Kafka.",
	})
)

func init() {
	prometheus.MustRegister(commandCounter, commandDuration, activityPersistGauge, eventPublishedGauge)
}

// ObserveCommand records the outcome and latency of a command. It is meant to be deferred
// with a pointer to the handler's named error result.
func ObserveCommand(command string, start time.Time, errp *error) {
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = string(errorx.KindOf(*errp))
	}
	commandCounter.WithLabelValues(command, outcome).Inc()
	commandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordEventsPublished updates the outbox publish watermark gauge.
func RecordEventsPublished(ts time.Time) {
	if ts.IsZero() {
		return
	}
	eventPublishedGauge.Set(float64(ts.Unix()))
}
