// Package metrics registers the prometheus collectors shared by every scribe binary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_messages_handled_total",
		Help: "Queue messages handled, by topic and result (ack, retry, stale).",
	}, []string{"topic", "result"})

	HandleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scribe_message_handle_seconds",
		Help:    "Time spent handling one queue message.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"topic"})

	ActiveHandlers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scribe_active_handlers",
		Help: "Messages currently being handled on this node.",
	}, []string{"topic"})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_submissions_total",
		Help: "Accepted submissions, by kind (single, channel, playlist).",
	}, []string{"kind"})

	UnitsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_units_finalized_total",
		Help: "Units that reached a terminal status, by kind (video, batch) and status.",
	}, []string{"kind", "status"})

	SegmentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_segments_ingested_total",
		Help: "Segment results credited to their video for the first time.",
	})

	DuplicateDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_duplicate_deliveries_total",
		Help: "Redelivered events absorbed by dedupe, by stage.",
	}, []string{"stage"})

	DeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_queue_dead_lettered_total",
		Help: "Queue messages moved aside after exhausting their attempts.",
	})

	ArtifactBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_artifact_bytes_total",
		Help: "Bytes written to the artifact store.",
	})
)

var CoordinationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scribe_coordination_errors_total",
	Help: "Cross-key steps that failed after the triggering unit committed, by step.",
}, []string{"step"})
