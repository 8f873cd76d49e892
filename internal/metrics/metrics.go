// Package metrics declares the process's Prometheus instruments. They
// register against the default registry; the HTTP server exposes them on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LogsReceived counts raw logs taken off the chain subscriptions,
	// labeled by event family ("registrations", "transfers").
	LogsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enswatch_logs_received_total",
		Help: "Raw logs received from the chain subscriptions.",
	}, []string{"family"})

	// DecodeFailures counts logs that matched a watched topic but failed
	// structural decoding.
	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enswatch_decode_failures_total",
		Help: "Logs matching a watched topic that failed to decode.",
	})

	// EventsEmitted counts events released downstream, labeled by type.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enswatch_events_emitted_total",
		Help: "Decoded events emitted past filtering, by message type.",
	}, []string{"type"})

	// EventsDeduplicated counts events dropped as duplicates.
	EventsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enswatch_events_deduplicated_total",
		Help: "Events dropped by the deduplication window.",
	})

	// EventsBelowThreshold counts transfers discarded for low value.
	EventsBelowThreshold = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enswatch_events_below_threshold_total",
		Help: "Transfers discarded below the value threshold.",
	})

	// SubscribersConnected tracks currently attached WebSocket subscribers.
	SubscribersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enswatch_subscribers_connected",
		Help: "WebSocket subscribers currently connected.",
	})

	// SubscriberEvictions counts subscribers disconnected for falling behind.
	SubscriberEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enswatch_subscriber_evictions_total",
		Help: "Subscribers evicted because their send queue overflowed.",
	})

	// MessagesBroadcast counts messages fanned out to subscribers.
	MessagesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enswatch_messages_broadcast_total",
		Help: "Messages delivered into subscriber send queues.",
	})
)
