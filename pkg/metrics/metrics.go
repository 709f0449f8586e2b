// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// IdentitiesTotal tracks identities registered since start.
	IdentitiesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_identities_total",
			Help: "Total identities registered",
		},
	)

	// ConversationsTotal tracks conversations created since start.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks messages appended, by kind.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Total messages appended",
		},
		[]string{"kind"},
	)

	// LiveFeedsActive tracks open live feeds.
	LiveFeedsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_live_feeds_active",
			Help: "Number of open live feeds",
		},
	)

	// EventsDelivered tracks events handed to a subscriber, by event type.
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_delivered_total",
			Help: "Events delivered to live feed subscribers",
		},
		[]string{"type"},
	)

	// EventsDropped tracks events a subscriber could not accept.
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
		[]string{"type"},
	)

	// JournalPublishErrors tracks failed journal writes.
	JournalPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_journal_publish_errors_total",
			Help: "Events that could not be written to the NATS journal",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordDelivery records the outcome of pushing one event to one subscriber.
func RecordDelivery(eventType string, delivered bool) {
	if delivered {
		EventsDelivered.WithLabelValues(eventType).Inc()
		return
	}
	EventsDropped.WithLabelValues(eventType).Inc()
}

// IncrementLiveFeeds increments the open live feed count.
func IncrementLiveFeeds() {
	LiveFeedsActive.Inc()
}

// DecrementLiveFeeds decrements the open live feed count.
func DecrementLiveFeeds() {
	LiveFeedsActive.Dec()
}
