package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "officesync_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"server", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "officesync_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"server", "method"},
	)

	// Server-side business metrics
	ChatMessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "officesync_chat_messages_posted_total",
			Help: "Total chat messages posted",
		},
		[]string{"room_type"}, // "room" or "dm"
	)

	EmailsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "officesync_emails_sent_total",
			Help: "Total emails sent",
		},
	)

	// Collection-side metrics
	CollectionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "officesync_collection_runs_total",
			Help: "Total collection runs by source type and outcome",
		},
		[]string{"source", "outcome"}, // outcome "ok" or "error"
	)

	MessagesCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "officesync_messages_collected_total",
			Help: "Total messages collected by channel",
		},
		[]string{"channel"},
	)

	CollectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "officesync_collection_duration_seconds",
			Help:    "Collection run duration",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	TimestampFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "officesync_timestamp_fallbacks_total",
			Help: "Total timestamps that could not be parsed and fell back to now",
		},
	)
)
