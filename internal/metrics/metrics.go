package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_upstream_requests_total",
			Help: "Requests sent to the packages API by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_upstream_request_duration_seconds",
			Help:    "Latency of packages API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	SearchesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_search_dropped_total",
			Help: "Search, load-more and lookup responses discarded because a newer call superseded them",
		},
		[]string{"operation"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_sessions_active",
			Help: "Storefront sessions currently held in memory",
		},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_event_subscribers",
			Help: "Open websocket connections receiving storefront events",
		},
	)
)
