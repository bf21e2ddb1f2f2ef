// README: Prometheus metrics shared across the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "waypool", Name: "booking_transitions_total", Help: "Booking state machine transitions by operation and outcome"},
		[]string{"op", "outcome"},
	)

	MatchQueries = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "waypool", Name: "match_queries_total", Help: "Total match engine queries"},
	)
	MatchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{Namespace: "waypool", Name: "match_candidates", Help: "Candidates surviving bucket classification per query", Buckets: []float64{0, 1, 2, 5, 10, 20, 50}},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "waypool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "waypool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
