package rpcclient

import "github.com/prometheus/client_golang/prometheus"

// Metrics used by the client.
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of RPC requests sent",
			Name:      "requests_total",
			Namespace: "substrate_client",
		},
		[]string{"method"},
	)
	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of failed RPC requests",
			Name:      "request_errors_total",
			Namespace: "substrate_client",
		},
		[]string{"method"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "RPC request round trip time in seconds",
			Name:      "request_duration_seconds",
			Namespace: "substrate_client",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of active subscriptions",
			Name:      "active_subscriptions",
			Namespace: "substrate_client",
		},
	)
	notificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of notifications for unknown subscriptions dropped",
			Name:      "notifications_dropped_total",
			Namespace: "substrate_client",
		},
	)
	extrinsicsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of extrinsics accepted by the node",
			Name:      "extrinsics_submitted_total",
			Namespace: "substrate_client",
		},
	)
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		requestErrors,
		requestDuration,
		activeSubscriptions,
		notificationsDropped,
		extrinsicsSubmitted,
	)
}
