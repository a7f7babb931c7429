package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Repository metrics
	BackendsKnown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stevedore_backends_known",
			Help: "Number of back-end pools in the repository, stale included",
		},
	)

	BackendsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stevedore_backends_live",
			Help: "Number of back-end pools eligible for scheduling",
		},
	)

	BackendsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_backends_pruned_total",
			Help: "Back-end pools removed for missing the liveness window",
		},
	)

	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stevedore_capability_reports_total",
			Help: "Capability reports processed by result",
		},
		[]string{"result"},
	)

	// Scheduling metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stevedore_scheduling_latency_seconds",
			Help:    "Time from request receipt to first dispatch in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PlacementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stevedore_placements_total",
			Help: "Placement requests completed by result",
		},
		[]string{"result"},
	)

	DispatchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_dispatch_retries_total",
			Help: "Re-dispatches after a retryable worker failure",
		},
	)

	FilterEliminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stevedore_filter_eliminations_total",
			Help: "Hosts eliminated per filter",
		},
		[]string{"filter"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stevedore_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stevedore_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(BackendsKnown)
	prometheus.MustRegister(BackendsLive)
	prometheus.MustRegister(BackendsPruned)
	prometheus.MustRegister(ReportsTotal)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(PlacementsTotal)
	prometheus.MustRegister(DispatchRetries)
	prometheus.MustRegister(FilterEliminations)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
