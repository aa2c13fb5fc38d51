package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the API server.
type Metrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	CartMutations *prometheus.CounterVec
	Checkouts     *prometheus.CounterVec
}

// New registers and returns the server's metric collectors.
func New(registry *prometheus.Registry) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopkart",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"path", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shopkart",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"path"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopkart",
		Name:      "cart_mutations_total",
		Help:      "Cart mutation operations by type and outcome.",
	}, []string{"operation", "outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopkart",
		Name:      "checkouts_total",
		Help:      "Checkout transitions by flow and outcome.",
	}, []string{"flow", "outcome"})
	registry.MustRegister(requests, latency, mutations, checkouts)
	return &Metrics{
		Requests:      requests,
		LatencyMS:     latency,
		CartMutations: mutations,
		Checkouts:     checkouts,
	}
}

// Handler serves the registry in Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
