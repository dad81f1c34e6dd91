package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: provider, result (ok, error)
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triad",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Model backend calls by provider and result",
	}, []string{"provider", "result"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "triad",
		Subsystem: "provider",
		Name:      "latency_seconds",
		Help:      "Latency of successful model backend calls",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"provider"})

	// breakerState mirrors each backend breaker: 0 closed, 1 half-open, 2 open.
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "triad",
		Subsystem: "provider",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
	}, []string{"provider"})
)
