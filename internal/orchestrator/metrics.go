package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: ai_type, mode, outcome (ok, degraded, rejected)
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triad",
		Subsystem: "orchestrator",
		Name:      "requests_total",
		Help:      "AI system requests by outcome",
	}, []string{"ai_type", "mode", "outcome"})

	// Labels: ai_type
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "triad",
		Subsystem: "orchestrator",
		Name:      "request_duration_seconds",
		Help:      "End-to-end latency of AI system requests",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"ai_type"})

	// Labels: result
	modelReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triad",
		Subsystem: "orchestrator",
		Name:      "model_config_reloads_total",
		Help:      "Model configuration reloads from the store",
	}, []string{"result"})
)
