package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// routeConfidence tracks the distribution of routing confidence.
	// Labels: ai_type
	routeConfidence = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "triad",
		Subsystem: "routing",
		Name:      "confidence",
		Help:      "Distribution of routing confidence scores",
		Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"ai_type"})

	// routeFallbacks counts node selections that ignored slot affinity
	// because no node matched the slot.
	// Labels: ai_type
	routeFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triad",
		Subsystem: "routing",
		Name:      "slot_fallbacks_total",
		Help:      "Node selections that fell back to every node of the ai type",
	}, []string{"ai_type"})

	// memoryErrors counts failed memory lookups; the route continues without memories.
	memoryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "triad",
		Subsystem: "routing",
		Name:      "memory_errors_total",
		Help:      "Memory lookups that failed and were skipped",
	})
)
