package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// slotLatency measures one slot end to end: routing, prompt and model call.
	// Labels: ai_type, slot, result (ok, error, unconfigured, panic)
	slotLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "triad",
		Subsystem: "executor",
		Name:      "slot_latency_seconds",
		Help:      "Latency of a single ensemble slot",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"ai_type", "slot", "result"})
)
