package fusion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alucardeht/triad/internal/types"
)

var (
	// Labels: ai_type
	fusedQuality = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "triad",
		Subsystem: "fusion",
		Name:      "quality",
		Help:      "Distribution of fused answer quality",
		Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"ai_type"})

	// Labels: ai_type
	degradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triad",
		Subsystem: "fusion",
		Name:      "degraded_total",
		Help:      "Requests answered with the fallback text because every slot failed",
	}, []string{"ai_type"})
)

func record(aiType types.AIType, r types.FusionResult) {
	fusedQuality.WithLabelValues(string(aiType)).Observe(r.QualityScore)
	if r.Degraded {
		degradedTotal.WithLabelValues(string(aiType)).Inc()
	}
}
