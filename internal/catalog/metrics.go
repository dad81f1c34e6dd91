package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// refreshTotal counts catalog loads by result (ok, error, superseded).
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triad",
		Subsystem: "catalog",
		Name:      "refresh_total",
		Help:      "Catalog loads from the store by result",
	}, []string{"result"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "triad",
		Subsystem: "catalog",
		Name:      "refresh_duration_seconds",
		Help:      "Time spent loading the catalog from the store",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// catalogEntries reports the size of the current snapshot.
	// Labels: kind (nodes, stacks, domains)
	catalogEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "triad",
		Subsystem: "catalog",
		Name:      "entries",
		Help:      "Active catalog entries in the cached snapshot",
	}, []string{"kind"})
)

func recordSnapshot(s *Snapshot) {
	catalogEntries.WithLabelValues("nodes").Set(float64(len(s.Nodes)))
	catalogEntries.WithLabelValues("stacks").Set(float64(len(s.Stacks)))
	catalogEntries.WithLabelValues("domains").Set(float64(len(s.Domains)))
}
