package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: kind (routing, response, memory_usage), result (ok, error)
	writes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "triad",
		Subsystem: "audit",
		Name:      "writes_total",
		Help:      "Audit rows written by kind and result",
	}, []string{"kind", "result"})

	dropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "triad",
		Subsystem: "audit",
		Name:      "dropped_total",
		Help:      "Entries rejected because the queue was full",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "triad",
		Subsystem: "audit",
		Name:      "queue_depth",
		Help:      "Entries waiting to be written",
	})
)
