package watcher

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alucardeht/triad/internal/seed"
	"github.com/alucardeht/triad/internal/store"
)

// Labels: result
var reloads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "triad",
	Subsystem: "watcher",
	Name:      "reloads_total",
	Help:      "Seed catalog reloads triggered by file changes",
}, []string{"result"})

type Importer interface {
	Import(ctx context.Context, b *seed.Bundle, prune bool) (*store.ImportResult, error)
}

type CacheRefresher interface {
	RefreshAllCaches(ctx context.Context) error
}

// SeedReloader re-imports the seed directory into the store, retiring rows
// that disappeared from it, and then invalidates the in-memory caches.
type SeedReloader struct {
	Dir     string
	Include []string
	Ignore  []string
	Store   Importer
	Caches  CacheRefresher
}

func (r *SeedReloader) Reload(ctx context.Context) error {
	bundle, files, err := seed.LoadDir(r.Dir, r.Include, r.Ignore)
	if err != nil {
		return fmt.Errorf("load seed dir: %w", err)
	}

	res, err := r.Store.Import(ctx, bundle, true)
	if err != nil {
		return fmt.Errorf("import seed: %w", err)
	}
	log.Debug("seed imported", "files", len(files), "nodes", res.Nodes, "domains", res.Domains,
		"models", res.Models, "retired", res.Retired)

	if r.Caches == nil {
		return nil
	}
	return r.Caches.RefreshAllCaches(ctx)
}
