package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alucardeht/triad/internal/types"
)

type ModelLoader interface {
	LoadModelConfigs(ctx context.Context) ([]types.ModelConfig, error)
}

// modelCache holds the active model rows grouped by ai type for one TTL
// window. A failed reload keeps serving the previous rows.
type modelCache struct {
	loader ModelLoader
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	byType   map[types.AIType][]types.ModelConfig
	loadedAt time.Time
	loaded   bool
	// gen moves on every invalidate; a reload started under an older gen
	// is discarded.
	gen uint64

	group singleflight.Group
}

const modelsKey = "models"

func newModelCache(loader ModelLoader, ttl time.Duration, now func() time.Time) *modelCache {
	return &modelCache{loader: loader, ttl: ttl, now: now}
}

func (c *modelCache) fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded && c.now().Sub(c.loadedAt) < c.ttl
}

// get returns the rows for aiType, reloading first when stale. err is set
// only when the reload failed; rows may still hold the previous data.
func (c *modelCache) get(ctx context.Context, aiType types.AIType) (rows []types.ModelConfig, err error) {
	if !c.fresh() {
		_, err, _ = c.group.Do(modelsKey, func() (any, error) {
			if c.fresh() {
				return nil, nil
			}
			return nil, c.reload(ctx)
		})
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byType[aiType], err
}

func (c *modelCache) reload(ctx context.Context) error {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	configs, err := c.loader.LoadModelConfigs(ctx)
	if err != nil {
		modelReloads.WithLabelValues("error").Inc()
		return err
	}

	byType := make(map[types.AIType][]types.ModelConfig)
	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		byType[cfg.AIType] = append(byType[cfg.AIType], cfg)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		modelReloads.WithLabelValues("superseded").Inc()
		return nil
	}
	c.byType = byType
	c.loadedAt = c.now()
	c.loaded = true
	c.mu.Unlock()

	modelReloads.WithLabelValues("ok").Inc()
	log.Debug("model configs reloaded", "rows", len(configs))
	return nil
}

// invalidate makes the next get start a fresh reload, even while an older
// one is still running.
func (c *modelCache) invalidate() {
	c.mu.Lock()
	c.gen++
	c.loaded = false
	c.group.Forget(modelsKey)
	c.mu.Unlock()
}

func (c *modelCache) counts() map[types.AIType]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[types.AIType]int, len(c.byType))
	for t, rows := range c.byType {
		out[t] = len(rows)
	}
	return out
}
