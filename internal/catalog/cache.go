// Package catalog keeps an in-memory, TTL-refreshed snapshot of the routing
// catalog (nodes, stacks, domains) so the router never hits the store on the
// request path more than once per window.
package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/types"
)

var log = logger.ForComponent("catalog")

const DefaultTTL = 60 * time.Second

type Loader interface {
	LoadCatalog(ctx context.Context) (*types.CatalogData, error)
}

type Clock func() time.Time

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.now = clock
		}
	}
}

type Cache struct {
	loader Loader
	ttl    time.Duration
	now    Clock

	snap atomic.Pointer[Snapshot]
	// lastRefresh is the unix-nano time of the last successful load; zero
	// means stale.
	lastRefresh atomic.Int64
	group       singleflight.Group

	// commitMu orders load commits against ForceRefresh. A load only
	// commits when gen has not moved since it started.
	commitMu sync.Mutex
	gen      uint64
}

const refreshKey = "refresh"

func New(loader Loader, opts ...Option) *Cache {
	c := &Cache{
		loader: loader,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.Store(NewSnapshot(nil, time.Time{}))
	return c
}

func (c *Cache) fresh() bool {
	last := c.lastRefresh.Load()
	if last == 0 {
		return false
	}
	return c.now().Sub(time.Unix(0, last)) < c.ttl
}

// Refresh reloads the catalog when the TTL has elapsed since the last
// successful load. Concurrent callers share one load. On failure the
// previous snapshot stays in place and the error is returned for logging.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.fresh() {
		return nil
	}

	_, err, _ := c.group.Do(refreshKey, func() (any, error) {
		if c.fresh() {
			return nil, nil
		}

		c.commitMu.Lock()
		gen := c.gen
		c.commitMu.Unlock()

		start := time.Now()
		data, err := c.loader.LoadCatalog(ctx)
		refreshDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			refreshTotal.WithLabelValues("error").Inc()
			log.Warn("catalog refresh failed, serving previous snapshot",
				"error", err, "loaded_at", c.snap.Load().LoadedAt)
			return nil, err
		}

		now := c.now()
		snap := NewSnapshot(data, now)

		c.commitMu.Lock()
		if gen != c.gen {
			c.commitMu.Unlock()
			refreshTotal.WithLabelValues("superseded").Inc()
			log.Debug("catalog load superseded by a forced refresh, discarded")
			return nil, nil
		}
		c.snap.Store(snap)
		c.lastRefresh.Store(now.UnixNano())
		c.commitMu.Unlock()

		refreshTotal.WithLabelValues("ok").Inc()
		recordSnapshot(snap)
		log.Debug("catalog refreshed",
			"nodes", len(snap.Nodes), "stacks", len(snap.Stacks), "domains", len(snap.Domains))
		return nil, nil
	})
	return err
}

// ForceRefresh marks the snapshot stale. The next Refresh starts a new
// load even if one is already in flight, and the in-flight load is
// discarded when it finishes.
func (c *Cache) ForceRefresh() {
	c.commitMu.Lock()
	c.gen++
	c.lastRefresh.Store(0)
	c.group.Forget(refreshKey)
	c.commitMu.Unlock()
}

// Snapshot returns the current snapshot, which is empty before the first
// successful load.
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}
