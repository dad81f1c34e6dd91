package router

import (
	"context"
	"time"
)

// TimeoutConfig bounds the two I/O steps of a route: the catalog refresh
// check and the memory lookup.
type TimeoutConfig struct {
	Refresh time.Duration
	Memory  time.Duration
}

func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Refresh: 5 * time.Second,
		Memory:  2 * time.Second,
	}
}

func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
