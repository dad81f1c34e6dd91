package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

type GuardSettings struct {
	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	// FailureThreshold consecutive failures open the breaker; zero disables it.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// guarded wraps a backend with a token-bucket limiter and a circuit breaker.
type guarded struct {
	backend Backend
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func Guard(b Backend, s GuardSettings) Backend {
	g := &guarded{backend: b}

	if s.RequestsPerSecond > 0 {
		burst := s.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(s.RequestsPerSecond), burst)
	}

	if s.FailureThreshold > 0 {
		timeout := s.OpenTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		threshold := s.FailureThreshold
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        b.Name(),
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				breakerState.WithLabelValues(name).Set(float64(to))
				log.Warn("provider breaker state changed", "provider", name, "from", from.String(), "to", to.String())
			},
			// A caller giving up is not a backend fault.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		})
		breakerState.WithLabelValues(b.Name()).Set(0)
	}

	return g
}

func (g *guarded) Name() string { return g.backend.Name() }

func (g *guarded) Complete(ctx context.Context, req Request) (*Completion, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if g.breaker == nil {
		return g.backend.Complete(ctx, req)
	}

	res, err := g.breaker.Execute(func() (any, error) {
		return g.backend.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Completion), nil
}
