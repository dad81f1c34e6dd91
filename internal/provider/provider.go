// Package provider invokes model backends on behalf of the executor. Each
// backend family sits behind the same narrow interface so the executor can
// be exercised with scripted doubles.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/types"
)

var (
	log    = logger.ForComponent("provider")
	tracer = otel.Tracer("triad/provider")
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyCompletion = errors.New("empty completion")
)

type Completion struct {
	Text             string        `json:"text"`
	Model            string        `json:"model"`
	Latency          time.Duration `json:"-"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
}

// Invoker calls the model described by cfg with a fully assembled prompt.
type Invoker interface {
	Invoke(ctx context.Context, cfg types.ModelConfig, prompt string) (*Completion, error)
}

// Request is what a backend receives for one call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Dispatcher is the production Invoker: it picks a backend by the
// configuration's provider name.
type Dispatcher struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

func NewDispatcher(backends ...Backend) *Dispatcher {
	d := &Dispatcher{backends: make(map[string]Backend)}
	for _, b := range backends {
		d.Register(b)
	}
	return d
}

func (d *Dispatcher) Register(b Backend) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backends[strings.ToLower(b.Name())] = b
}

func (d *Dispatcher) Providers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.backends))
	for name := range d.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) backend(name string) (Backend, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.backends[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

func (d *Dispatcher) Invoke(ctx context.Context, cfg types.ModelConfig, prompt string) (*Completion, error) {
	ctx, span := tracer.Start(ctx, "provider.Invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", cfg.Provider),
		attribute.String("llm.model", cfg.Model),
		attribute.Int("triad.slot", cfg.Slot),
	)

	b, ok := d.backend(cfg.Provider)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	completion, err := b.Complete(ctx, Request{
		Model:       cfg.Model,
		System:      cfg.SystemPrompt,
		Prompt:      prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	elapsed := time.Since(start)

	if err == nil && (completion == nil || strings.TrimSpace(completion.Text) == "") {
		err = ErrEmptyCompletion
	}
	if err != nil {
		providerRequests.WithLabelValues(b.Name(), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug("provider call failed", "provider", cfg.Provider, "model", cfg.Model, "error", err)
		return nil, fmt.Errorf("%s/%s: %w", cfg.Provider, cfg.Model, err)
	}

	providerRequests.WithLabelValues(b.Name(), "ok").Inc()
	providerLatency.WithLabelValues(b.Name()).Observe(elapsed.Seconds())
	if completion.Latency == 0 {
		completion.Latency = elapsed
	}
	if completion.Model == "" {
		completion.Model = cfg.Model
	}
	return completion, nil
}
