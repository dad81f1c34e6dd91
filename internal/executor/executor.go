// Package executor runs the three ensemble slots of a request in parallel.
// Every slot is routed and invoked independently; a failing slot never
// cancels or fails the others.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/provider"
	"github.com/alucardeht/triad/internal/types"
)

var (
	log    = logger.ForComponent("executor")
	tracer = otel.Tracer("triad/executor")
)

const DefaultSlotTimeout = 60 * time.Second

var ErrSlotNotConfigured = errors.New("no model configured for slot")

type Router interface {
	Route(ctx context.Context, aiType types.AIType, slot int, text string, mode types.Mode) *types.RoutingResult
}

type Executor struct {
	router      Router
	invoker     provider.Invoker
	slotTimeout time.Duration
}

func New(router Router, invoker provider.Invoker, slotTimeout time.Duration) *Executor {
	if slotTimeout <= 0 {
		slotTimeout = DefaultSlotTimeout
	}
	return &Executor{router: router, invoker: invoker, slotTimeout: slotTimeout}
}

// Execute returns exactly one response per slot, ordered by slot. configs
// holds the model rows for aiType; the first row per slot wins.
func (e *Executor) Execute(ctx context.Context, aiType types.AIType, prompt string, mode types.Mode, configs []types.ModelConfig) []types.ModelResponse {
	bySlot := make(map[int]types.ModelConfig, len(types.Slots))
	for _, c := range configs {
		if c.AIType != aiType {
			continue
		}
		if _, taken := bySlot[c.Slot]; !taken {
			bySlot[c.Slot] = c
		}
	}

	responses := make([]types.ModelResponse, len(types.Slots))
	var wg sync.WaitGroup
	for i, slot := range types.Slots {
		cfg, ok := bySlot[slot]
		wg.Go(func() {
			var c *types.ModelConfig
			if ok {
				c = &cfg
			}
			responses[i] = e.runSlot(ctx, aiType, slot, c, prompt, mode)
		})
	}
	wg.Wait()

	return responses
}

func (e *Executor) runSlot(ctx context.Context, aiType types.AIType, slot int, cfg *types.ModelConfig, prompt string, mode types.Mode) (resp types.ModelResponse) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "executor.slot")
	span.SetAttributes(
		attribute.String("triad.ai_type", string(aiType)),
		attribute.Int("triad.slot", slot),
		attribute.String("triad.mode", string(mode)),
	)

	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			log.Error("slot panicked", "ai_type", aiType, "slot", slot, "panic", r)
			resp = failed(aiType, slot, mode, cfg, fmt.Errorf("panic: %v", r))
			result = "panic"
		}
		resp.SetLatency(time.Since(start))
		slotLatency.WithLabelValues(string(aiType), strconv.Itoa(slot), result).Observe(resp.Latency.Seconds())
		if !resp.Success {
			span.SetStatus(codes.Error, resp.Error)
		}
		span.End()
	}()

	if cfg == nil {
		result = "unconfigured"
		return failed(aiType, slot, mode, nil, ErrSlotNotConfigured)
	}
	span.SetAttributes(attribute.String("llm.provider", cfg.Provider), attribute.String("llm.model", cfg.Model))

	routing := e.router.Route(ctx, aiType, slot, prompt, mode)
	enriched := BuildPrompt(routing, prompt)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = e.slotTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	completion, err := e.invoker.Invoke(callCtx, *cfg, enriched)
	if err == nil && completion == nil {
		err = provider.ErrEmptyCompletion
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("slot timed out after %s: %w", timeout, err)
		}
		log.Warn("slot failed", "ai_type", aiType, "slot", slot, "provider", cfg.Provider, "model", cfg.Model, "error", err)
		span.RecordError(err)
		result = "error"
		return failed(aiType, slot, mode, cfg, err)
	}

	model := cfg.Model
	if completion.Model != "" {
		model = completion.Model
	}
	return types.ModelResponse{
		Slot:     slot,
		Provider: cfg.Provider,
		Model:    model,
		Text:     completion.Text,
		Success:  true,
		Routing:  *routing,
	}
}

// failed builds the response of a slot that produced no answer. Its routing
// result carries no selections.
func failed(aiType types.AIType, slot int, mode types.Mode, cfg *types.ModelConfig, err error) types.ModelResponse {
	resp := types.ModelResponse{
		Slot:    slot,
		Success: false,
		Error:   err.Error(),
		Routing: types.RoutingResult{
			AIType:    aiType,
			Slot:      slot,
			Mode:      mode,
			Memories:  []types.Memory{},
			Reasoning: []string{},
		},
	}
	if cfg != nil {
		resp.Provider = cfg.Provider
		resp.Model = cfg.Model
	}
	return resp
}
