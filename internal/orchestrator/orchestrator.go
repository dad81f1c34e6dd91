// Package orchestrator is the entry point of the service: it validates a
// request, runs the three-slot ensemble and fuses the answers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/alucardeht/triad/internal/audit"
	"github.com/alucardeht/triad/internal/catalog"
	"github.com/alucardeht/triad/internal/fusion"
	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/store"
	"github.com/alucardeht/triad/internal/types"
)

var (
	log    = logger.ForComponent("orchestrator")
	tracer = otel.Tracer("triad/orchestrator")
)

var (
	ErrMissingModelConfig = errors.New("no model configuration")
	ErrEmptyPrompt        = errors.New("prompt is empty")
)

type Executor interface {
	Execute(ctx context.Context, aiType types.AIType, prompt string, mode types.Mode, configs []types.ModelConfig) []types.ModelResponse
}

type Recorder interface {
	Record(e audit.Entry) error
}

type StoreStats interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

type Option func(*Orchestrator)

// WithRecorder enables auditing. Without it nothing is recorded.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithDefaultMode(m types.Mode) Option {
	return func(o *Orchestrator) {
		if m != "" {
			o.defaultMode = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		if newID != nil {
			o.newID = newID
		}
	}
}

func WithStoreStats(s StoreStats) Option {
	return func(o *Orchestrator) { o.storeStats = s }
}

type Orchestrator struct {
	catalog     *catalog.Cache
	models      *modelCache
	executor    Executor
	recorder    Recorder
	storeStats  StoreStats
	defaultMode types.Mode
	now         func() time.Time
	newID       func() string
}

// New wires the orchestrator. Model rows are cached for the catalog's TTL.
func New(cat *catalog.Cache, models ModelLoader, exec Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:     cat,
		executor:    exec,
		defaultMode: types.DefaultMode,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.models = newModelCache(models, cat.TTL(), o.now)
	return o
}

// ExecuteAISystem answers prompt with the aiType ensemble. The only errors
// returned are invalid input and missing model configuration; every backend
// failure is folded into the result.
func (o *Orchestrator) ExecuteAISystem(ctx context.Context, aiType types.AIType, prompt string, mode types.Mode) (*types.AISystemResult, error) {
	start := o.now()

	aiType, err := types.ParseAIType(string(aiType))
	if err != nil {
		requests.WithLabelValues("unknown", string(mode), "rejected").Inc()
		return nil, err
	}
	if mode == "" {
		mode = o.defaultMode
	}
	mode, err = types.ParseMode(string(mode))
	if err != nil {
		requests.WithLabelValues(string(aiType), "unknown", "rejected").Inc()
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		requests.WithLabelValues(string(aiType), string(mode), "rejected").Inc()
		return nil, ErrEmptyPrompt
	}

	ctx, span := tracer.Start(ctx, "orchestrator.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("triad.ai_type", string(aiType)),
		attribute.String("triad.mode", string(mode)),
	)

	if err := o.catalog.Refresh(ctx); err != nil {
		log.Warn("catalog refresh failed, continuing with stale catalog", "error", err)
	}

	configs, err := o.models.get(ctx, aiType)
	if err != nil {
		log.Warn("model config reload failed", "ai_type", aiType, "cached_rows", len(configs), "error", err)
	}
	if len(configs) == 0 {
		requests.WithLabelValues(string(aiType), string(mode), "rejected").Inc()
		cfgErr := fmt.Errorf("%w for ai type %q", ErrMissingModelConfig, aiType)
		if err != nil {
			cfgErr = fmt.Errorf("%w: %v", cfgErr, err)
		}
		span.RecordError(cfgErr)
		span.SetStatus(codes.Error, cfgErr.Error())
		return nil, cfgErr
	}

	requestID := o.newID()
	span.SetAttributes(attribute.String("triad.request_id", requestID))

	responses := o.executor.Execute(ctx, aiType, prompt, mode, configs)
	fused := fusion.Fuse(aiType, responses)

	result := &types.AISystemResult{
		RequestID:    requestID,
		AIType:       aiType,
		Mode:         mode,
		Response:     fused.FusedResponse,
		QualityScore: fused.QualityScore,
		Confidence:   aggregateConfidence(fused, responses),
		Fusion:       fused,
		Models:       responses,
	}
	elapsed := o.now().Sub(start)
	result.Latency = elapsed
	result.LatencyMS = elapsed.Milliseconds()

	outcome := "ok"
	if fused.Degraded {
		outcome = "degraded"
		span.SetStatus(codes.Error, "all slots failed")
	}
	requests.WithLabelValues(string(aiType), string(mode), outcome).Inc()
	requestDuration.WithLabelValues(string(aiType)).Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.Float64("triad.quality", fused.QualityScore),
		attribute.Int("triad.primary_slot", fused.SelectedPrimary),
	)

	o.record(prompt, result)

	log.Info("request answered",
		"request_id", requestID, "ai_type", aiType, "mode", mode,
		"primary_slot", fused.SelectedPrimary, "quality", fused.QualityScore,
		"degraded", fused.Degraded, "latency_ms", result.LatencyMS)
	return result, nil
}

func (o *Orchestrator) record(prompt string, result *types.AISystemResult) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(audit.NewEntry(prompt, result, o.now())); err != nil {
		log.Warn("audit entry dropped", "request_id", result.RequestID, "error", err)
	}
}

// aggregateConfidence is the mean routing confidence of the slots that
// answered. A degraded answer has none.
func aggregateConfidence(fused types.FusionResult, responses []types.ModelResponse) float64 {
	if fused.Degraded {
		return 0
	}
	total, n := 0.0, 0
	for _, r := range responses {
		if _, used := fused.ContributionWeights[r.Slot]; !used {
			continue
		}
		total += r.Routing.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// RefreshAllCaches invalidates the model-config and catalog caches and
// reloads the catalog. A reload error is returned; the previous catalog
// keeps serving.
func (o *Orchestrator) RefreshAllCaches(ctx context.Context) error {
	o.models.invalidate()
	o.catalog.ForceRefresh()

	var errs []error
	if err := o.catalog.Refresh(ctx); err != nil {
		errs = append(errs, fmt.Errorf("catalog: %w", err))
	}
	if _, err := o.models.get(ctx, types.AITypeBrain); err != nil {
		errs = append(errs, fmt.Errorf("model configs: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("cache refresh incomplete", "error", err)
		return err
	}
	log.Info("caches refreshed", "catalog", o.catalog.Snapshot().Counts())
	return nil
}

type Stats struct {
	Catalog      catalog.Counts       `json:"catalog"`
	CatalogTTL   string               `json:"catalog_ttl"`
	ModelConfigs map[types.AIType]int `json:"model_configs"`
	Store        *store.Stats         `json:"store,omitempty"`
}

func (o *Orchestrator) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		Catalog:      o.catalog.Snapshot().Counts(),
		CatalogTTL:   o.catalog.TTL().String(),
		ModelConfigs: o.models.counts(),
	}
	if o.storeStats != nil {
		s, err := o.storeStats.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("store stats: %w", err)
		}
		st.Store = s
	}
	return st, nil
}
