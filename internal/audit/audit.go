// Package audit persists routing and response records off the request path.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/store"
	"github.com/alucardeht/triad/internal/types"
)

var log = logger.ForComponent("audit")

var (
	ErrQueueFull = errors.New("audit queue full")
	ErrClosed    = errors.New("audit recorder closed")
)

const (
	DefaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// Sink is the persistence surface the worker writes to.
type Sink interface {
	InsertRoutingLog(ctx context.Context, l *store.RoutingLog) error
	InsertResponseLog(ctx context.Context, l *store.ResponseLog) error
	IncrementMemoryUsage(ctx context.Context, ids []string) error
}

// Entry is everything recorded for one request.
type Entry struct {
	Response  store.ResponseLog
	Routing   []store.RoutingLog
	MemoryIDs []string
}

// NewEntry flattens a finished request into its audit rows. Memory usage is
// only counted for slots whose model answered.
func NewEntry(prompt string, res *types.AISystemResult, at time.Time) Entry {
	e := Entry{
		Response: store.ResponseLog{
			RequestID:   res.RequestID,
			AIType:      string(res.AIType),
			Mode:        string(res.Mode),
			Prompt:      prompt,
			Response:    res.Response,
			Quality:     res.QualityScore,
			Coherence:   res.Fusion.Coherence,
			PrimarySlot: res.Fusion.SelectedPrimary,
			Degraded:    res.Fusion.Degraded,
			LatencyMS:   res.LatencyMS,
			CreatedAt:   at,
		},
	}

	seen := map[string]bool{}
	for _, m := range res.Models {
		e.Response.Slots = append(e.Response.Slots, store.SlotOutcome{
			Slot:      m.Slot,
			Provider:  m.Provider,
			Model:     m.Model,
			Success:   m.Success,
			Error:     m.Error,
			LatencyMS: m.LatencyMS,
		})

		r := m.Routing
		rl := store.RoutingLog{
			RequestID:  res.RequestID,
			AIType:     string(res.AIType),
			Mode:       string(res.Mode),
			Slot:       m.Slot,
			DomainIDs:  r.DomainIDs(),
			MemoryIDs:  r.MemoryIDs(),
			Confidence: r.Confidence,
			Reasoning:  r.Reasoning,
			CreatedAt:  at,
		}
		for _, n := range r.Nodes {
			rl.NodeIDs = append(rl.NodeIDs, n.ID)
		}
		for _, s := range r.Stacks {
			rl.StackIDs = append(rl.StackIDs, s.ID)
		}
		e.Routing = append(e.Routing, rl)

		if !m.Success {
			continue
		}
		for _, id := range rl.MemoryIDs {
			if !seen[id] {
				seen[id] = true
				e.MemoryIDs = append(e.MemoryIDs, id)
			}
		}
	}
	return e
}

// Recorder queues entries and writes them from a single goroutine.
type Recorder struct {
	sink  Sink
	queue chan Entry
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewRecorder(sink Sink, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		sink:  sink,
		queue: make(chan Entry, queueSize),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an entry without blocking.
func (r *Recorder) Record(e Entry) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrClosed
	}
	select {
	case r.queue <- e:
		queueDepth.Set(float64(len(r.queue)))
		return nil
	default:
		dropped.Inc()
		return ErrQueueFull
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		log.Warn("audit drain interrupted", "pending", len(r.queue))
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.write(e)
		queueDepth.Set(float64(len(r.queue)))
	}
}

func (r *Recorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	for i := range e.Routing {
		if err := r.sink.InsertRoutingLog(ctx, &e.Routing[i]); err != nil {
			writes.WithLabelValues("routing", "error").Inc()
			log.Warn("routing log write failed", "request_id", e.Response.RequestID, "slot", e.Routing[i].Slot, "error", err)
			continue
		}
		writes.WithLabelValues("routing", "ok").Inc()
	}

	if err := r.sink.InsertResponseLog(ctx, &e.Response); err != nil {
		writes.WithLabelValues("response", "error").Inc()
		log.Warn("response log write failed", "request_id", e.Response.RequestID, "error", err)
	} else {
		writes.WithLabelValues("response", "ok").Inc()
	}

	if len(e.MemoryIDs) == 0 {
		return
	}
	if err := r.sink.IncrementMemoryUsage(ctx, e.MemoryIDs); err != nil {
		writes.WithLabelValues("memory_usage", "error").Inc()
		log.Warn("memory usage update failed", "request_id", e.Response.RequestID, "error", err)
		return
	}
	writes.WithLabelValues("memory_usage", "ok").Inc()
}
