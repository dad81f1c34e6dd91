// Package router picks the nodes, stacks and domains of the routing catalog
// that best match a prompt, and collects the memories attached to them.
package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alucardeht/triad/internal/catalog"
	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/types"
)

var log = logger.ForComponent("router")

const (
	DefaultMemoryLimit = 5
	// confidenceScale is the average domain score that maps to full confidence.
	confidenceScale = 5.0
)

type MemoryFetcher interface {
	FetchMemories(ctx context.Context, domainIDs []string, limit int, now time.Time) ([]types.Memory, error)
}

type Router struct {
	cache       *catalog.Cache
	memories    MemoryFetcher
	memoryLimit int
	now         func() time.Time
	timeouts    TimeoutConfig
}

type Option func(*Router)

func WithMemoryLimit(limit int) Option {
	return func(r *Router) {
		if limit >= 0 {
			r.memoryLimit = limit
		}
	}
}

func WithTimeouts(t TimeoutConfig) Option {
	return func(r *Router) { r.timeouts = t }
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRouter builds a router over cache. memories may be nil, in which case
// routes carry no memories.
func NewRouter(cache *catalog.Cache, memories MemoryFetcher, opts ...Option) *Router {
	r := &Router{
		cache:       cache,
		memories:    memories,
		memoryLimit: DefaultMemoryLimit,
		now:         time.Now,
		timeouts:    DefaultTimeoutConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route never fails: a failed refresh serves the previous snapshot and a
// failed memory lookup yields no memories.
func (r *Router) Route(ctx context.Context, aiType types.AIType, slot int, text string, mode types.Mode) *types.RoutingResult {
	refreshCtx, cancel := WithTimeout(ctx, r.timeouts.Refresh)
	if err := r.cache.Refresh(refreshCtx); err != nil {
		log.Warn("routing with stale catalog", "ai_type", aiType, "slot", slot, "error", err)
	}
	cancel()

	snap := r.cache.Snapshot()
	limits := types.LimitsFor(mode)
	result := &types.RoutingResult{
		AIType:    aiType,
		Slot:      slot,
		Mode:      mode,
		Memories:  []types.Memory{},
		Reasoning: []string{},
	}

	nodes, fallback := selectNodes(snap, aiType, slot, text, limits.Nodes)
	if fallback {
		routeFallbacks.WithLabelValues(string(aiType)).Inc()
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("no %s node bound to slot %d, considering every %s node", aiType, slot, aiType))
	}
	for _, n := range nodes {
		result.Reasoning = append(result.Reasoning, fmt.Sprintf("node %q scored %.2f", n.Label, n.Score))
	}

	stacks := SelectStacks(snap, nodes, text, limits.Stacks)
	for _, s := range stacks {
		result.Reasoning = append(result.Reasoning, fmt.Sprintf("stack %q under %q scored %.2f", s.Label, s.NodeLabel, s.Score))
	}

	domains := SelectDomains(snap, stacks, text, limits.Domains)
	for _, d := range domains {
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("domain %q (%s > %s) scored %.2f", d.Label, d.NodeLabel, d.StackLabel, d.Score))
	}

	result.Nodes = nodes
	result.Stacks = stacks
	result.Domains = domains
	result.Memories = r.fetchMemories(ctx, result.DomainIDs())
	if len(result.Memories) > 0 {
		result.Reasoning = append(result.Reasoning, fmt.Sprintf("attached %d memories", len(result.Memories)))
	}

	result.Confidence = Confidence(domains)
	routeConfidence.WithLabelValues(string(aiType)).Observe(result.Confidence)
	return result
}

func (r *Router) fetchMemories(ctx context.Context, domainIDs []string) []types.Memory {
	if r.memories == nil || r.memoryLimit == 0 {
		return []types.Memory{}
	}

	memCtx, cancel := WithTimeout(ctx, r.timeouts.Memory)
	defer cancel()

	mems, err := r.memories.FetchMemories(memCtx, domainIDs, r.memoryLimit, r.now())
	if err != nil {
		memoryErrors.Inc()
		log.Warn("memory lookup failed", "domains", len(domainIDs), "error", err)
		return []types.Memory{}
	}
	if len(mems) > r.memoryLimit {
		mems = mems[:r.memoryLimit]
	}
	return mems
}

// Confidence is the mean domain score over the scale, capped at 1. No
// domains means no confidence.
func Confidence(domains []types.ScoredDomain) float64 {
	if len(domains) == 0 {
		return 0
	}
	var total float64
	for _, d := range domains {
		total += d.Score
	}
	return min(1, total/float64(len(domains))/confidenceScale)
}

// SelectNodes returns at most limit nodes of aiType bound to slot, best
// first. When no node is bound to slot, every node of aiType competes.
func SelectNodes(snap *catalog.Snapshot, aiType types.AIType, slot int, text string, limit int) []types.ScoredNode {
	nodes, _ := selectNodes(snap, aiType, slot, text, limit)
	return nodes
}

// selectNodes considers only nodes bound to slot. Unbound nodes are not
// wildcards: they compete only on the fallback path, when no node of
// aiType is bound to this slot.
func selectNodes(snap *catalog.Snapshot, aiType types.AIType, slot int, text string, limit int) ([]types.ScoredNode, bool) {
	var candidates []types.Node
	for _, n := range snap.NodesForSlot(slot) {
		if n.AIType == aiType {
			candidates = append(candidates, n)
		}
	}
	fallback := false
	if len(candidates) == 0 {
		candidates = snap.NodesForAIType(aiType)
		fallback = true
	}

	in := newInput(text)
	scored := make([]types.ScoredNode, 0, len(candidates))
	for _, n := range candidates {
		scored = append(scored, types.ScoredNode{Node: n, Score: in.rank(n.Label, n.Keywords, n.Priority)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return better(scored[i].Score, scored[i].ID, scored[j].Score, scored[j].ID)
	})
	return truncate(scored, limit), fallback
}

// SelectStacks keeps the best limit stacks of each node, in node order.
func SelectStacks(snap *catalog.Snapshot, nodes []types.ScoredNode, text string, limit int) []types.ScoredStack {
	in := newInput(text)
	out := []types.ScoredStack{}
	for _, n := range nodes {
		children := snap.StacksForNode(n.ID)
		scored := make([]types.ScoredStack, 0, len(children))
		for _, s := range children {
			scored = append(scored, types.ScoredStack{
				Stack:     s,
				Score:     in.rank(s.Label, s.Keywords, s.Priority),
				NodeLabel: n.Label,
			})
		}
		sort.SliceStable(scored, func(i, j int) bool {
			return better(scored[i].Score, scored[i].ID, scored[j].Score, scored[j].ID)
		})
		out = append(out, truncate(scored, limit)...)
	}
	return out
}

// SelectDomains keeps the best limit domains of each stack, in stack order,
// annotated with their parent labels.
func SelectDomains(snap *catalog.Snapshot, stacks []types.ScoredStack, text string, limit int) []types.ScoredDomain {
	in := newInput(text)
	out := []types.ScoredDomain{}
	for _, s := range stacks {
		children := snap.DomainsForStack(s.ID)
		scored := make([]types.ScoredDomain, 0, len(children))
		for _, d := range children {
			scored = append(scored, types.ScoredDomain{
				Domain:     d,
				Score:      in.rank(d.Label, d.Keywords, d.Priority),
				StackLabel: s.Label,
				NodeID:     s.NodeID,
				NodeLabel:  s.NodeLabel,
			})
		}
		sort.SliceStable(scored, func(i, j int) bool {
			return better(scored[i].Score, scored[i].ID, scored[j].Score, scored[j].ID)
		})
		out = append(out, truncate(scored, limit)...)
	}
	return out
}

// input caches the folded text and its tokens across candidates.
type input struct {
	text   string
	tokens []string
}

func newInput(text string) input {
	return input{text: lower(text), tokens: Tokenize(text)}
}

// rank adds priority/100 to the keyword score so priority only separates
// candidates whose keyword scores are close.
func (in input) rank(label string, keywords []string, priority int) float64 {
	return float64(scoreTokens(in.text, in.tokens, label, keywords)) + float64(priority)/100
}

// better orders by score descending, then identifier ascending.
func better(scoreA float64, idA string, scoreB float64, idB string) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	return idA < idB
}

func truncate[T any](items []T, limit int) []T {
	if limit < 0 {
		limit = 0
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
