package router

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/triad/internal/catalog"
	"github.com/alucardeht/triad/internal/types"
)

type staticLoader struct {
	data *types.CatalogData
	err  error
}

func (l staticLoader) LoadCatalog(context.Context) (*types.CatalogData, error) {
	return l.data, l.err
}

type recordingMemories struct {
	gotDomains []string
	gotLimit   int
	mems       []types.Memory
	err        error
}

func (m *recordingMemories) FetchMemories(_ context.Context, domainIDs []string, limit int, _ time.Time) ([]types.Memory, error) {
	m.gotDomains = domainIDs
	m.gotLimit = limit
	return m.mems, m.err
}

func intp(n int) *int { return &n }

// wideCatalog has three brain nodes per slot, three stacks per node and
// three domains per stack so every mode limit can bind.
func wideCatalog() *types.CatalogData {
	data := &types.CatalogData{}
	for s := 1; s <= 3; s++ {
		for n := 0; n < 3; n++ {
			nodeID := fmt.Sprintf("n%d%d", s, n)
			data.Nodes = append(data.Nodes, types.Node{
				ID: nodeID, AIType: types.AITypeBrain, ModelSlot: intp(s),
				Label: "node" + nodeID, Keywords: []string{"database"}, Active: true,
			})
			for k := 0; k < 3; k++ {
				stackID := fmt.Sprintf("%s-s%d", nodeID, k)
				data.Stacks = append(data.Stacks, types.Stack{
					ID: stackID, NodeID: nodeID, Label: "stack" + stackID, Keywords: []string{"index"}, Active: true,
				})
				for d := 0; d < 3; d++ {
					data.Domains = append(data.Domains, types.Domain{
						ID: fmt.Sprintf("%s-d%d", stackID, d), StackID: stackID,
						Label: "domain", Keywords: []string{"btree"}, Active: true,
					})
				}
			}
		}
	}
	return data
}

func newTestRouter(t *testing.T, data *types.CatalogData, mem MemoryFetcher, opts ...Option) *Router {
	t.Helper()
	cache := catalog.New(staticLoader{data: data})
	require.NoError(t, cache.Refresh(context.Background()))
	return NewRouter(cache, mem, opts...)
}

func TestRouteRespectsModeLimits(t *testing.T) {
	r := newTestRouter(t, wideCatalog(), nil)
	text := "database index btree domain tuning"

	for _, mode := range []types.Mode{types.ModeStandard, types.ModeProfessional, types.ModeAdvanced} {
		limits := types.LimitsFor(mode)
		for _, slot := range types.Slots {
			t.Run(fmt.Sprintf("%s/slot%d", mode, slot), func(t *testing.T) {
				res := r.Route(context.Background(), types.AITypeBrain, slot, text, mode)
				assert.LessOrEqual(t, len(res.Nodes), limits.Nodes)
				assert.LessOrEqual(t, len(res.Stacks), limits.Stacks*len(res.Nodes))
				assert.LessOrEqual(t, len(res.Domains), limits.Domains*len(res.Stacks))

				// The wide catalog saturates every limit.
				assert.Len(t, res.Nodes, limits.Nodes)
				assert.Len(t, res.Stacks, limits.Stacks*limits.Nodes)
				assert.Len(t, res.Domains, limits.Domains*limits.Stacks*limits.Nodes)
				for _, n := range res.Nodes {
					assert.Equal(t, slot, *n.ModelSlot)
				}
			})
		}
	}
}

func TestModeLimitsAreFixed(t *testing.T) {
	assert.Equal(t, types.ModeLimits{Nodes: 2, Stacks: 1, Domains: 1}, types.LimitsFor(types.ModeStandard))
	assert.Equal(t, types.ModeLimits{Nodes: 2, Stacks: 2, Domains: 2}, types.LimitsFor(types.ModeProfessional))
	assert.Equal(t, types.ModeLimits{Nodes: 3, Stacks: 3, Domains: 3}, types.LimitsFor(types.ModeAdvanced))
}

func TestSelectNodesFallsBackWithoutSlotAffinity(t *testing.T) {
	data := &types.CatalogData{Nodes: []types.Node{
		{ID: "a", AIType: types.AITypeHeart, ModelSlot: intp(1), Label: "empathy", Keywords: []string{"feel"}},
		{ID: "b", AIType: types.AITypeHeart, Label: "grief", Keywords: []string{"loss"}, Priority: 50},
		{ID: "c", AIType: types.AITypeHeart, ModelSlot: intp(2), Label: "joy"},
		{ID: "z", AIType: types.AITypeBrain, ModelSlot: intp(3), Label: "logic"},
	}}
	snap := catalog.NewSnapshot(data, time.Now())
	text := "coping with loss and grief"

	got := SelectNodes(snap, types.AITypeHeart, 3, text, 2)

	// Expected: the unfiltered top-2 heart nodes.
	all := snap.NodesForAIType(types.AITypeHeart)
	want := []string{"b", "a"}
	require.Len(t, all, 3)
	ids := make([]string, len(got))
	for i, n := range got {
		ids[i] = n.ID
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("fallback selection mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 5+2+0.5, got[0].Score, 1e-9)

	// Slot 1 has a bound node, so the unbound "b" is left out even though
	// it scores higher.
	got = SelectNodes(snap, types.AITypeHeart, 1, text, 2)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got = SelectNodes(snap, types.AITypeHeart, 2, text, 2)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestSelectNodesTieBreaksByID(t *testing.T) {
	data := &types.CatalogData{Nodes: []types.Node{
		{ID: "n-c", AIType: types.AITypeBrain, Label: "alpha"},
		{ID: "n-a", AIType: types.AITypeBrain, Label: "alpha"},
		{ID: "n-b", AIType: types.AITypeBrain, Label: "alpha"},
	}}
	snap := catalog.NewSnapshot(data, time.Now())

	got := SelectNodes(snap, types.AITypeBrain, 1, "alpha", 3)
	require.Len(t, got, 3)
	assert.Equal(t, "n-a", got[0].ID)
	assert.Equal(t, "n-b", got[1].ID)
	assert.Equal(t, "n-c", got[2].ID)
}

func TestPriorityBreaksEqualScores(t *testing.T) {
	data := &types.CatalogData{Nodes: []types.Node{
		{ID: "a", AIType: types.AITypeBrain, Label: "alpha", Priority: 10},
		{ID: "b", AIType: types.AITypeBrain, Label: "alpha", Priority: 90},
	}}
	snap := catalog.NewSnapshot(data, time.Now())
	got := SelectNodes(snap, types.AITypeBrain, 1, "alpha", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestRouteAnnotatesDomainsAndConfidence(t *testing.T) {
	data := &types.CatalogData{
		Nodes:  []types.Node{{ID: "n1", AIType: types.AITypeBrain, ModelSlot: intp(1), Label: "database"}},
		Stacks: []types.Stack{{ID: "s1", NodeID: "n1", Label: "postgres"}},
		Domains: []types.Domain{
			{ID: "d1", StackID: "s1", Label: "indexing", Keywords: []string{"btree", "foreign"}},
		},
	}
	mem := &recordingMemories{mems: []types.Memory{{ID: "m1", Content: "x"}}}
	r := newTestRouter(t, data, mem, WithMemoryLimit(3))

	res := r.Route(context.Background(), types.AITypeBrain, 1, "indexing foreign keys in postgres database", types.ModeStandard)

	require.Len(t, res.Domains, 1)
	d := res.Domains[0]
	assert.Equal(t, "postgres", d.StackLabel)
	assert.Equal(t, "database", d.NodeLabel)
	assert.Equal(t, "n1", d.NodeID)
	assert.InDelta(t, 7, d.Score, 1e-9)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Equal(t, []string{"database > postgres > indexing"}, res.Path())

	assert.Equal(t, []string{"d1"}, mem.gotDomains)
	assert.Equal(t, 3, mem.gotLimit)
	assert.Equal(t, []string{"m1"}, res.MemoryIDs())
	assert.NotEmpty(t, res.Reasoning)
}

func TestRouteSurvivesMemoryAndCatalogFailures(t *testing.T) {
	cache := catalog.New(staticLoader{err: errors.New("no such table: nodes")})
	mem := &recordingMemories{err: errors.New("disk I/O error")}
	r := NewRouter(cache, mem)

	res := r.Route(context.Background(), types.AITypeSystem, 2, "cpu at 95 percent", types.ModeAdvanced)
	require.NotNil(t, res)
	assert.Empty(t, res.Nodes)
	assert.Empty(t, res.Domains)
	assert.NotNil(t, res.Memories)
	assert.Empty(t, res.Memories)
	assert.Zero(t, res.Confidence)
}

func TestConfidenceCapsAtOne(t *testing.T) {
	assert.Zero(t, Confidence(nil))
	assert.InDelta(t, 0.5, Confidence([]types.ScoredDomain{{Score: 2}, {Score: 3}}), 1e-9)
	assert.InDelta(t, 1.0, Confidence([]types.ScoredDomain{{Score: 12}}), 1e-9)
}
