package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/triad/internal/seed"
	"github.com/alucardeht/triad/internal/types"
)

const testBundle = `
models:
  - ai_type: brain
    slot: 1
    provider: static
    model: echo
    timeout: 1500ms
  - ai_type: brain
    slot: 2
    provider: openai
    model: gpt-4o-mini
    temperature: 0.3
nodes:
  - id: n-db
    ai_type: brain
    model_slot: 1
    label: database
    keywords: [sql, index]
    priority: 40
    stacks:
      - id: s-pg
        label: postgres
        keywords: [vacuum]
        domains:
          - id: d-idx
            label: indexing
            keywords: [btree]
            system_prompt: You tune indexes.
          - id: d-off
            label: retired
            active: false
  - id: n-any
    ai_type: brain
    label: general
memories:
  - id: m-idx
    domain: d-idx
    content: Foreign keys need indexes.
    relevance: 0.9
  - id: m-shared
    content: Prefer boring technology.
    relevance: 0.5
  - id: m-low
    domain: d-idx
    content: Low relevance note.
    relevance: 0.1
  - id: m-old
    content: Expired advice.
    relevance: 1.0
    expires_at: 2001-01-01T00:00:00Z
`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "triad.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func importBundle(t *testing.T, s *Store, yamlText string, prune bool) *ImportResult {
	t.Helper()
	b, err := seed.Parse(strings.NewReader(yamlText))
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	res, err := s.Import(context.Background(), b, prune)
	require.NoError(t, err)
	return res
}

func TestImportAndLoadCatalog(t *testing.T) {
	s := openTestStore(t)
	res := importBundle(t, s, testBundle, false)
	assert.Equal(t, 2, res.Nodes)
	assert.Equal(t, 2, res.Domains)
	assert.Equal(t, 4, res.Memories)

	cat, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, cat.Nodes, 2)
	require.Len(t, cat.Stacks, 1)
	require.Len(t, cat.Domains, 1, "inactive domain must be hidden")

	db := cat.Nodes[1]
	assert.Equal(t, "n-db", db.ID)
	require.NotNil(t, db.ModelSlot)
	assert.Equal(t, 1, *db.ModelSlot)
	assert.Equal(t, []string{"sql", "index"}, db.Keywords)
	assert.Nil(t, cat.Nodes[0].ModelSlot)
	assert.Equal(t, "You tune indexes.", cat.Domains[0].SystemPrompt)
}

func TestImportIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	importBundle(t, s, testBundle, false)
	importBundle(t, s, testBundle, false)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Nodes)
	assert.Equal(t, 4, st.Memories)
	assert.Equal(t, 2, st.ModelConfigs)
}

func TestImportPruneRetiresMissingRows(t *testing.T) {
	s := openTestStore(t)
	importBundle(t, s, testBundle, false)

	res := importBundle(t, s, `
nodes:
  - id: n-any
    ai_type: brain
    label: general
`, true)
	assert.Positive(t, res.Retired)

	cat, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, cat.Nodes, 1)
	assert.Equal(t, "n-any", cat.Nodes[0].ID)
	assert.Empty(t, cat.Stacks)
	assert.Empty(t, cat.Domains)

	configs, err := s.LoadModelConfigs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestFetchMemoriesFiltersAndOrders(t *testing.T) {
	s := openTestStore(t)
	importBundle(t, s, testBundle, false)
	ctx := context.Background()
	now := time.Now()

	mems, err := s.FetchMemories(ctx, []string{"d-idx"}, 5, now)
	require.NoError(t, err)
	ids := make([]string, len(mems))
	for i, m := range mems {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"m-idx", "m-shared", "m-low"}, ids)

	mems, err = s.FetchMemories(ctx, []string{"d-idx"}, 2, now)
	require.NoError(t, err)
	assert.Len(t, mems, 2)

	mems, err = s.FetchMemories(ctx, nil, 5, now)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "m-shared", mems[0].ID)
	assert.Nil(t, mems[0].DomainID)

	mems, err = s.FetchMemories(ctx, []string{"d-idx"}, 0, now)
	require.NoError(t, err)
	assert.Empty(t, mems)
}

func TestIncrementMemoryUsageBreaksTies(t *testing.T) {
	s := openTestStore(t)
	importBundle(t, s, `
memories:
  - id: m-a
    content: first
    relevance: 0.5
  - id: m-b
    content: second
    relevance: 0.5
`, false)
	ctx := context.Background()

	require.NoError(t, s.IncrementMemoryUsage(ctx, []string{"m-b", "m-b"}))

	mems, err := s.FetchMemories(ctx, nil, 5, time.Now())
	require.NoError(t, err)
	require.Len(t, mems, 2)
	assert.Equal(t, "m-b", mems[0].ID)
	assert.Equal(t, 2, mems[0].UsageCount)

	// Re-import must not reset usage.
	importBundle(t, s, `
memories:
  - id: m-b
    content: second, edited
    relevance: 0.5
`, false)
	mems, err = s.FetchMemories(ctx, nil, 5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, mems[0].UsageCount)
	assert.Equal(t, "second, edited", mems[0].Content)
}

func TestLoadModelConfigs(t *testing.T) {
	s := openTestStore(t)
	importBundle(t, s, testBundle, false)

	configs, err := s.LoadModelConfigs(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "brain-1", configs[0].ID)
	assert.Equal(t, types.AITypeBrain, configs[0].AIType)
	assert.Equal(t, 1500*time.Millisecond, configs[0].Timeout)
	assert.InDelta(t, 0.3, configs[1].Temperature, 0.0001)
}

func TestAuditLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertRoutingLog(ctx, &RoutingLog{
		RequestID:  "req-1",
		AIType:     "brain",
		Mode:       "standard",
		Slot:       2,
		NodeIDs:    []string{"n-db"},
		DomainIDs:  []string{"d-idx"},
		Confidence: 0.4,
		Reasoning:  []string{"node database scored 7"},
	}))
	require.NoError(t, s.InsertResponseLog(ctx, &ResponseLog{
		RequestID:   "req-1",
		AIType:      "brain",
		Mode:        "standard",
		Prompt:      "why is my query slow",
		Response:    "add an index",
		Quality:     0.8,
		PrimarySlot: 2,
		Slots:       []SlotOutcome{{Slot: 2, Provider: "static", Success: true}},
	}))
	// Duplicate response rows are ignored.
	require.NoError(t, s.InsertResponseLog(ctx, &ResponseLog{RequestID: "req-1", AIType: "brain", Mode: "standard"}))

	logs, err := s.RoutingLogs(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, []string{"n-db"}, logs[0].NodeIDs)
	assert.Equal(t, []string{}, logs[0].StackIDs)
	assert.Equal(t, []string{"node database scored 7"}, logs[0].Reasoning)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.RoutingLogs)
	assert.Equal(t, 1, st.ResponseLogs)
}

func TestDecodeKeywordsAcceptsCommaLists(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, decodeKeywords(`["a","b"]`))
	assert.Equal(t, []string{"a", "b"}, decodeKeywords("a, b,"))
	assert.Equal(t, []string{}, decodeKeywords(""))
	assert.Equal(t, []string{}, decodeKeywords("null"))
}
