package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/triad/internal/seed"
	"github.com/alucardeht/triad/internal/store"
)

func TestDebouncerCoalescesByPath(t *testing.T) {
	var mu sync.Mutex
	var batches [][]FileEvent
	d := NewDebouncer(time.Hour, 10, func(b []FileEvent) {
		mu.Lock()
		batches = append(batches, b)
		mu.Unlock()
	})

	d.Add(FileEvent{Path: "b.yaml", Type: EventCreate})
	d.Add(FileEvent{Path: "a.yaml", Type: EventCreate})
	d.Add(FileEvent{Path: "b.yaml", Type: EventModify})
	assert.Equal(t, 2, d.Pending())

	d.Flush()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "a.yaml", batches[0][0].Path)
	assert.Equal(t, EventModify, batches[0][1].Type)
	assert.Zero(t, d.Pending())

	d.Flush()
	assert.Len(t, batches, 1, "empty flush delivers nothing")
}

func TestDebouncerWindowAndBatchLimit(t *testing.T) {
	var flushed atomic.Int32
	d := NewDebouncer(20*time.Millisecond, 3, func(b []FileEvent) { flushed.Add(int32(len(b))) })

	d.Add(FileEvent{Path: "1"})
	require.Eventually(t, func() bool { return flushed.Load() == 1 }, time.Second, 5*time.Millisecond)

	d2 := NewDebouncer(time.Hour, 2, func(b []FileEvent) { flushed.Add(int32(len(b))) })
	d2.Add(FileEvent{Path: "x"})
	d2.Add(FileEvent{Path: "y"})
	assert.EqualValues(t, 3, flushed.Load())
}

func TestDebouncerStop(t *testing.T) {
	var got []FileEvent
	d := NewDebouncer(time.Hour, 10, func(b []FileEvent) { got = append(got, b...) })
	d.Add(FileEvent{Path: "pending"})
	d.Stop()
	d.Add(FileEvent{Path: "late"})
	d.Stop()

	require.Len(t, got, 1)
	assert.Equal(t, "pending", got[0].Path)
}

type countingReloader struct {
	calls atomic.Int32
	err   error
}

func (r *countingReloader) Reload(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestWatcherReloadsOnSeedChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "brain"), 0755))

	cfg := DefaultConfig()
	cfg.DebounceWindow = 20 * time.Millisecond
	r := &countingReloader{}
	w, err := New(root, cfg, r)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.yaml"), []byte("x"), 0644))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, r.calls.Load(), "non-seed files do not trigger a reload")

	require.NoError(t, os.WriteFile(filepath.Join(root, "brain", "nodes.yaml"), []byte("nodes: []"), 0644))
	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	sub := filepath.Join(root, "heart")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(50 * time.Millisecond)
	before := r.calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(sub, "code.yml"), []byte("nodes: []"), 0644))
	require.Eventually(t, func() bool { return r.calls.Load() > before }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherStartMissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), DefaultConfig(), &countingReloader{})
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
}

type refresher struct{ calls int }

func (r *refresher) RefreshAllCaches(context.Context) error {
	r.calls++
	return nil
}

const seedV1 = `
models:
  - ai_type: brain
    slot: 1
    provider: static
    model: echo
nodes:
  - id: n-db
    ai_type: brain
    label: database
    stacks:
      - id: s-pg
        label: postgres
        domains:
          - id: d-idx
            label: indexing
  - id: n-old
    ai_type: brain
    label: legacy
`

const seedV2 = `
models:
  - ai_type: brain
    slot: 1
    provider: static
    model: echo
nodes:
  - id: n-db
    ai_type: brain
    label: database
    stacks:
      - id: s-pg
        label: postgres
        domains:
          - id: d-idx
            label: indexing
`

func TestSeedReloader(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(t.TempDir(), "triad.db"))
	require.NoError(t, err)
	defer s.Close()

	ref := &refresher{}
	r := &SeedReloader{Dir: dir, Include: DefaultConfig().Include, Store: s, Caches: ref}
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(seedV1), 0644))
	require.NoError(t, r.Reload(ctx))
	data, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, data.Nodes, 2)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(seedV2), 0644))
	require.NoError(t, r.Reload(ctx))
	data, err = s.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, data.Nodes, 1)
	assert.Equal(t, "n-db", data.Nodes[0].ID)
	assert.Equal(t, 2, ref.calls)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("nodes: [{label: "), 0644))
	err = r.Reload(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, ref.calls)
	data, err = s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, data.Nodes, 1, "a broken seed leaves the catalog untouched")
}

func TestSeedReloaderImportError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(seedV2), 0644))

	ref := &refresher{}
	r := &SeedReloader{Dir: dir, Store: failingImporter{}, Caches: ref}
	assert.ErrorContains(t, r.Reload(context.Background()), "import seed")
	assert.Zero(t, ref.calls)
}

type failingImporter struct{}

func (failingImporter) Import(context.Context, *seed.Bundle, bool) (*store.ImportResult, error) {
	return nil, errors.New("read-only database")
}
