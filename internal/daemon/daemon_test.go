package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/triad/internal/catalog"
	"github.com/alucardeht/triad/internal/orchestrator"
	"github.com/alucardeht/triad/internal/types"
	"github.com/alucardeht/triad/pkg/protocol"
)

type fakeService struct {
	refreshErr error
	refreshed  int
	executed   atomic.Int32
}

func (f *fakeService) ExecuteAISystem(_ context.Context, aiType types.AIType, prompt string, mode types.Mode) (*types.AISystemResult, error) {
	f.executed.Add(1)
	t, err := types.ParseAIType(string(aiType))
	if err != nil {
		return nil, err
	}
	if t == types.AITypeSystem {
		return nil, fmt.Errorf("%w for ai type %q", orchestrator.ErrMissingModelConfig, t)
	}
	if prompt == "boom" {
		return nil, errors.New("store exploded")
	}
	return &types.AISystemResult{
		RequestID:    "req-1",
		AIType:       t,
		Mode:         mode,
		Response:     "echo: " + prompt,
		QualityScore: 0.8,
		Fusion: types.FusionResult{
			SelectedPrimary:     2,
			ContributionWeights: map[int]float64{1: 0.4, 2: 0.6},
		},
	}, nil
}

func (f *fakeService) RefreshAllCaches(context.Context) error {
	f.refreshed++
	return f.refreshErr
}

func (f *fakeService) Stats(context.Context) (*orchestrator.Stats, error) {
	return &orchestrator.Stats{
		Catalog:      catalog.Counts{Nodes: 4, Stacks: 6, Domains: 9},
		CatalogTTL:   "1m0s",
		ModelConfigs: map[types.AIType]int{types.AITypeBrain: 3},
	}, nil
}

func pipe(t *testing.T, svc Service) *Client {
	t.Helper()
	ctx := context.Background()
	d := New(svc, filepath.Join(t.TempDir(), "unused.sock"))

	server, client := net.Pipe()
	rpc := d.ServeConn(ctx, server)
	c := NewClient(ctx, client)
	t.Cleanup(func() {
		c.Close()
		rpc.Close()
	})
	return c
}

func TestExecuteOverRPC(t *testing.T) {
	c := pipe(t, &fakeService{})
	ctx := context.Background()

	res, err := c.Execute(ctx, protocol.ExecuteParams{AIType: "brain", Prompt: "hi", Mode: "advanced"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", res.Response)
	assert.Equal(t, types.ModeAdvanced, res.Mode)
	assert.Equal(t, 2, res.Fusion.SelectedPrimary)
	assert.InDelta(t, 0.6, res.Fusion.ContributionWeights[2], 1e-9)
}

func TestExecuteErrorCodes(t *testing.T) {
	c := pipe(t, &fakeService{})
	ctx := context.Background()

	tests := []struct {
		name   string
		params protocol.ExecuteParams
		code   int64
	}{
		{"unknown ai type", protocol.ExecuteParams{AIType: "soul", Prompt: "x"}, jsonrpc2.CodeInvalidParams},
		{"missing config", protocol.ExecuteParams{AIType: "system", Prompt: "x"}, jsonrpc2.CodeInvalidRequest},
		{"internal", protocol.ExecuteParams{AIType: "heart", Prompt: "boom"}, jsonrpc2.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Execute(ctx, tt.params)
			var rpcErr *jsonrpc2.Error
			require.ErrorAs(t, err, &rpcErr)
			assert.Equal(t, tt.code, rpcErr.Code)
		})
	}
}

func TestExecuteValidatesParams(t *testing.T) {
	svc := &fakeService{}
	c := pipe(t, svc)
	ctx := context.Background()

	tests := []struct {
		name   string
		params protocol.ExecuteParams
		msg    string
	}{
		{"empty prompt", protocol.ExecuteParams{AIType: "brain"}, "prompt is required"},
		{"missing ai type", protocol.ExecuteParams{Prompt: "x"}, "ai_type is required"},
		{"bad mode", protocol.ExecuteParams{AIType: "brain", Prompt: "x", Mode: "turbo"}, "mode must be one of: standard professional advanced"},
		{"unknown ai type", protocol.ExecuteParams{AIType: "soul", Prompt: "x"}, "ai_type must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Execute(ctx, tt.params)
			var rpcErr *jsonrpc2.Error
			require.ErrorAs(t, err, &rpcErr)
			assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
			assert.Contains(t, rpcErr.Message, tt.msg)
		})
	}
	assert.Zero(t, svc.executed.Load(), "invalid params never reach the service")

	res, err := c.Execute(ctx, protocol.ExecuteParams{AIType: " Brain ", Prompt: "hi", Mode: "ADVANCED"})
	require.NoError(t, err)
	assert.Equal(t, types.AITypeBrain, res.AIType)
	assert.Equal(t, types.ModeAdvanced, res.Mode)
}

func TestUnknownMethod(t *testing.T) {
	c := pipe(t, &fakeService{})
	err := c.conn.Call(context.Background(), "triad/nope", nil, nil)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
}

func TestRefreshStatsPing(t *testing.T) {
	svc := &fakeService{}
	c := pipe(t, svc)
	ctx := context.Background()

	r, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, r.Refreshed)

	svc.refreshErr = errors.New("catalog: database is locked")
	r, err = c.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, r.Refreshed)
	assert.Contains(t, r.Error, "locked")
	assert.Equal(t, 2, svc.refreshed)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, st.Catalog.Domains)
	assert.Equal(t, 3, st.ModelConfigs[types.AITypeBrain])

	p, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", p.Status)
}

func TestDaemonOverUnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "triad")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "t.sock")

	d := New(&fakeService{}, sock)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))

	info, err := os.Stat(sock)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	c, err := Dial(ctx, sock)
	require.NoError(t, err)
	p, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", p.Status)
	c.Close()

	d.Shutdown()
	_, err = os.Stat(sock)
	assert.True(t, os.IsNotExist(err))

	_, err = Dial(ctx, sock)
	assert.Error(t, err)
}

func TestLifecycleSingleInstance(t *testing.T) {
	dir := t.TempDir()
	first := NewLifecycle(filepath.Join(dir, "daemon.pid"), filepath.Join(dir, "x.sock"))
	require.NoError(t, first.Acquire())

	pid, err := first.PID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	second := NewLifecycle(filepath.Join(dir, "daemon.pid"), filepath.Join(dir, "x.sock"))
	err = second.Acquire()
	require.ErrorIs(t, err, ErrLockHeld)
	assert.Contains(t, err.Error(), strconv.Itoa(os.Getpid()))
	assert.False(t, second.Running())

	first.Cleanup()
	require.NoError(t, second.Acquire())
	second.Cleanup()
}

func TestLifecyclePIDFile(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "d.pid")
	l := NewLifecycle(pidPath, filepath.Join(dir, "x.sock"))

	pid, err := l.PID()
	require.NoError(t, err)
	assert.Zero(t, pid)
	l.Cleanup()

	require.NoError(t, os.WriteFile(pidPath, []byte("not-a-pid-and-longer-than-one"), 0600))
	_, err = l.PID()
	assert.Error(t, err)

	// A leftover file from a crashed daemon is overwritten.
	require.NoError(t, l.Acquire())
	pid, err = l.PID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	l.Cleanup()
	assert.NoFileExists(t, pidPath)

	target := filepath.Join(dir, "target.pid")
	require.NoError(t, os.WriteFile(target, nil, 0600))
	link := filepath.Join(dir, "link.pid")
	require.NoError(t, os.Symlink(target, link))
	assert.ErrorContains(t, NewLifecycle(link, "").Acquire(), "symlink")
}

func TestShutdownIsIdempotent(t *testing.T) {
	d := New(&fakeService{}, filepath.Join(t.TempDir(), "never.sock"))
	d.Shutdown()
	d.Shutdown()
	assert.Less(t, d.Uptime(), time.Minute)
}
