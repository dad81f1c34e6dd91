package daemon

import (
	"context"
	"fmt"
	"net"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/triad/internal/orchestrator"
	"github.com/alucardeht/triad/internal/types"
	"github.com/alucardeht/triad/pkg/protocol"
)

// Client is the CLI side of the daemon connection.
type Client struct {
	conn *jsonrpc2.Conn
}

func Dial(ctx context.Context, socketPath string) (*Client, error) {
	conn, err := NewSocketConnector(socketPath).Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", socketPath, err)
	}
	return NewClient(ctx, conn), nil
}

func NewClient(ctx context.Context, conn net.Conn) *Client {
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{})
	return &Client{conn: jsonrpc2.NewConn(ctx, stream, noopHandler{})}
}

type noopHandler struct{}

func (noopHandler) Handle(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) {}

func (c *Client) Execute(ctx context.Context, params protocol.ExecuteParams) (*types.AISystemResult, error) {
	var res types.AISystemResult
	if err := c.conn.Call(ctx, protocol.MethodExecute, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Refresh(ctx context.Context) (*protocol.RefreshResult, error) {
	var res protocol.RefreshResult
	if err := c.conn.Call(ctx, protocol.MethodRefresh, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Stats(ctx context.Context) (*orchestrator.Stats, error) {
	var res orchestrator.Stats
	if err := c.conn.Call(ctx, protocol.MethodStats, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Ping(ctx context.Context) (*protocol.PingResult, error) {
	var res protocol.PingResult
	if err := c.conn.Call(ctx, protocol.MethodPing, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
