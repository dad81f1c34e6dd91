// Package daemon serves the orchestrator over JSON-RPC 2.0 on a unix socket.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/orchestrator"
	"github.com/alucardeht/triad/internal/types"
	"github.com/alucardeht/triad/pkg/protocol"
)

var log = logger.ForComponent("daemon")

// Service is the orchestrator surface exposed over RPC.
type Service interface {
	ExecuteAISystem(ctx context.Context, aiType types.AIType, prompt string, mode types.Mode) (*types.AISystemResult, error)
	RefreshAllCaches(ctx context.Context) error
	Stats(ctx context.Context) (*orchestrator.Stats, error)
}

type Daemon struct {
	service   Service
	listener  *SocketListener
	startTime time.Time

	connMu sync.Mutex
	conns  map[*jsonrpc2.Conn]struct{}

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

func New(service Service, socketPath string) *Daemon {
	return &Daemon{
		service:   service,
		listener:  NewSocketListener(socketPath),
		startTime: time.Now(),
		conns:     make(map[*jsonrpc2.Conn]struct{}),
		shutdown:  make(chan struct{}),
	}
}

// Start binds the socket and accepts connections in the background.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.listener.Start(); err != nil {
		return err
	}
	log.Info("daemon listening", "socket", d.listener.Path())

	d.wg.Add(1)
	go d.acceptConnections(ctx)
	return nil
}

func (d *Daemon) acceptConnections(ctx context.Context) {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.shutdown:
				return
			default:
			}
			log.Warn("accept failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		d.ServeConn(ctx, conn)
	}
}

// ServeConn speaks JSON-RPC on conn until either side closes it.
func (d *Daemon) ServeConn(ctx context.Context, conn net.Conn) *jsonrpc2.Conn {
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{})
	rpc := jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(d.handle)))

	d.connMu.Lock()
	d.conns[rpc] = struct{}{}
	d.connMu.Unlock()

	go func() {
		<-rpc.DisconnectNotify()
		d.connMu.Lock()
		delete(d.conns, rpc)
		d.connMu.Unlock()
	}()
	return rpc
}

func (d *Daemon) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case protocol.MethodPing:
		return protocol.PingResult{Status: "ok", Uptime: int64(d.Uptime().Seconds())}, nil

	case protocol.MethodExecute:
		var params protocol.ExecuteParams
		if req.Params == nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
		}
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
		if err := checkExecute(&params); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
		res, err := d.service.ExecuteAISystem(ctx, types.AIType(params.AIType), params.Prompt, types.Mode(params.Mode))
		if err != nil {
			return nil, rpcError(err)
		}
		return res, nil

	case protocol.MethodRefresh:
		if err := d.service.RefreshAllCaches(ctx); err != nil {
			return protocol.RefreshResult{Refreshed: false, Error: err.Error()}, nil
		}
		return protocol.RefreshResult{Refreshed: true}, nil

	case protocol.MethodStats:
		st, err := d.service.Stats(ctx)
		if err != nil {
			return nil, rpcError(err)
		}
		return st, nil
	}

	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + req.Method}
}

func rpcError(err error) *jsonrpc2.Error {
	switch {
	case errors.Is(err, types.ErrUnknownAIType),
		errors.Is(err, types.ErrUnknownMode),
		errors.Is(err, orchestrator.ErrEmptyPrompt):
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	case errors.Is(err, orchestrator.ErrMissingModelConfig):
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: err.Error()}
	default:
		log.Error("request failed", "error", err)
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
}

// Shutdown stops accepting, closes live connections and removes the socket.
func (d *Daemon) Shutdown() {
	d.shutdownOnce.Do(func() {
		close(d.shutdown)
		if err := d.listener.Close(); err != nil {
			log.Debug("listener close failed", "error", err)
		}

		d.connMu.Lock()
		for c := range d.conns {
			c.Close()
		}
		d.connMu.Unlock()

		d.wg.Wait()
		log.Info("daemon stopped", "uptime", d.Uptime().Round(time.Second))
	})
}

func (d *Daemon) SocketPath() string {
	return d.listener.Path()
}

func (d *Daemon) Uptime() time.Duration {
	return time.Since(d.startTime)
}
