// Package mcpconntest provides in-memory tool servers for tests.
package mcpconntest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/windlant/mcp-bridge/internal/mcpconn"
	"github.com/windlant/mcp-bridge/internal/tools"
	"github.com/windlant/mcp-bridge/internal/tools/registry"
)

// NewServer serves defs over MCP.
func NewServer(t testing.TB, defs ...tools.ToolDefinition) *mcp.Server {
	t.Helper()
	r := registry.NewRegistry()
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Name, err)
		}
	}
	srv, err := r.NewMCPServer("test-server", "test")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

// Counter tracks how many streams were opened and closed.
type Counter struct {
	opened atomic.Int32
	closed atomic.Int32
}

func (c *Counter) Opened() int { return int(c.opened.Load()) }
func (c *Counter) Closed() int { return int(c.closed.Load()) }

func (c *Counter) wrap(inner mcp.Transport) mcp.Transport {
	return countingTransport{inner: inner, counter: c}
}

// Factory connects every attempt to a fresh session on srv.
func Factory(t testing.TB, srv *mcp.Server, c *Counter) mcpconn.TransportFactory {
	return func(ctx context.Context, _ string) (mcp.Transport, error) {
		serverT, clientT := mcp.NewInMemoryTransports()
		ss, err := srv.Connect(context.Background(), serverT, nil)
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { _ = ss.Close() })
		return c.wrap(clientT), nil
	}
}

// DeadFactory hands out streams whose server end is already closed, so
// initialize fails at once.
func DeadFactory(t testing.TB, c *Counter) mcpconn.TransportFactory {
	return func(ctx context.Context, _ string) (mcp.Transport, error) {
		serverT, clientT := mcp.NewInMemoryTransports()
		conn, err := serverT.Connect(context.Background())
		if err != nil {
			return nil, err
		}
		_ = conn.Close()
		return c.wrap(clientT), nil
	}
}

// SilentFactory hands out streams whose server reads requests and never
// answers, so initialize runs into its deadline.
func SilentFactory(t testing.TB, c *Counter) mcpconn.TransportFactory {
	return func(ctx context.Context, _ string) (mcp.Transport, error) {
		serverT, clientT := mcp.NewInMemoryTransports()
		conn, err := serverT.Connect(context.Background())
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { _ = conn.Close() })
		go func() {
			for {
				if _, err := conn.Read(context.Background()); err != nil {
					return
				}
			}
		}()
		return c.wrap(clientT), nil
	}
}

type countingTransport struct {
	inner   mcp.Transport
	counter *Counter
}

func (t countingTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.inner.Connect(ctx)
	if err != nil {
		return nil, err
	}
	t.counter.opened.Add(1)
	return &countingConn{Connection: conn, counter: t.counter}, nil
}

type countingConn struct {
	mcp.Connection
	counter *Counter
	once    sync.Once
}

func (c *countingConn) Close() error {
	c.once.Do(func() { c.counter.closed.Add(1) })
	return c.Connection.Close()
}
