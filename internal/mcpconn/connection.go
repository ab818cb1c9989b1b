package mcpconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/windlant/mcp-bridge/internal/tools"
)

// State is the lifecycle position of a Connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Ready
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Connection is an initialized session with one MCP tool server. It
// implements tools.ToolClient; every operation fails with
// tools.ErrSessionNotReady unless the state is Ready.
type Connection struct {
	endpoint string

	mu      sync.Mutex
	state   State
	session *mcp.ClientSession
	stream  mcp.Connection
}

// DefaultCloseTimeout bounds Close.
const DefaultCloseTimeout = 10 * time.Second

var _ tools.ToolClient = (*Connection)(nil)

func (c *Connection) Endpoint() string { return c.endpoint }

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) ready() (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Ready || c.session == nil {
		return nil, fmt.Errorf("%w: connection is %s", tools.ErrSessionNotReady, c.state)
	}
	return c.session, nil
}

// List returns the server's tools in server order, following pagination.
// Nothing is cached: each call asks the server again.
func (c *Connection) List(ctx context.Context) ([]tools.ToolDefinition, error) {
	session, err := c.ready()
	if err != nil {
		return nil, err
	}
	var defs []tools.ToolDefinition
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, err
		}
		def, err := toToolDefinition(tool)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func toToolDefinition(tool *mcp.Tool) (tools.ToolDefinition, error) {
	def := tools.ToolDefinition{Name: tool.Name, Description: tool.Description}
	if tool.InputSchema == nil {
		return def, nil
	}
	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return def, fmt.Errorf("tool %s: encode input schema: %w", tool.Name, err)
	}
	def.InputSchema = raw
	return def, nil
}

// Call invokes a tool. A result the server flags as an error is returned as
// a Result with IsError set, not as a Go error; Go errors mean the call
// itself did not complete.
func (c *Connection) Call(ctx context.Context, name string, args tools.ToolArguments) (tools.Result, error) {
	session, err := c.ready()
	if err != nil {
		return tools.Result{}, err
	}
	if args == nil {
		args = tools.ToolArguments{}
	}
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: map[string]any(args),
	})
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Text: resultText(res), IsError: res.IsError}, nil
}

// resultText joins the text parts of a result. Results with no text fall
// back to their structured content, then to a note naming what was dropped.
func resultText(res *mcp.CallToolResult) string {
	var texts, skipped []string
	for _, content := range res.Content {
		switch v := content.(type) {
		case *mcp.TextContent:
			texts = append(texts, v.Text)
		default:
			skipped = append(skipped, fmt.Sprintf("%T", v))
		}
	}
	if len(texts) > 0 {
		return strings.Join(texts, "\n")
	}
	if res.StructuredContent != nil {
		if raw, err := json.Marshal(res.StructuredContent); err == nil {
			return string(raw)
		}
	}
	if len(skipped) > 0 {
		return fmt.Sprintf("[non-text content omitted: %s]", strings.Join(skipped, ", "))
	}
	return ""
}

// Close is CloseContext bounded by DefaultCloseTimeout.
func (c *Connection) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultCloseTimeout)
	defer cancel()
	return c.CloseContext(ctx)
}

// CloseContext ends the session, which also closes the underlying stream. It
// is idempotent; after it the connection is Closed and every operation fails.
// A peer that does not let the session end before ctx is done gets its stream
// closed under it.
func (c *Connection) CloseContext(ctx context.Context) error {
	c.mu.Lock()
	session, stream := c.session, c.stream
	c.session, c.stream = nil, nil
	c.state = Closed
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- session.Close() }()

	select {
	case err := <-done:
		if err != nil && !isClosedErr(err) {
			return fmt.Errorf("close session: %w", err)
		}
		return nil
	case <-ctx.Done():
		if stream != nil {
			_ = stream.Close()
		}
		return fmt.Errorf("close session: %w", ctx.Err())
	}
}

// isClosedErr reports errors that only say the peer already went away.
func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) ||
		strings.Contains(err.Error(), "closed")
}

// openedTransport hands an already open stream to the SDK client, so the
// stream can be opened under the session context while initialize runs
// under the attempt's deadline.
type openedTransport struct {
	conn mcp.Connection
}

func (o openedTransport) Connect(context.Context) (mcp.Connection, error) {
	return o.conn, nil
}
