package registry

import (
	"context"
	"fmt"

	"github.com/windlant/mcp-bridge/internal/tools"
)

// LocalClient serves a registry in-process through the tools.ToolClient
// interface, with no server in between.
type LocalClient struct {
	registry *Registry
}

var _ tools.ToolClient = (*LocalClient)(nil)

func NewLocalClient(r *Registry) *LocalClient {
	return &LocalClient{registry: r}
}

func (c *LocalClient) List(ctx context.Context) ([]tools.ToolDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.registry.ListAll(), nil
}

// Call runs the tool. A failing tool becomes an error Result, the same way
// the MCP server reports it; only an unknown name is a Go error.
func (c *LocalClient) Call(ctx context.Context, name string, args tools.ToolArguments) (tools.Result, error) {
	if err := ctx.Err(); err != nil {
		return tools.Result{}, err
	}
	if _, ok := c.registry.Get(name); !ok {
		return tools.Result{}, fmt.Errorf("%w: %s", tools.ErrToolNotFound, name)
	}
	text, err := c.registry.Call(name, args)
	if err != nil {
		return tools.Result{Text: "tool execution failed: " + err.Error(), IsError: true}, nil
	}
	return tools.Result{Text: text}, nil
}

func (c *LocalClient) Close() error {
	return nil
}
