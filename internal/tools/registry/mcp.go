package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/windlant/mcp-bridge/internal/tools"
)

// NewMCPServer exposes every registered tool on a new MCP server. A failing
// tool is reported as an error result rather than a protocol error, so the
// caller sees the failure text.
func (r *Registry) NewMCPServer(name, version string) (*mcp.Server, error) {
	srv := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	for _, def := range r.ListAll() {
		schema, err := schemaObject(def)
		if err != nil {
			return nil, err
		}
		srv.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		}, r.handler(def.Name))
	}
	return srv, nil
}

func (r *Registry) handler(name string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	local := NewLocalClient(r)
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := tools.ToolArguments{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Sprintf("arguments must be an object: %v", err)), nil
			}
		}
		res, err := local.Call(ctx, name, args)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return &mcp.CallToolResult{
			IsError: res.IsError,
			Content: []mcp.Content{&mcp.TextContent{Text: res.Text}},
		}, nil
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}
}

// schemaObject decodes the definition's schema, defaulting to an empty object
// schema; MCP requires tool inputs to be objects.
func schemaObject(def tools.ToolDefinition) (map[string]any, error) {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	if len(def.InputSchema) == 0 {
		return schema, nil
	}
	if err := json.Unmarshal(def.InputSchema, &schema); err != nil {
		return nil, fmt.Errorf("tool %s: invalid input schema: %w", def.Name, err)
	}
	if schema["type"] != "object" {
		return nil, fmt.Errorf("tool %s: input schema type must be object", def.Name)
	}
	return schema, nil
}
