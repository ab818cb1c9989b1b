package tools

import "encoding/json"

// ToolArguments represents the input parameters for a tool call.
// It is a JSON-serializable map of key-value pairs.
type ToolArguments map[string]any

// ToolFunc is the function signature builtin tools implement.
// The result should be plain text (not JSON) for simplicity.
type ToolFunc func(ToolArguments) (string, error)

// ToolDefinition describes a callable tool. InputSchema is the JSON Schema of
// the accepted arguments, kept as raw bytes so it reaches the model provider
// exactly as the server published it.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	Function    ToolFunc        `json:"-"`
}

// Result is the textual outcome of a tool call. IsError is set when the
// server reported the call as failed; the text then describes the failure.
type Result struct {
	Text    string
	IsError bool
}
