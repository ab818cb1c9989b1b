// Package builtin holds the tools served by the local demo server.
package builtin

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/windlant/mcp-bridge/internal/tools"
)

// now is swapped in tests.
var now = time.Now

var GetTimeToolDef = tools.ToolDefinition{
	Name:        "get_time",
	Description: "Return the current local date and time.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	Function:    GetTimeTool,
}

var EchoToolDef = tools.ToolDefinition{
	Name:        "echo",
	Description: "Echo the given text back unchanged.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string","description":"Text to echo."}},"required":["text"]}`),
	Function:    EchoTool,
}

var AddToolDef = tools.ToolDefinition{
	Name:        "add",
	Description: "Add two numbers and return the sum.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"number"}},"required":["a","b"]}`),
	Function:    AddTool,
}

// All lists every builtin tool.
func All() []tools.ToolDefinition {
	return []tools.ToolDefinition{GetTimeToolDef, EchoToolDef, AddToolDef}
}

// GetTimeTool returns the current local time as a formatted string.
// It ignores any arguments passed in.
func GetTimeTool(tools.ToolArguments) (string, error) {
	return now().Format("2006-01-02 15:04:05"), nil
}

func EchoTool(args tools.ToolArguments) (string, error) {
	text, ok := args["text"].(string)
	if !ok {
		return "", fmt.Errorf("argument text must be a string")
	}
	return text, nil
}

func AddTool(args tools.ToolArguments) (string, error) {
	a, err := number(args, "a")
	if err != nil {
		return "", err
	}
	b, err := number(args, "b")
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(a+b, 'f', -1, 64), nil
}

func number(args tools.ToolArguments, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %s: %w", key, err)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("argument %s is required", key)
	default:
		return 0, fmt.Errorf("argument %s must be a number, got %T", key, v)
	}
}
