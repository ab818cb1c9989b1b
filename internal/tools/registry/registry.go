package registry

import (
	"fmt"

	"github.com/windlant/mcp-bridge/internal/tools"
)

// Registry stores tool definitions by name and remembers registration order.
type Registry struct {
	tools map[string]tools.ToolDefinition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]tools.ToolDefinition),
	}
}

// Register adds def. Names must be unique and every definition needs a Function.
func (r *Registry) Register(def tools.ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if def.Function == nil {
		return fmt.Errorf("tool %s has no function", def.Name)
	}
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("%w: %s", tools.ErrDuplicateTool, def.Name)
	}
	r.tools[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

func (r *Registry) Get(name string) (tools.ToolDefinition, bool) {
	def, ok := r.tools[name]
	return def, ok
}

// ListAll returns the definitions in registration order.
func (r *Registry) ListAll() []tools.ToolDefinition {
	defs := make([]tools.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// Call runs the named tool.
func (r *Registry) Call(name string, args tools.ToolArguments) (string, error) {
	def, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", tools.ErrToolNotFound, name)
	}
	if args == nil {
		args = tools.ToolArguments{}
	}
	return def.Function(args)
}
