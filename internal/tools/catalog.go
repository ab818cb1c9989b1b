package tools

import (
	"context"
	"fmt"
)

// Catalog is a snapshot of the tools a server exposed at one point in time.
// It is rebuilt by calling Fetch again; it never refreshes itself.
type Catalog struct {
	defs   []ToolDefinition
	byName map[string]int
}

// Fetch lists the client's tools and indexes them by name.
func Fetch(ctx context.Context, c ToolClient) (*Catalog, error) {
	defs, err := c.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return NewCatalog(defs)
}

// NewCatalog indexes defs, preserving their order.
func NewCatalog(defs []ToolDefinition) (*Catalog, error) {
	cat := &Catalog{
		defs:   make([]ToolDefinition, len(defs)),
		byName: make(map[string]int, len(defs)),
	}
	copy(cat.defs, defs)
	for i, d := range cat.defs {
		if _, dup := cat.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
		}
		cat.byName[d.Name] = i
	}
	return cat, nil
}

// Definitions returns the tools in server order.
func (c *Catalog) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) Lookup(name string) (ToolDefinition, bool) {
	i, ok := c.byName[name]
	if !ok {
		return ToolDefinition{}, false
	}
	return c.defs[i], true
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.defs))
	for i, d := range c.defs {
		names[i] = d.Name
	}
	return names
}

func (c *Catalog) Len() int { return len(c.defs) }
