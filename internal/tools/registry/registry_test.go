package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/windlant/mcp-bridge/internal/tools"
	"github.com/windlant/mcp-bridge/internal/tools/builtin"
	"github.com/windlant/mcp-bridge/internal/tools/registry"
)

func TestRegistry_OrderAndLookup(t *testing.T) {
	r := registry.NewRegistry()
	for _, def := range builtin.All() {
		require.NoError(t, r.Register(def))
	}

	var names []string
	for _, d := range r.ListAll() {
		names = append(names, d.Name)
	}
	require.Equal(t, []string{"get_time", "echo", "add"}, names)

	got, err := r.Call("echo", tools.ToolArguments{"text": "x"})
	require.NoError(t, err)
	require.Equal(t, "x", got)
}

func TestRegistry_Rejects(t *testing.T) {
	r := registry.NewRegistry()
	require.NoError(t, r.Register(builtin.EchoToolDef))
	require.ErrorIs(t, r.Register(builtin.EchoToolDef), tools.ErrDuplicateTool)
	require.Error(t, r.Register(tools.ToolDefinition{Name: "nofunc"}))
	require.Error(t, r.Register(tools.ToolDefinition{}))

	_, err := r.Call("missing", nil)
	require.ErrorIs(t, err, tools.ErrToolNotFound)
}
