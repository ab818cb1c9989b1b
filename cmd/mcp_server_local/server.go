package main

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/windlant/mcp-bridge/internal/tools/builtin"
	"github.com/windlant/mcp-bridge/internal/tools/registry"
)

const (
	serverName    = "mcp-server-local"
	serverVersion = "0.1.0"
)

// NewServer 创建 MCP 服务器，注册 only 中列出的内置工具；only 为空时注册全部
func NewServer(only []string) (*mcp.Server, error) {
	reg := registry.NewRegistry()
	for _, def := range builtin.All() {
		if len(only) > 0 && !contains(only, def.Name) {
			continue
		}
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	for _, name := range only {
		if _, ok := reg.Get(name); !ok {
			return nil, fmt.Errorf("unknown builtin tool %q", name)
		}
	}
	return reg.NewMCPServer(serverName, serverVersion)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
