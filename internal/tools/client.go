package tools

import (
	"context"
	"errors"
)

// ToolClient 是工具调用的统一接口，支持本地或远程（如 stdio、SSE）实现
type ToolClient interface {
	// List 返回所有可用工具的定义，顺序与服务器一致
	List(ctx context.Context) ([]ToolDefinition, error)

	// Call 调用指定名称的工具，并传入参数
	Call(ctx context.Context, name string, args ToolArguments) (Result, error)

	// Close 释放资源（如关闭子进程或网络连接）
	Close() error
}

var (
	// ErrToolNotFound 表示请求的工具未注册或不存在
	ErrToolNotFound = errors.New("tool not found")

	// ErrSessionNotReady 表示连接尚未就绪或已关闭
	ErrSessionNotReady = errors.New("tool session not ready")

	// ErrDuplicateTool 表示服务器返回了重名的工具
	ErrDuplicateTool = errors.New("duplicate tool name")
)
