package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/windlant/mcp-bridge/internal/protocol"
	"github.com/windlant/mcp-bridge/internal/tools"
)

// ToolForAPI 表示 LLM API（如 DeepSeek、OpenAI）所期望的工具格式
type ToolForAPI struct {
	Type     string      `json:"type"` // 固定为 "function"
	Function ToolFuncDef `json:"function"`
}

// ToolFuncDef 描述一个可调用的函数/工具
type ToolFuncDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema 原文，不做改写
}

// emptySchema 用于服务器没有给出 inputSchema 的工具
var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

// ToolsForAPI 把工具定义转换为 API 格式，顺序不变，schema 原样透传
func ToolsForAPI(defs []tools.ToolDefinition) []ToolForAPI {
	out := make([]ToolForAPI, 0, len(defs))
	for _, def := range defs {
		params := def.InputSchema
		if len(params) == 0 {
			params = emptySchema
		}
		out = append(out, ToolForAPI{
			Type: "function",
			Function: ToolFuncDef{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// Options 是单次请求的生成参数，零值表示使用服务端默认值
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Request 是一次完整的模型调用
type Request struct {
	Model    string
	Messages []protocol.Message
	Tools    []ToolForAPI
	Options  Options
}

// Model 是所有大语言模型后端的统一接口
type Model interface {
	// Chat 发送对话（可带工具），返回文本回复或工具调用请求
	// 不支持工具的模型直接返回 TextResponse
	Chat(ctx context.Context, req Request) (protocol.Response, error)

	// Close 释放底层 HTTP 连接
	Close() error
}

// APIError 表示模型服务返回了非 200 状态码
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Body)
}
