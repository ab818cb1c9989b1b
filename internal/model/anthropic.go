package model

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/windlant/mcp-bridge/internal/protocol"
)

// defaultAnthropicMaxTokens 用于未配置 max_tokens 的请求；Messages API 要求必填
const defaultAnthropicMaxTokens = 1024

// Anthropic 通过官方 SDK 对接 Claude Messages API
type Anthropic struct {
	client     anthropic.Client
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropic 创建客户端；extra 追加在默认选项之后，可覆盖它们
func NewAnthropic(apiKey, baseURL string, httpClient *http.Client, logger *slog.Logger, extra ...option.RequestOption) *Anthropic {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &Anthropic{
		client:     anthropic.NewClient(opts...),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (a *Anthropic) Chat(ctx context.Context, req Request) (protocol.Response, error) {
	system, messages := toAnthropicMessages(req.Messages)
	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
		System:    system,
	}
	if req.Options.Temperature != 0 {
		params.Temperature = anthropic.Float(req.Options.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	a.logger.Debug("chat request", "provider", "anthropic", "model", req.Model,
		"messages", len(req.Messages), "tools", len(req.Tools))
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var text string
	var calls []protocol.ToolCall
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += v.Text
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if raw := v.JSON.Input.Raw(); raw != "" && raw != "null" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return nil, fmt.Errorf("tool call %s: invalid input: %w", v.Name, err)
				}
			}
			id := v.ID
			if id == "" {
				id = uuid.NewString()
			}
			calls = append(calls, protocol.ToolCall{ID: id, Name: v.Name, Arguments: args})
		}
	}
	return protocol.NewResponse(text, calls), nil
}

func (a *Anthropic) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// toAnthropicMessages 拆出 system 文本，并把连续的 tool 结果合并进同一条 user 消息
func toAnthropicMessages(msgs []protocol.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case protocol.RoleTool:
			pending = append(pending, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError))
		case protocol.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, call := range m.ToolCalls {
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, args, call.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flush()
	return system, out
}

// toAnthropicTools 把 JSON Schema 拆成 properties / required，其余关键字放进 ExtraFields
func toAnthropicTools(defs []ToolForAPI) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := map[string]any{}
		if len(def.Function.Parameters) > 0 {
			if err := json.Unmarshal(def.Function.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("tool %s: invalid parameters: %w", def.Function.Name, err)
			}
		}
		input := anthropic.ToolInputSchemaParam{Properties: schema["properties"]}
		if input.Properties == nil {
			input.Properties = map[string]any{}
		}
		if req, ok := schema["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					input.Required = append(input.Required, s)
				}
			}
		}
		extra := map[string]any{}
		for k, v := range schema {
			switch k {
			case "type", "properties", "required":
			default:
				extra[k] = v
			}
		}
		if len(extra) > 0 {
			input.ExtraFields = extra
		}

		tool := &anthropic.ToolParam{Name: def.Function.Name, InputSchema: input}
		if def.Function.Description != "" {
			tool.Description = anthropic.String(def.Function.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: tool})
	}
	return out, nil
}
