package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/windlant/mcp-bridge/internal/protocol"
)

// 各服务商 OpenAI 兼容接口的默认地址
var defaultBaseURLs = map[string]string{
	"deepseek": "https://api.deepseek.com",
	"openai":   "https://api.openai.com/v1",
	"ollama":   "http://localhost:11434/v1",
}

// ChatCompletions 对接 OpenAI 兼容的 /chat/completions 接口（DeepSeek、OpenAI、Ollama）
type ChatCompletions struct {
	provider   string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewChatCompletions 创建客户端；baseURL 为空时使用该服务商的默认地址
func NewChatCompletions(provider, baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) (*ChatCompletions, error) {
	if baseURL == "" {
		baseURL = defaultBaseURLs[provider]
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base_url is required", provider)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &ChatCompletions{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []ToolForAPI  `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat 发送一次 chat/completions 请求
func (c *ChatCompletions) Chat(ctx context.Context, req Request) (protocol.Response, error) {
	body := chatRequest{
		Model:       req.Model,
		Messages:    toChatMessages(req.Messages),
		MaxTokens:   req.Options.MaxTokens,
		Temperature: req.Options.Temperature,
	}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
		body.ToolChoice = "auto"
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("chat request", "provider", c.provider, "model", req.Model,
		"messages", len(req.Messages), "tools", len(req.Tools))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := apiResp.Choices[0].Message
	calls := make([]protocol.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool call %s: %w", tc.Function.Name, err)
		}
		id := tc.ID
		if id == "" {
			id = uuid.NewString()
		}
		calls = append(calls, protocol.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	return protocol.NewResponse(msg.Content, calls), nil
}

func (c *ChatCompletions) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func toChatMessages(msgs []protocol.Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := chatMessage{Role: m.Role, Content: m.Content}
		switch m.Role {
		case protocol.RoleAssistant:
			for _, call := range m.ToolCalls {
				tc := chatToolCall{ID: call.ID, Type: "function"}
				tc.Function.Name = call.Name
				tc.Function.Arguments = encodeArguments(call.Arguments)
				cm.ToolCalls = append(cm.ToolCalls, tc)
			}
		case protocol.RoleTool:
			cm.Name = m.ToolName
			cm.ToolCallID = m.ToolCallID
		}
		out = append(out, cm)
	}
	return out
}

// encodeArguments 按 OpenAI 约定把参数编码为 JSON 字符串
func encodeArguments(args map[string]any) json.RawMessage {
	if args == nil {
		args = map[string]any{}
	}
	inner, err := json.Marshal(args)
	if err != nil {
		inner = []byte("{}")
	}
	quoted, _ := json.Marshal(string(inner))
	return quoted
}

// decodeArguments 兼容两种写法：JSON 字符串（OpenAI、DeepSeek）或直接的对象（部分 Ollama 版本）
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			return map[string]any{}, nil
		}
		raw = json.RawMessage(s)
	}
	args := map[string]any{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
