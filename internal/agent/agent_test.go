package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/windlant/mcp-bridge/internal/agent"
	"github.com/windlant/mcp-bridge/internal/mcpconn"
	"github.com/windlant/mcp-bridge/internal/mcpconn/mcpconntest"
	"github.com/windlant/mcp-bridge/internal/model"
	"github.com/windlant/mcp-bridge/internal/protocol"
	"github.com/windlant/mcp-bridge/internal/tools"
	"github.com/windlant/mcp-bridge/internal/tools/builtin"
)

// scriptedModel replays responses in order and records every request.
type scriptedModel struct {
	replies  []protocol.Response
	errs     map[int]error
	requests []model.Request
}

func (s *scriptedModel) Chat(ctx context.Context, req model.Request) (protocol.Response, error) {
	n := len(s.requests)
	msgs := make([]protocol.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	s.requests = append(s.requests, req)
	if err := s.errs[n]; err != nil {
		return nil, err
	}
	if n >= len(s.replies) {
		return protocol.TextResponse{}, nil
	}
	return s.replies[n], nil
}

func (s *scriptedModel) Close() error { return nil }

// fakeTools serves fixed results and records calls in order.
type fakeTools struct {
	defs    []tools.ToolDefinition
	results map[string]tools.Result
	errs    map[string]error
	listErr error
	calls   []string
}

func (f *fakeTools) List(context.Context) ([]tools.ToolDefinition, error) {
	return f.defs, f.listErr
}

func (f *fakeTools) Call(_ context.Context, name string, _ tools.ToolArguments) (tools.Result, error) {
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return tools.Result{}, err
	}
	return f.results[name], nil
}

func (f *fakeTools) Close() error { return nil }

var weatherDef = tools.ToolDefinition{
	Name:        "get_weather",
	Description: "Current weather for a city.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`),
}

func call(id, name string, args map[string]any) protocol.ToolCall {
	return protocol.ToolCall{ID: id, Name: name, Arguments: args}
}

func TestChat_TextOnly(t *testing.T) {
	m := &scriptedModel{replies: []protocol.Response{protocol.TextResponse{Text: "4"}}}
	a := agent.NewAgent(m, &fakeTools{defs: []tools.ToolDefinition{weatherDef}}, agent.DefaultOptions(), nil)

	answer, err := a.Chat(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	require.Equal(t, "4", answer)
	require.Len(t, m.requests, 1)
	require.Equal(t, []protocol.Message{protocol.UserMessage("What is 2+2?")}, m.requests[0].Messages)
	require.Len(t, m.requests[0].Tools, 1)
	require.Equal(t, 500, m.requests[0].Options.MaxTokens)
}

func TestChat_ToolRoundTrip(t *testing.T) {
	weather := call("c1", "get_weather", map[string]any{"city": "Paris"})
	m := &scriptedModel{replies: []protocol.Response{
		protocol.ToolCallsResponse{Calls: []protocol.ToolCall{weather}},
		protocol.TextResponse{Text: "It is 18°C in Paris."},
	}}
	tc := &fakeTools{
		defs:    []tools.ToolDefinition{weatherDef},
		results: map[string]tools.Result{"get_weather": {Text: "18C"}},
	}
	a := agent.NewAgent(m, tc, agent.DefaultOptions(), nil)

	answer, err := a.Chat(context.Background(), "weather in Paris?")
	require.NoError(t, err)
	require.Equal(t, "It is 18°C in Paris.", answer)
	require.Equal(t, []string{"get_weather"}, tc.calls)

	require.Len(t, m.requests, 2)
	second := m.requests[1]
	require.Equal(t, []protocol.Message{
		protocol.UserMessage("weather in Paris?"),
		protocol.AssistantMessage("", []protocol.ToolCall{weather}),
		protocol.ToolResultMessage(weather, "18C", false),
	}, second.Messages)
	require.Equal(t, m.requests[0].Tools, second.Tools, "tool schema is re-sent every round")
}

func TestChat_ConcatenatesFragments(t *testing.T) {
	m := &scriptedModel{replies: []protocol.Response{
		protocol.ToolCallsResponse{Text: "Let me check. ", Calls: []protocol.ToolCall{call("c1", "get_weather", nil)}},
		protocol.TextResponse{Text: "Sunny."},
	}}
	tc := &fakeTools{defs: []tools.ToolDefinition{weatherDef}, results: map[string]tools.Result{"get_weather": {Text: "sun"}}}
	a := agent.NewAgent(m, tc, agent.DefaultOptions(), nil)

	answer, err := a.Chat(context.Background(), "weather?")
	require.NoError(t, err)
	require.Equal(t, "Let me check. Sunny.", answer)
}

func TestChat_ToolOrderPreserved(t *testing.T) {
	defs := []tools.ToolDefinition{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	calls := []protocol.ToolCall{call("1", "c", nil), call("2", "a", nil), call("3", "b", nil)}
	m := &scriptedModel{replies: []protocol.Response{
		protocol.ToolCallsResponse{Calls: calls},
		protocol.TextResponse{Text: "done"},
	}}
	tc := &fakeTools{defs: defs, results: map[string]tools.Result{
		"a": {Text: "A"}, "b": {Text: "B"}, "c": {Text: "C"},
	}}
	a := agent.NewAgent(m, tc, agent.DefaultOptions(), nil)

	_, err := a.Chat(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, tc.calls)

	msgs := m.requests[1].Messages
	require.Len(t, msgs, 5)
	require.Equal(t, "C", msgs[2].Content)
	require.Equal(t, "A", msgs[3].Content)
	require.Equal(t, "B", msgs[4].Content)
}

func TestChat_UnknownToolReportedToModel(t *testing.T) {
	bogus := call("c1", "teleport", map[string]any{"to": "Mars"})
	m := &scriptedModel{replies: []protocol.Response{
		protocol.ToolCallsResponse{Calls: []protocol.ToolCall{bogus}},
		protocol.TextResponse{Text: "I cannot do that."},
	}}
	tc := &fakeTools{defs: []tools.ToolDefinition{weatherDef}}
	a := agent.NewAgent(m, tc, agent.DefaultOptions(), nil)

	answer, err := a.Chat(context.Background(), "take me to Mars")
	require.NoError(t, err)
	require.Equal(t, "I cannot do that.", answer)
	require.Empty(t, tc.calls, "unknown tools never reach the server")

	last := m.requests[1].Messages[2]
	require.Equal(t, protocol.RoleTool, last.Role)
	require.Equal(t, "Error: tool 'teleport' not found", last.Content)
	require.True(t, last.IsError)
	require.Equal(t, "c1", last.ToolCallID)
}

func TestChat_ErrorResultFedBack(t *testing.T) {
	weather := call("c1", "get_weather", map[string]any{"city": "Atlantis"})
	m := &scriptedModel{replies: []protocol.Response{
		protocol.ToolCallsResponse{Calls: []protocol.ToolCall{weather}},
		protocol.TextResponse{Text: "Unknown city."},
	}}
	tc := &fakeTools{
		defs:    []tools.ToolDefinition{weatherDef},
		results: map[string]tools.Result{"get_weather": {Text: "no such city", IsError: true}},
	}
	a := agent.NewAgent(m, tc, agent.DefaultOptions(), nil)

	answer, err := a.Chat(context.Background(), "weather in Atlantis")
	require.NoError(t, err)
	require.Equal(t, "Unknown city.", answer)
	require.Equal(t, protocol.ToolResultMessage(weather, "no such city", true), m.requests[1].Messages[2])
}

func TestChat_EmptyResponseIsEmptyAnswer(t *testing.T) {
	m := &scriptedModel{replies: []protocol.Response{protocol.TextResponse{}}}
	a := agent.NewAgent(m, nil, agent.DefaultOptions(), nil)

	answer, err := a.Chat(context.Background(), "hello?")
	require.NoError(t, err)
	require.Empty(t, answer)
	require.Len(t, m.requests, 1)
	require.Empty(t, m.requests[0].Tools)
}

func TestChat_ProviderFailure(t *testing.T) {
	cause := errors.New("503 overloaded")
	m := &scriptedModel{
		replies: []protocol.Response{
			protocol.ToolCallsResponse{Calls: []protocol.ToolCall{call("c1", "get_weather", nil)}},
		},
		errs: map[int]error{1: cause},
	}
	tc := &fakeTools{defs: []tools.ToolDefinition{weatherDef}, results: map[string]tools.Result{"get_weather": {Text: "x"}}}
	a := agent.NewAgent(m, tc, agent.DefaultOptions(), nil)

	_, err := a.Chat(context.Background(), "weather")
	require.ErrorIs(t, err, agent.ErrProvider)
	require.ErrorIs(t, err, cause)
	require.ErrorContains(t, err, "round 2")

	// the agent holds no per-query state; the next query starts clean
	m.errs = nil
	m.replies = append(m.replies, protocol.TextResponse{}, protocol.TextResponse{Text: "ok"})
	answer, err := a.Chat(context.Background(), "again")
	require.NoError(t, err)
	require.Equal(t, "ok", answer)
	require.Equal(t, []protocol.Message{protocol.UserMessage("again")}, m.requests[2].Messages)
}

func TestChat_ToolTransportFailure(t *testing.T) {
	cause := errors.New("broken pipe")
	m := &scriptedModel{replies: []protocol.Response{
		protocol.ToolCallsResponse{Calls: []protocol.ToolCall{call("c1", "get_weather", nil)}},
	}}
	tc := &fakeTools{defs: []tools.ToolDefinition{weatherDef}, errs: map[string]error{"get_weather": cause}}
	a := agent.NewAgent(m, tc, agent.DefaultOptions(), nil)

	_, err := a.Chat(context.Background(), "weather")
	require.ErrorIs(t, err, agent.ErrToolExecution)
	require.ErrorIs(t, err, cause)
	require.ErrorContains(t, err, "get_weather")
	require.Len(t, m.requests, 1)
}

func TestChat_ListFailure(t *testing.T) {
	m := &scriptedModel{}
	tc := &fakeTools{listErr: tools.ErrSessionNotReady}
	a := agent.NewAgent(m, tc, agent.DefaultOptions(), nil)

	_, err := a.Chat(context.Background(), "hi")
	require.ErrorIs(t, err, agent.ErrToolExecution)
	require.ErrorIs(t, err, tools.ErrSessionNotReady)
	require.Empty(t, m.requests)
}

func TestChat_RoundLimit(t *testing.T) {
	loop := protocol.ToolCallsResponse{Calls: []protocol.ToolCall{call("c", "get_weather", nil)}}
	m := &scriptedModel{replies: []protocol.Response{loop, loop, loop, loop}}
	tc := &fakeTools{defs: []tools.ToolDefinition{weatherDef}, results: map[string]tools.Result{"get_weather": {Text: "x"}}}
	opts := agent.DefaultOptions()
	opts.MaxRounds = 3
	a := agent.NewAgent(m, tc, opts, nil)

	_, err := a.Chat(context.Background(), "loop forever")
	require.ErrorIs(t, err, agent.ErrRoundLimitExceeded)
	require.Len(t, m.requests, 3)
	require.Len(t, tc.calls, 2, "calls from the last allowed round are not executed")
}

func TestChat_TruncatesResults(t *testing.T) {
	m := &scriptedModel{replies: []protocol.Response{
		protocol.ToolCallsResponse{Calls: []protocol.ToolCall{call("c1", "get_weather", nil)}},
		protocol.TextResponse{Text: "ok"},
	}}
	tc := &fakeTools{defs: []tools.ToolDefinition{weatherDef}, results: map[string]tools.Result{
		"get_weather": {Text: strings.Repeat("é", 30)},
	}}
	opts := agent.DefaultOptions()
	opts.MaxResultChars = 10
	a := agent.NewAgent(m, tc, opts, nil)

	_, err := a.Chat(context.Background(), "weather")
	require.NoError(t, err)
	content := m.requests[1].Messages[2].Content
	require.True(t, strings.HasPrefix(content, strings.Repeat("é", 10)+"\n"))
	require.Contains(t, content, "[truncated 20 characters]")
}

func TestChat_SystemPrompt(t *testing.T) {
	m := &scriptedModel{replies: []protocol.Response{protocol.TextResponse{Text: "hi"}}}
	opts := agent.DefaultOptions()
	opts.SystemPrompt = "Answer briefly."
	opts.Model = "llama3.1:8b"
	a := agent.NewAgent(m, nil, opts, nil)

	_, err := a.Chat(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "llama3.1:8b", m.requests[0].Model)
	require.Equal(t, protocol.SystemMessage("Answer briefly."), m.requests[0].Messages[0])
}

// slowModel blocks until its context ends.
type slowModel struct{}

func (slowModel) Chat(ctx context.Context, _ model.Request) (protocol.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowModel) Close() error { return nil }

func TestChat_CallTimeout(t *testing.T) {
	opts := agent.DefaultOptions()
	opts.CallTimeout = 20 * time.Millisecond
	a := agent.NewAgent(slowModel{}, nil, opts, nil)

	_, err := a.Chat(context.Background(), "hi")
	require.ErrorIs(t, err, agent.ErrProvider)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChat_OverMCPConnection(t *testing.T) {
	srv := mcpconntest.NewServer(t, builtin.AddToolDef, builtin.EchoToolDef)
	var counter mcpconntest.Counter
	mgr := mcpconn.NewManager(mcpconn.DefaultConfig("memory"),
		mcpconn.WithTransportFactory(mcpconntest.Factory(t, srv, &counter)))
	conn, err := mgr.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	add := call("c1", "add", map[string]any{"a": 2, "b": 2})
	m := &scriptedModel{replies: []protocol.Response{
		protocol.ToolCallsResponse{Calls: []protocol.ToolCall{add}},
		protocol.TextResponse{Text: "2+2 is 4."},
	}}
	a := agent.NewAgent(m, conn, agent.DefaultOptions(), nil)

	answer, err := a.Chat(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	require.Equal(t, "2+2 is 4.", answer)

	names := []string{m.requests[0].Tools[0].Function.Name, m.requests[0].Tools[1].Function.Name}
	require.Equal(t, []string{"add", "echo"}, names)
	require.Equal(t, protocol.ToolResultMessage(add, "4", false), m.requests[1].Messages[2])
}
