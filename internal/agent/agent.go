package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/windlant/mcp-bridge/internal/model"
	"github.com/windlant/mcp-bridge/internal/protocol"
	"github.com/windlant/mcp-bridge/internal/tools"
)

var (
	// ErrProvider marks a query that ended because the model call failed.
	ErrProvider = errors.New("model provider failure")

	// ErrToolExecution marks a query that ended because a tool could not be
	// listed or called. A tool that ran and reported an error is not this;
	// its message goes back to the model instead.
	ErrToolExecution = errors.New("tool execution failure")

	// ErrRoundLimitExceeded marks a query that kept requesting tools for
	// more than MaxRounds model calls.
	ErrRoundLimitExceeded = errors.New("tool round limit exceeded")
)

type Options struct {
	Model          string
	MaxRounds      int
	CallTimeout    time.Duration // per model call and per tool call; 0 disables
	MaxResultChars int           // 0 keeps tool results whole
	SystemPrompt   string
	MaxTokens      int
	Temperature    float64
}

func DefaultOptions() Options {
	return Options{
		MaxRounds:   10,
		CallTimeout: 60 * time.Second,
		MaxTokens:   500,
	}
}

// Agent answers one query at a time by letting the model call tools. It
// keeps no history between queries.
type Agent struct {
	model  model.Model
	tools  tools.ToolClient
	opts   Options
	logger *slog.Logger
}

// NewAgent builds an agent. A nil tool client means no tools are offered.
func NewAgent(m model.Model, tc tools.ToolClient, opts Options, logger *slog.Logger) *Agent {
	if tc == nil {
		tc = tools.NoopToolClient{}
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultOptions().MaxRounds
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Agent{model: m, tools: tc, opts: opts, logger: logger}
}

// Chat runs one query to completion. The answer is every text fragment the
// model produced, across all rounds, concatenated in order.
func (a *Agent) Chat(ctx context.Context, input string) (string, error) {
	log := a.logger.With("query_id", uuid.NewString())
	log.Info("query started", "chars", utf8.RuneCountInString(input))

	catalog, err := a.fetchCatalog(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolExecution, err)
	}
	apiTools := model.ToolsForAPI(catalog.Definitions())

	var transcript []protocol.Message
	if a.opts.SystemPrompt != "" {
		transcript = append(transcript, protocol.SystemMessage(a.opts.SystemPrompt))
	}
	transcript = append(transcript, protocol.UserMessage(input))

	var answer strings.Builder
	for round := 1; round <= a.opts.MaxRounds; round++ {
		resp, err := a.callModel(ctx, transcript, apiTools)
		if err != nil {
			return "", fmt.Errorf("%w: round %d: %w", ErrProvider, round, err)
		}

		switch r := resp.(type) {
		case protocol.TextResponse:
			answer.WriteString(r.Text)
			log.Info("query finished", "rounds", round)
			return answer.String(), nil

		case protocol.ToolCallsResponse:
			answer.WriteString(r.Text)
			if round == a.opts.MaxRounds {
				break
			}
			transcript = append(transcript, protocol.AssistantMessage(r.Text, r.Calls))
			for _, call := range r.Calls {
				msg, err := a.runTool(ctx, log, catalog, call)
				if err != nil {
					return "", fmt.Errorf("%w: tool %s, round %d: %w", ErrToolExecution, call.Name, round, err)
				}
				transcript = append(transcript, msg)
			}

		default:
			return "", fmt.Errorf("%w: round %d: unexpected response %T", ErrProvider, round, resp)
		}
	}

	log.Warn("round limit reached", "max_rounds", a.opts.MaxRounds)
	return "", fmt.Errorf("%w: still calling tools after %d rounds", ErrRoundLimitExceeded, a.opts.MaxRounds)
}

func (a *Agent) fetchCatalog(ctx context.Context) (*tools.Catalog, error) {
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	return tools.Fetch(ctx, a.tools)
}

func (a *Agent) callModel(ctx context.Context, transcript []protocol.Message, apiTools []model.ToolForAPI) (protocol.Response, error) {
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	return a.model.Chat(ctx, model.Request{
		Model:    a.opts.Model,
		Messages: transcript,
		Tools:    apiTools,
		Options: model.Options{
			MaxTokens:   a.opts.MaxTokens,
			Temperature: a.opts.Temperature,
		},
	})
}

// runTool executes one call. Unknown tools and failed results become error
// messages for the model; only a call that could not complete is an error.
func (a *Agent) runTool(ctx context.Context, log *slog.Logger, catalog *tools.Catalog, call protocol.ToolCall) (protocol.Message, error) {
	if _, ok := catalog.Lookup(call.Name); !ok {
		log.Warn("model requested unknown tool", "tool", call.Name)
		return protocol.ToolResultMessage(call, fmt.Sprintf("Error: tool '%s' not found", call.Name), true), nil
	}

	log.Info("calling tool", "tool", call.Name, "args", call.Arguments)
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	start := time.Now()
	res, err := a.tools.Call(ctx, call.Name, tools.ToolArguments(call.Arguments))
	if err != nil {
		return protocol.Message{}, err
	}
	log.Debug("tool returned", "tool", call.Name, "is_error", res.IsError,
		"chars", len(res.Text), "took", time.Since(start))
	return protocol.ToolResultMessage(call, truncate(res.Text, a.opts.MaxResultChars), res.IsError), nil
}

func (a *Agent) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.opts.CallTimeout)
}

// truncate keeps the first limit runes of s and notes how many were cut.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return fmt.Sprintf("%s\n...[truncated %d characters]", string(runes[:limit]), len(runes)-limit)
}
