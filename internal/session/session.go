// Package session owns the resources one interactive client needs: a model
// client, a tool-server connection, and the agent built on them.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/windlant/mcp-bridge/internal/agent"
	"github.com/windlant/mcp-bridge/internal/config"
	"github.com/windlant/mcp-bridge/internal/mcpconn"
	"github.com/windlant/mcp-bridge/internal/model"
	"github.com/windlant/mcp-bridge/internal/tools"
)

const defaultReleaseTimeout = 10 * time.Second

// Deps are the seams With uses to build resources. Zero values use the real
// implementations.
type Deps struct {
	Logger         *slog.Logger
	HTTPClient     *http.Client
	NewModel       func(config.ModelConfig) (model.Model, error)
	ConnOptions    []mcpconn.Option
	ReleaseTimeout time.Duration
}

// Session is an open set of resources. Queries run one at a time.
type Session struct {
	Config *config.Config
	Model  model.Model
	Conn   *mcpconn.Connection

	agent *agent.Agent
	mu    sync.Mutex
}

// Query runs one query through the agent. A failed query leaves the session
// usable.
func (s *Session) Query(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent.Chat(ctx, text)
}

// Tools lists what the server currently offers.
func (s *Session) Tools(ctx context.Context) ([]tools.ToolDefinition, error) {
	return s.Conn.List(ctx)
}

// With opens a session, runs body, and releases everything it acquired on
// every exit path: normal return, error, panic, or cancellation of ctx.
// Release errors are joined with body's error, never replacing it.
func With[T any](ctx context.Context, cfg *config.Config, deps Deps, body func(context.Context, *Session) (T, error)) (result T, err error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	releaseTimeout := deps.ReleaseTimeout
	if releaseTimeout <= 0 {
		releaseTimeout = defaultReleaseTimeout
	}

	rel := &Releaser{}
	defer func() {
		p := recover()
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		logger.Debug("releasing session", "resources", rel.Len())
		if cerr := rel.Release(relCtx); cerr != nil {
			logger.Error("session cleanup failed", "err", cerr)
			err = errors.Join(err, cerr)
		}
		if p != nil {
			panic(p)
		}
	}()

	sessCtx, cancel := context.WithCancel(ctx)
	rel.Push("context", func(context.Context) error {
		cancel()
		return nil
	})

	s, err := open(sessCtx, cfg, deps, logger, rel)
	if err != nil {
		return result, err
	}
	return body(sessCtx, s)
}

// open acquires the model client, then the connection, pushing each onto rel
// as soon as it exists.
func open(ctx context.Context, cfg *config.Config, deps Deps, logger *slog.Logger, rel *Releaser) (*Session, error) {
	newModel := deps.NewModel
	if newModel == nil {
		newModel = func(mc config.ModelConfig) (model.Model, error) {
			return model.New(mc, deps.HTTPClient, logger)
		}
	}
	m, err := newModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	rel.PushCloser("model client", m)

	opts := append([]mcpconn.Option{mcpconn.WithLogger(logger)}, deps.ConnOptions...)
	mgr := mcpconn.NewManager(mcpconn.Config{
		Endpoint:       cfg.Server.URL,
		ConnectTimeout: cfg.Server.ConnectTimeout,
		MaxRetries:     cfg.Server.MaxRetries,
		BaseDelay:      cfg.Server.BaseDelay,
	}, opts...)
	conn, err := mgr.Connect(ctx)
	if err != nil {
		return nil, err
	}
	rel.Push("tool connection", conn.CloseContext)

	var tc tools.ToolClient = conn
	if !cfg.Tools.Enabled {
		tc = tools.NoopToolClient{}
	}
	ag := agent.NewAgent(m, tc, agent.Options{
		Model:          cfg.Model.ModelName,
		MaxRounds:      cfg.Agent.MaxRounds,
		CallTimeout:    cfg.Agent.CallTimeout,
		MaxResultChars: cfg.Agent.MaxResultChars,
		SystemPrompt:   cfg.Agent.SystemPrompt,
		MaxTokens:      cfg.Model.MaxTokens,
		Temperature:    float64(cfg.Model.Temperature),
	}, logger)

	return &Session{Config: cfg, Model: m, Conn: conn, agent: ag}, nil
}
