package mcpconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	// ErrConnectTimeout marks an attempt whose handshake outlived ConnectTimeout.
	ErrConnectTimeout = errors.New("connect timeout")

	// ErrRetriesExhausted marks a Connect that used up every attempt.
	ErrRetriesExhausted = errors.New("connect retries exhausted")
)

// RetriesExhaustedError reports the final outcome of a failed Connect.
type RetriesExhaustedError struct {
	Endpoint string
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("connect %s: %d attempts failed, last error: %v", e.Endpoint, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Is(target error) bool { return target == ErrRetriesExhausted }

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

type Config struct {
	Endpoint       string
	ConnectTimeout time.Duration
	MaxRetries     int
	BaseDelay      time.Duration
}

func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:       endpoint,
		ConnectTimeout: 30 * time.Second,
		MaxRetries:     5,
		BaseDelay:      time.Second,
	}
}

// Manager opens connections to one tool server.
type Manager struct {
	cfg          Config
	client       *mcp.Client
	newTransport TransportFactory
	sleep        func(context.Context, time.Duration) error
	logger       *slog.Logger

	mu    sync.Mutex
	state State
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTransportFactory replaces how each attempt builds its transport.
func WithTransportFactory(f TransportFactory) Option {
	return func(m *Manager) { m.newTransport = f }
}

// WithSleep replaces the backoff wait. The function must return early with
// the context's error when ctx is done.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(m *Manager) { m.sleep = f }
}

func NewManager(cfg Config, opts ...Option) *Manager {
	def := DefaultConfig(cfg.Endpoint)
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	m := &Manager{
		cfg:    cfg,
		client: mcp.NewClient(&mcp.Implementation{Name: "mcp-bridge", Version: "dev"}, nil),
		sleep:  sleepContext,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	m.newTransport = NewTransportFactory(newHTTPClient(cfg.ConnectTimeout))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Config() Config { return m.cfg }

// State reports the outcome of the latest Connect: Connecting while it
// runs, then Ready or Failed.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Backoff is the wait after the given failed attempt: base * 2^(attempt-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return base * time.Duration(int64(1)<<(attempt-1))
}

// Connect tries up to MaxRetries times to open and initialize a session,
// waiting Backoff between attempts. The returned Connection is Ready; ctx
// bounds the connection's lifetime for stdio and SSE streams, so it should
// live as long as the session.
func (m *Manager) Connect(ctx context.Context) (*Connection, error) {
	m.setState(Connecting)
	conn, err := m.connect(ctx)
	if err != nil {
		m.setState(Failed)
		return nil, err
	}
	m.setState(Ready)
	return conn, nil
}

func (m *Manager) connect(ctx context.Context) (*Connection, error) {
	var last error
	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.logger.Info("connecting to tool server",
			"endpoint", m.cfg.Endpoint, "attempt", attempt, "max_attempts", m.cfg.MaxRetries)

		conn, err := m.attempt(ctx)
		if err == nil {
			m.logger.Info("tool server ready", "endpoint", m.cfg.Endpoint, "attempt", attempt)
			return conn, nil
		}
		if errors.Is(err, ErrInvalidEndpoint) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		last = err

		if attempt == m.cfg.MaxRetries {
			m.logger.Error("connect attempt failed", "endpoint", m.cfg.Endpoint, "attempt", attempt, "err", err)
			break
		}
		delay := Backoff(m.cfg.BaseDelay, attempt)
		m.logger.Warn("connect attempt failed",
			"endpoint", m.cfg.Endpoint, "attempt", attempt, "retry_in", delay, "err", err)
		if err := m.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, &RetriesExhaustedError{Endpoint: m.cfg.Endpoint, Attempts: m.cfg.MaxRetries, Last: last}
}

// attempt opens the stream under ctx and runs initialize under
// ConnectTimeout. On failure everything it opened is closed again.
func (m *Manager) attempt(ctx context.Context) (*Connection, error) {
	transport, err := m.newTransport(ctx, m.cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	stream, err := transport.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	// SDK 的 Connect 在 ctx 结束后仍会等待对端，这里直接关流让它返回
	stop := context.AfterFunc(initCtx, func() { _ = stream.Close() })
	session, err := m.client.Connect(initCtx, openedTransport{conn: stream}, nil)
	if err == nil && !stop() {
		// initialize finished just as the deadline closed the stream
		go func() { _ = session.Close() }()
		err = initCtx.Err()
	}
	if err != nil {
		// The SDK may already have closed the stream; a second close is harmless.
		if closeErr := stream.Close(); closeErr != nil && !isClosedErr(closeErr) {
			m.logger.Debug("close failed stream", "endpoint", m.cfg.Endpoint, "err", closeErr)
		}
		if errors.Is(initCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s: %w", ErrConnectTimeout, m.cfg.ConnectTimeout, err)
		}
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return &Connection{
		endpoint: m.cfg.Endpoint,
		state:    Ready,
		session:  session,
		stream:   stream,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
