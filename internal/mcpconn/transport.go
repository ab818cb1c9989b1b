package mcpconn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrInvalidEndpoint marks an endpoint string that cannot name any transport.
// It is never retried.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// TransportFactory builds a fresh, unopened transport for one connect attempt.
type TransportFactory func(ctx context.Context, endpoint string) (mcp.Transport, error)

const (
	stdioScheme = "stdio://"
	sseScheme   = "sse://"
)

type transportKind int

const (
	kindStdio transportKind = iota
	kindSSE
	kindStreamable
)

// NewTransportFactory returns the default factory. Endpoints are read as:
//
//	stdio://cmd args         subprocess over stdio
//	sse://host/path          SSE, https assumed
//	http(s)+sse://...        SSE
//	http(s)+stream://...     streamable HTTP (also +streamable, +http, +json)
//	http(s)://...            SSE
//	anything else            command line run over stdio
//
// HTTP transports share client, which should carry dial and header timeouts.
func NewTransportFactory(client *http.Client) TransportFactory {
	return func(ctx context.Context, endpoint string) (mcp.Transport, error) {
		kind, target, err := parseEndpoint(endpoint)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
		}
		switch kind {
		case kindSSE:
			return &mcp.SSEClientTransport{Endpoint: target, HTTPClient: client}, nil
		case kindStreamable:
			return &mcp.StreamableClientTransport{Endpoint: target, HTTPClient: client}, nil
		default:
			parts := strings.Fields(target)
			// #nosec G204 -- the command comes from local configuration
			cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
			return &mcp.CommandTransport{Command: cmd}, nil
		}
	}
}

// newHTTPClient bounds how long opening an HTTP stream may take without
// capping the lifetime of the stream itself.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

// parseEndpoint resolves an endpoint string into a transport kind and the
// target (URL or command line) for that transport.
func parseEndpoint(raw string) (transportKind, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", errors.New("endpoint is empty")
	}
	lowered := strings.ToLower(raw)

	switch {
	case strings.HasPrefix(lowered, stdioScheme):
		cmd := strings.TrimSpace(raw[len(stdioScheme):])
		if cmd == "" {
			return 0, "", errors.New("stdio command is empty")
		}
		return kindStdio, cmd, nil
	case strings.HasPrefix(lowered, sseScheme):
		target, err := normalizeHTTPURL(raw[len(sseScheme):], true)
		if err != nil {
			return 0, "", fmt.Errorf("sse endpoint: %w", err)
		}
		return kindSSE, target, nil
	}

	if kind, target, matched, err := parseHintedURL(raw); matched || err != nil {
		return kind, target, err
	}

	if strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://") {
		target, err := normalizeHTTPURL(raw, false)
		if err != nil {
			return 0, "", fmt.Errorf("sse endpoint: %w", err)
		}
		return kindSSE, target, nil
	}
	return kindStdio, raw, nil
}

// parseHintedURL handles the http+hint:// forms.
func parseHintedURL(raw string) (transportKind, string, bool, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return 0, "", false, nil
	}
	base, hint, ok := strings.Cut(strings.ToLower(u.Scheme), "+")
	if !ok || (base != "http" && base != "https") {
		return 0, "", false, nil
	}
	if i := strings.IndexByte(hint, '+'); i >= 0 {
		hint = hint[:i]
	}

	var kind transportKind
	switch hint {
	case "sse":
		kind = kindSSE
	case "stream", "streamable", "http", "json":
		kind = kindStreamable
	default:
		return 0, "", true, fmt.Errorf("unsupported HTTP transport hint %q", hint)
	}
	plain := *u
	plain.Scheme = base
	target, err := normalizeHTTPURL(plain.String(), false)
	if err != nil {
		return 0, "", true, fmt.Errorf("%s endpoint: %w", hint, err)
	}
	return kind, target, true, nil
}

func normalizeHTTPURL(raw string, guessScheme bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("endpoint is empty")
	}
	if guessScheme && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	u.Scheme = scheme
	return u.String(), nil
}
