package model

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/windlant/mcp-bridge/internal/config"
)

// ErrUnknownProvider 表示配置中的 provider 不受支持
var ErrUnknownProvider = errors.New("unknown model provider")

// New 按 cfg.Provider 创建模型客户端；httpClient 和 logger 可为 nil
func New(cfg config.ModelConfig, httpClient *http.Client, logger *slog.Logger) (Model, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "deepseek", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s API key is required", provider)
		}
		return NewChatCompletions(provider, cfg.BaseURL, cfg.APIKey, httpClient, logger)
	case "ollama", "openai-compatible":
		return NewChatCompletions(provider, cfg.BaseURL, cfg.APIKey, httpClient, logger)
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, httpClient, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}
