package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the client looks for its configuration file.
const DefaultPath = "config/config.yaml"

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	Agent  AgentConfig  `yaml:"agent"`
	Tools  ToolsConfig  `yaml:"tools"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	URL            string        `yaml:"url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	BaseDelay      time.Duration `yaml:"base_delay"`
}

type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	ModelName   string  `yaml:"model_name"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type AgentConfig struct {
	MaxRounds      int           `yaml:"max_rounds"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	MaxResultChars int           `yaml:"max_result_chars"`
	SystemPrompt   string        `yaml:"system_prompt"`
}

type ToolsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ConnectTimeout: 30 * time.Second,
			MaxRetries:     5,
			BaseDelay:      time.Second,
		},
		Model: ModelConfig{
			Provider:  "ollama",
			ModelName: "llama3.1:8b",
			MaxTokens: 500,
		},
		Agent: AgentConfig{
			MaxRounds:   10,
			CallTimeout: 60 * time.Second,
		},
		Tools: ToolsConfig{Enabled: true},
		Log:   LogConfig{Level: "info"},
	}
}

// Load is Read followed by Validate.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads the YAML file at path on top of Default, then applies
// environment overrides. A missing file is tolerated so that a client can be
// configured purely from the environment. The result is not validated, so
// callers layering further overrides validate once at the end.
func Read(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MCP_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("MCP_MODEL_PROVIDER"); v != "" {
		c.Model.Provider = v
	}
	if v := os.Getenv("MCP_MODEL_NAME"); v != "" {
		c.Model.ModelName = v
	}
	if v := os.Getenv("MCP_MODEL_BASE_URL"); v != "" {
		c.Model.BaseURL = v
	}
	if v := os.Getenv("MCP_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv(providerKeyEnv(c.Model.Provider))
	}
	if v := os.Getenv("MCP_MAX_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MCP_MAX_ROUNDS %q: %v", ErrInvalid, v, err)
		}
		c.Agent.MaxRounds = n
	}
	if v := os.Getenv("MCP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// providerKeyEnv names the conventional API key variable for a provider.
func providerKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	}
	return ""
}

// Validate checks the settings the client cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.URL) == "" {
		errs = append(errs, errors.New("server.url is required"))
	}
	if c.Server.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("server.max_retries must be >= 1, got %d", c.Server.MaxRetries))
	}
	if c.Server.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("server.connect_timeout must be positive"))
	}
	if c.Server.BaseDelay < 0 {
		errs = append(errs, errors.New("server.base_delay must not be negative"))
	}
	if strings.TrimSpace(c.Model.ModelName) == "" {
		errs = append(errs, errors.New("model.model_name is required"))
	}
	if c.Agent.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("agent.max_rounds must be >= 1, got %d", c.Agent.MaxRounds))
	}
	if c.Agent.MaxResultChars < 0 {
		errs = append(errs, errors.New("agent.max_result_chars must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
