// cmd/mcp_client/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/windlant/mcp-bridge/internal/config"
	"github.com/windlant/mcp-bridge/internal/session"
)

type flags struct {
	configPath string
	url        string
	provider   string
	model      string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "mcp_client",
		Short:         "Chat with a model that can call tools on an MCP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), f)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", config.DefaultPath, "path to the YAML config file")
	cmd.Flags().StringVar(&f.url, "url", "", "tool server endpoint (overrides server.url)")
	cmd.Flags().StringVar(&f.provider, "provider", "", "model provider: ollama, deepseek, openai, openai-compatible, anthropic")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model name (overrides model.model_name)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Read(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if f.url != "" {
		cfg.Server.URL = f.url
	}
	if f.provider != "" {
		cfg.Model.Provider = f.provider
	}
	if f.model != "" {
		cfg.Model.ModelName = f.model
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	}))
}

func run(ctx context.Context, f flags) error {
	// 配置加载顺序：文件 -> 环境变量 -> 命令行参数
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = session.With(ctx, cfg, session.Deps{Logger: logger},
		func(ctx context.Context, s *session.Session) (struct{}, error) {
			printBanner(ctx, s)
			return struct{}{}, readLoop(ctx, os.Stdin, os.Stdout, s)
		})
	return exitErr(ctx, err)
}

// exitErr drops the error an interrupt causes by itself; cleanup failures
// are still reported.
func exitErr(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	fmt.Println("\nExiting...")
	if errors.Is(err, session.ErrCleanup) {
		return err
	}
	return nil
}

func printBanner(ctx context.Context, s *session.Session) {
	fmt.Println("MCP Client started!")
	fmt.Printf("Server: %s\n", s.Config.Server.URL)
	fmt.Printf("Model: %s (%s)\n", s.Config.Model.ModelName, s.Config.Model.Provider)
	if !s.Config.Tools.Enabled {
		fmt.Println("Tool calling: disabled")
	} else if defs, err := s.Tools(ctx); err == nil {
		names := make([]string, 0, len(defs))
		for _, d := range defs {
			names = append(names, d.Name)
		}
		fmt.Printf("Tool calling: enabled (%s)\n", strings.Join(names, ", "))
	}
	fmt.Println("Type your queries or 'quit' to exit, 'tools' to list tools.")
}
