package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// 通过 stdio 提供内置工具；stdout 专用于协议消息，日志写到 stderr
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		only     []string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:          "mcp_server_local",
		Short:        "Serve the builtin tools over MCP on stdin/stdout",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
				lvl = slog.LevelInfo
			}
			logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl, TimeFormat: time.TimeOnly}))

			srv, err := NewServer(only)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("serving tools over stdio", "name", serverName, "version", serverVersion)
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("server stopped", "err", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "tools", nil, "comma-separated builtin tools to serve (default all)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}
