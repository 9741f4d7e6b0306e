package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/intellidocs/internal/adapters/mcp"
	"github.com/kirillkom/intellidocs/internal/bootstrap"
	"github.com/kirillkom/intellidocs/internal/config"
	"github.com/kirillkom/intellidocs/internal/observability/logging"
)

const (
	service = "mcp"
	version = "1.0.0"
)

// Logs go to stderr: stdout carries the MCP stdio transport.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger(os.Stderr, service, "info").Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(os.Stderr, service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service, logger)
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.New(app.ProcessUC, app.Repo, version, logger)
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp_serve_error", "error", err)
	}
}
