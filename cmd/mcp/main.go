package main

import (
	"context"
	"os"

	mcpadapter "github.com/kirillkom/docs-manager/internal/adapters/mcp"
	"github.com/kirillkom/docs-manager/internal/bootstrap"
	"github.com/kirillkom/docs-manager/internal/config"
	"github.com/kirillkom/docs-manager/internal/observability/logging"
)

var version = "dev"

func main() {
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "docs-mcp", os.Getenv("LOG_LEVEL"))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}
	logger = logging.NewJSONLoggerTo(os.Stderr, "docs-mcp", cfg.LogLevel)

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.PreviewUC, app.LibraryUC, logger)
	if err := srv.ServeStdio(version); err != nil {
		logger.Error("mcp server error", "error", err)
		app.Close()
		os.Exit(1)
	}
}
