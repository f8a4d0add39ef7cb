package main

import (
	"context"
	"os"

	"github.com/kirillkom/docs-manager/internal/bootstrap"
	"github.com/kirillkom/docs-manager/internal/config"
	"github.com/kirillkom/docs-manager/internal/observability/logging"
)

func main() {
	logger := logging.NewJSONLoggerTo(os.Stderr, "docsctl", envOr("LOG_LEVEL", "warn"))

	open := func(ctx context.Context) (*services, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		app, err := bootstrap.New(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return &services{
			text:     app.Text,
			policy:   app.Policy,
			importer: app.ImportUC,
			library:  app.LibraryUC,
			exporter: app.Exporter,
		}, app.Close, nil
	}

	if err := newRootCmd(open).Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
