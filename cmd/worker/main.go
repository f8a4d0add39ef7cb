package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/docs-manager/internal/bootstrap"
	"github.com/kirillkom/docs-manager/internal/config"
	"github.com/kirillkom/docs-manager/internal/observability/logging"
)

// The worker runs the inbox watcher without the HTTP API, for headless
// scanners that drop files into a shared folder.
func main() {
	logger := logging.NewJSONLogger("docs-worker", os.Getenv("LOG_LEVEL"))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}
	logger = logging.NewJSONLogger("docs-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	watcher := app.InboxWatcher()
	if watcher == nil {
		logger.Error("INBOX_PATH is required for the worker")
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(app.Metrics.Gatherer(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker metrics server error", "error", err)
			}
		}()
	}

	logger.Info("worker watching inbox", "path", cfg.InboxPath)
	if err := watcher.Run(ctx); err != nil {
		logger.Error("inbox watcher error", "error", err)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}
