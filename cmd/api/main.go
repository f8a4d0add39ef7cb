package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/docs-manager/internal/adapters/http"
	"github.com/kirillkom/docs-manager/internal/bootstrap"
	"github.com/kirillkom/docs-manager/internal/config"
	"github.com/kirillkom/docs-manager/internal/observability/logging"
	"github.com/kirillkom/docs-manager/internal/observability/metrics"
)

func main() {
	logger := logging.NewJSONLogger("docs-api", os.Getenv("LOG_LEVEL"))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}
	logger = logging.NewJSONLogger("docs-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var httpMetrics *metrics.HTTPServerMetrics
	if cfg.MetricsEnabled {
		httpMetrics = metrics.NewHTTPServerMetrics("docs-api", app.Metrics.Gatherer())
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Captures:   app.CaptureUC,
		Importer:   app.ImportUC,
		Library:    app.LibraryUC,
		Classifier: app.PreviewUC,
		Exporter:   app.Exporter,
	}, httpMetrics, logger)
	handler, err := router.Handler(ctx)
	if err != nil {
		logger.Error("router error", "error", err)
		os.Exit(1)
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("listen error", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	if watcher := app.InboxWatcher(); watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort, "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
	wg.Wait()
}
