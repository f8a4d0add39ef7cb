package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/docs-manager/internal/config"
	"github.com/kirillkom/docs-manager/internal/core/classify"
	"github.com/kirillkom/docs-manager/internal/core/filing"
	"github.com/kirillkom/docs-manager/internal/core/ports"
	"github.com/kirillkom/docs-manager/internal/core/usecase"
	"github.com/kirillkom/docs-manager/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/docs-manager/internal/infrastructure/inbox"
	"github.com/kirillkom/docs-manager/internal/infrastructure/ocr/pdftext"
	"github.com/kirillkom/docs-manager/internal/infrastructure/ocr/tesseract"
	natsqueue "github.com/kirillkom/docs-manager/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docs-manager/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/docs-manager/internal/infrastructure/resilience"
	"github.com/kirillkom/docs-manager/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docs-manager/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Documents *localfs.Storage
	Temp      *localfs.Storage
	Catalog   *sqlstore.CatalogRepository
	Metrics   *metrics.FilingMetrics
	Executor  *resilience.Executor

	Policy    filing.Policy
	Text      *usecase.TextPipeline
	CaptureUC *usecase.CaptureUseCase
	ImportUC  *usecase.ImportUseCase
	LibraryUC *usecase.LibraryUseCase
	PreviewUC *usecase.PreviewUseCase
	Exporter  *xlsx.Exporter

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	documents, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init document storage: %w", err)
	}
	temp, err := localfs.New(cfg.TempPath)
	if err != nil {
		return nil, fmt.Errorf("init temp storage: %w", err)
	}

	db, err := sqlstore.OpenDB(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	catalog := sqlstore.NewCatalogRepository(db, cfg.CatalogDriver)
	if err := catalog.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure catalog schema: %w", err)
	}

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.RetryMaxAttempts = cfg.RetryMaxAttempts
	executor := resilience.NewExecutor(resilienceCfg, logger)

	var publisher ports.EventPublisher
	var natsPublisher *natsqueue.Publisher
	if cfg.NATSURL != "" {
		natsPublisher, err = natsqueue.New(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		publisher = natsPublisher
	}

	var recognizer ports.TextRecognizer
	if cfg.OCREngine == config.OCREngineTesseract {
		recognizer = tesseract.NewRecognizer(strings.FieldsFunc(cfg.OCRLanguages, func(r rune) bool {
			return r == '+' || r == ','
		}))
	}

	filingMetrics := metrics.NewFilingMetrics("docs-manager")
	filingMetrics.SetOCRAvailable(recognizer != nil)

	policy := filing.NewPolicy(cfg.Filing())
	text := usecase.NewTextPipeline(recognizer, pdftext.NewExtractor(), classify.NewClassifier(), logger)
	filer := usecase.NewDocumentFiler(documents, temp, policy, catalog, publisher, filingMetrics, logger)

	logger.Info("docs manager initialized",
		"storage_path", documents.BasePath(),
		"temp_path", temp.BasePath(),
		"filing_mode", string(policy.Mode),
		"ocr_available", text.OCRAvailable(),
		"catalog_driver", cfg.CatalogDriver,
		"events_enabled", publisher != nil,
	)

	return &App{
		Config: cfg,
		Logger: logger,

		Documents: documents,
		Temp:      temp,
		Catalog:   catalog,
		Metrics:   filingMetrics,
		Executor:  executor,

		Policy:    policy,
		Text:      text,
		CaptureUC: usecase.NewCaptureUseCase(temp, text, filer, filingMetrics),
		ImportUC:  usecase.NewImportUseCase(temp, text, filer, filingMetrics, logger),
		LibraryUC: usecase.NewLibraryUseCase(documents, catalog, logger),
		PreviewUC: usecase.NewPreviewUseCase(policy),
		Exporter:  xlsx.NewExporter(catalog, logger),

		closeFn: closer(db, natsPublisher),
	}, nil
}

// InboxWatcher returns the drop-folder watcher, or nil when INBOX_PATH is unset.
func (a *App) InboxWatcher() *inbox.Watcher {
	if a.Config.InboxPath == "" {
		return nil
	}
	return inbox.New(inbox.Config{
		Root:        a.Config.InboxPath,
		Debounce:    a.Config.InboxDebounce,
		InitialScan: true,
	}, a.ImportUC, a.Logger)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closer(db *sql.DB, publisher *natsqueue.Publisher) func() {
	return func() {
		if publisher != nil {
			publisher.Close()
		}
		_ = db.Close()
	}
}
