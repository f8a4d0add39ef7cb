package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docs-manager/internal/core/classify"
	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/filing"
	"github.com/kirillkom/docs-manager/internal/core/ports"
)

const maxNameCollisions = 1000

// DocumentFiler moves classified captures from the temp area into the
// documents tree and records the result. Catalog and publisher failures are
// logged and do not fail the filing. Moves run one at a time so a free
// name stays free until the file lands on it.
type DocumentFiler struct {
	mu        sync.Mutex
	documents ports.FileStorage
	temp      ports.FileStorage
	policy    filing.Policy
	catalog   ports.Catalog
	publisher ports.EventPublisher
	observer  ports.FilingObserver
	logger    *slog.Logger
	now       func() time.Time
}

func NewDocumentFiler(
	documents ports.FileStorage,
	temp ports.FileStorage,
	policy filing.Policy,
	catalog ports.Catalog,
	publisher ports.EventPublisher,
	observer ports.FilingObserver,
	logger *slog.Logger,
) *DocumentFiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentFiler{
		documents: documents,
		temp:      temp,
		policy:    policy,
		catalog:   catalog,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
		now:       time.Now,
	}
}

func (f *DocumentFiler) Policy() filing.Policy {
	return f.policy
}

func (f *DocumentFiler) File(ctx context.Context, capture domain.Capture) (*domain.FiledDocument, error) {
	started := f.now()
	f.mu.Lock()
	filed, err := f.file(ctx, capture)
	f.mu.Unlock()
	if f.observer != nil {
		f.observer.ObserveFiling(capture.Classified.Type, f.now().Sub(started), err)
	}
	if err != nil {
		f.logger.Error("document filing failed",
			"capture_id", capture.ID,
			"temp_key", capture.TempKey,
			"error", err,
		)
		return nil, err
	}

	f.logger.Info("document filed",
		"capture_id", capture.ID,
		"path", filed.Path,
		"document_type", string(filed.Classified.Type),
	)
	f.record(ctx, filed)
	f.publish(ctx, filed)
	return filed, nil
}

func (f *DocumentFiler) file(ctx context.Context, capture domain.Capture) (*domain.FiledDocument, error) {
	target := f.policy.ComputeTarget(capture.Classified, capture.CaptureMillis(), capture.MimeType)

	if err := f.documents.CreateDir(ctx, target.Dir); err != nil {
		return nil, fmt.Errorf("create folder %q: %w", target.Dir, err)
	}

	key, err := f.freeKey(ctx, target)
	if err != nil {
		return nil, err
	}

	srcPath, err := f.temp.Resolve(capture.TempKey)
	if err != nil {
		return nil, fmt.Errorf("resolve temp file: %w", err)
	}
	if err := f.documents.Move(ctx, srcPath, key); err != nil {
		return nil, fmt.Errorf("move capture into %q: %w", key, err)
	}

	folder, name := path.Split(key)
	return &domain.FiledDocument{
		ID:          uuid.NewString(),
		CaptureID:   capture.ID,
		Classified:  capture.Classified,
		Folder:      strings.TrimSuffix(folder, "/"),
		FileName:    name,
		Path:        key,
		MimeType:    capture.MimeType,
		AadhaarLast: aadhaarLast4(capture),
		Text:        capture.Text,
		CapturedAt:  capture.CapturedAt,
		FiledAt:     f.now().UTC(),
	}, nil
}

// freeKey keeps an existing file from being overwritten by appending a
// counter to the computed name.
func (f *DocumentFiler) freeKey(ctx context.Context, target domain.FilingTarget) (string, error) {
	key := target.Key()
	exists, err := f.documents.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check target %q: %w", key, err)
	}
	if !exists {
		return key, nil
	}

	ext := path.Ext(target.FileName)
	stem := strings.TrimSuffix(target.FileName, ext)
	for i := 1; i <= maxNameCollisions; i++ {
		candidate := path.Join(target.Dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		exists, err := f.documents.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check target %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", domain.WrapError(domain.ErrStorage, "pick target name", fmt.Errorf("too many files named like %q", key))
}

func (f *DocumentFiler) record(ctx context.Context, filed *domain.FiledDocument) {
	if f.catalog == nil {
		return
	}
	if err := f.catalog.Record(ctx, filed); err != nil {
		f.logger.Warn("catalog record failed", "path", filed.Path, "error", err)
	}
}

func (f *DocumentFiler) publish(ctx context.Context, filed *domain.FiledDocument) {
	if f.publisher == nil {
		return
	}
	if err := f.publisher.PublishDocumentFiled(ctx, *filed); err != nil {
		f.logger.Warn("publish document.filed failed", "path", filed.Path, "error", err)
	}
}

func aadhaarLast4(capture domain.Capture) string {
	if capture.Classified.Type != domain.TypeAadhaar {
		return ""
	}
	return classify.AadhaarLast4(capture.Text)
}
