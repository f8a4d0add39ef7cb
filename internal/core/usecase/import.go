package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/ports"
)

// ImportUseCase files a picked document in one step.
type ImportUseCase struct {
	temp     ports.FileStorage
	text     *TextPipeline
	filer    *DocumentFiler
	observer ports.FilingObserver
	logger   *slog.Logger
	now      func() time.Time
}

func NewImportUseCase(
	temp ports.FileStorage,
	text *TextPipeline,
	filer *DocumentFiler,
	observer ports.FilingObserver,
	logger *slog.Logger,
) *ImportUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportUseCase{
		temp:     temp,
		text:     text,
		filer:    filer,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

func (uc *ImportUseCase) Import(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.FiledDocument, error) {
	return uc.ImportFrom(ctx, domain.SourcePicker, filename, mimeType, body)
}

// ImportFrom is Import with an explicit capture source.
func (uc *ImportUseCase) ImportFrom(
	ctx context.Context,
	source domain.CaptureSource,
	filename, mimeType string,
	body io.Reader,
) (*domain.FiledDocument, error) {
	mediaType, err := normalizeMimeType(mimeType)
	if err != nil {
		uc.observe(source, "rejected")
		return nil, err
	}

	capturedAt := uc.now().UTC()
	key := fmt.Sprintf("%d_%s", capturedAt.UnixMilli(), sanitizeFilename(filename))
	if err := uc.temp.Save(ctx, key, body); err != nil {
		uc.observe(source, "failed")
		return nil, fmt.Errorf("save picked file: %w", err)
	}

	path, err := uc.temp.Resolve(key)
	if err != nil {
		uc.discardTemp(ctx, key)
		uc.observe(source, "failed")
		return nil, fmt.Errorf("resolve picked file: %w", err)
	}

	text, classified, recognized := uc.text.Read(ctx, path, mediaType)
	capture := domain.Capture{
		ID:           uuid.NewString(),
		Source:       source,
		State:        domain.CaptureQueued,
		TempKey:      key,
		OriginalName: filename,
		MimeType:     mediaType,
		Text:         text,
		Classified:   classified,
		Recognized:   recognized,
		CapturedAt:   capturedAt,
	}

	filed, err := uc.filer.File(ctx, capture)
	if err != nil {
		uc.discardTemp(ctx, key)
		uc.observe(source, "failed")
		return nil, fmt.Errorf("file picked document: %w", err)
	}
	uc.observe(source, string(domain.CaptureFiled))
	return filed, nil
}

func (uc *ImportUseCase) discardTemp(ctx context.Context, key string) {
	if err := uc.temp.Delete(ctx, key); err != nil {
		uc.logger.Warn("temp cleanup failed", "temp_key", key, "error", err)
	}
}

func (uc *ImportUseCase) observe(source domain.CaptureSource, outcome string) {
	if uc.observer != nil {
		uc.observer.ObserveCapture(source, outcome)
	}
}

// normalizeMimeType strips parameters and accepts images and PDFs only.
func normalizeMimeType(mimeType string) (string, error) {
	if strings.TrimSpace(mimeType) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "import", errors.New("mime type is required"))
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "import", fmt.Errorf("parse mime type %q: %w", mimeType, err))
	}
	if !isImage(mediaType) && !isPDF(mediaType) {
		return "", domain.WrapError(domain.ErrInvalidInput, "import", fmt.Errorf("unsupported mime type %q", mediaType))
	}
	return mediaType, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || strings.Trim(base, ".") == "" {
		return "document"
	}
	return base
}
