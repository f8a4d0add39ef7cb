package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/docs-manager/internal/core/classify"
	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/ports"
)

// TextPipeline turns a stored file into a classification. Both text
// sources are optional; a missing source or a failed read yields the
// default classification so the file can still be filed.
type TextPipeline struct {
	recognizer ports.TextRecognizer
	extractor  ports.TextExtractor
	classifier ports.DocumentClassifier
	logger     *slog.Logger
}

func NewTextPipeline(
	recognizer ports.TextRecognizer,
	extractor ports.TextExtractor,
	classifier ports.DocumentClassifier,
	logger *slog.Logger,
) *TextPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextPipeline{
		recognizer: recognizer,
		extractor:  extractor,
		classifier: classifier,
		logger:     logger,
	}
}

// OCRAvailable reports whether image recognition is configured.
func (p *TextPipeline) OCRAvailable() bool {
	return p.recognizer != nil
}

// Read returns the normalized text, its classification, and whether any
// text source actually ran.
func (p *TextPipeline) Read(ctx context.Context, path, mimeType string) (string, domain.ClassifiedDocument, bool) {
	raw, ok := p.rawText(ctx, path, mimeType)
	if !ok {
		return "", domain.DefaultClassification(), false
	}

	doc, err := p.classifier.Classify(ctx, raw)
	if err != nil {
		p.logger.Warn("classification failed", "path", path, "error", err)
		return "", domain.DefaultClassification(), false
	}
	return classify.Normalize(raw), doc, true
}

func (p *TextPipeline) rawText(ctx context.Context, path, mimeType string) (string, bool) {
	var (
		text string
		err  error
	)
	switch {
	case isImage(mimeType):
		if p.recognizer == nil {
			return "", false
		}
		text, err = p.recognizer.Recognize(ctx, path)
	case isPDF(mimeType):
		if p.extractor == nil {
			return "", false
		}
		text, err = p.extractor.Extract(ctx, path)
	default:
		return "", false
	}
	if err != nil {
		p.logger.Warn("text recognition failed", "path", path, "mime_type", mimeType, "error", err)
		return "", false
	}
	return text, true
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

func isPDF(mimeType string) bool {
	return mimeType == "application/pdf"
}
