package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/kirillkom/docs-manager/internal/core/classify"
	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/filing"
)

// PreviewUseCase runs the text pipeline over supplied text without touching
// storage.
type PreviewUseCase struct {
	policy filing.Policy
	now    func() time.Time
}

func NewPreviewUseCase(policy filing.Policy) *PreviewUseCase {
	return &PreviewUseCase{policy: policy, now: time.Now}
}

func (uc *PreviewUseCase) Preview(_ context.Context, rawText, mimeType string) (*domain.ClassificationPreview, error) {
	if len(rawText) > maxPreviewTextBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "preview", errors.New("text is too large"))
	}
	if mimeType == "" {
		mimeType = captureMimeType
	}

	normalized := classify.Normalize(rawText)
	doc := classify.Classify(normalized)
	return &domain.ClassificationPreview{
		NormalizedText: normalized,
		Classified:     doc,
		Target:         uc.policy.ComputeTarget(doc, uc.now().UnixMilli(), mimeType),
	}, nil
}

const maxPreviewTextBytes = 1 << 20
