package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/ports"
)

const captureMimeType = "image/jpeg"

// CaptureUseCase drives the camera flow: one capture awaits a decision at a
// time, continued captures are batched and filed together on Done.
type CaptureUseCase struct {
	mu       sync.Mutex
	temp     ports.FileStorage
	text     *TextPipeline
	filer    *DocumentFiler
	observer ports.FilingObserver
	now      func() time.Time

	pending *domain.Capture
	queued  []domain.Capture
}

func NewCaptureUseCase(
	temp ports.FileStorage,
	text *TextPipeline,
	filer *DocumentFiler,
	observer ports.FilingObserver,
) *CaptureUseCase {
	return &CaptureUseCase{
		temp:     temp,
		text:     text,
		filer:    filer,
		observer: observer,
		now:      time.Now,
	}
}

func (uc *CaptureUseCase) Capture(ctx context.Context, in ports.CaptureInput) (*domain.Capture, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.pending != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "capture", fmt.Errorf("capture %s is awaiting discard or continue", uc.pending.ID))
	}

	capturedAt, key, err := uc.freeScanKey(ctx)
	if err != nil {
		uc.observe("failed")
		return nil, err
	}
	if err := uc.store(ctx, in, key); err != nil {
		uc.observe("failed")
		return nil, err
	}

	path, err := uc.temp.Resolve(key)
	if err != nil {
		uc.observe("failed")
		return nil, fmt.Errorf("resolve capture file: %w", err)
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = captureMimeType
	}
	text, classified, recognized := uc.text.Read(ctx, path, mimeType)

	capture := &domain.Capture{
		ID:         uuid.NewString(),
		Source:     domain.SourceCamera,
		State:      domain.CaptureCaptured,
		TempKey:    key,
		MimeType:   mimeType,
		Text:       text,
		Classified: classified,
		Recognized: recognized,
		CapturedAt: capturedAt,
	}
	uc.pending = capture
	uc.observe("captured")

	out := *capture
	return &out, nil
}

// freeScanKey names the temp file after the capture time, moving the time
// forward by a millisecond while a queued capture still holds the name.
func (uc *CaptureUseCase) freeScanKey(ctx context.Context) (time.Time, string, error) {
	capturedAt := uc.now().UTC()
	for {
		key := fmt.Sprintf("scan_%d.jpg", capturedAt.UnixMilli())
		exists, err := uc.temp.Exists(ctx, key)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("check capture file: %w", err)
		}
		if !exists {
			return capturedAt, key, nil
		}
		capturedAt = capturedAt.Add(time.Millisecond)
	}
}

func (uc *CaptureUseCase) store(ctx context.Context, in ports.CaptureInput, key string) error {
	switch {
	case in.Body != nil:
		if err := uc.temp.Save(ctx, key, in.Body); err != nil {
			return fmt.Errorf("save capture: %w", err)
		}
	case in.SourcePath != "":
		if err := uc.temp.Move(ctx, in.SourcePath, key); err != nil {
			return fmt.Errorf("move capture: %w", err)
		}
	default:
		return domain.WrapError(domain.ErrInvalidInput, "capture", errors.New("no image provided"))
	}
	return nil
}

func (uc *CaptureUseCase) Discard(ctx context.Context, captureID string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	capture, err := uc.pendingByID(captureID)
	if err != nil {
		return err
	}
	if err := uc.temp.Delete(ctx, capture.TempKey); err != nil {
		return fmt.Errorf("delete capture file: %w", err)
	}
	uc.pending = nil
	uc.observe(string(domain.CaptureDiscarded))
	return nil
}

func (uc *CaptureUseCase) Continue(_ context.Context, captureID string) (*domain.Capture, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	capture, err := uc.pendingByID(captureID)
	if err != nil {
		return nil, err
	}
	capture.State = domain.CaptureQueued
	uc.queued = append(uc.queued, *capture)
	uc.pending = nil
	uc.observe(string(domain.CaptureQueued))

	out := *capture
	return &out, nil
}

// Done files the queued batch in order. Filing stops at the first failure:
// documents already moved stay filed and leave the queue, the rest remain
// queued for another attempt.
func (uc *CaptureUseCase) Done(ctx context.Context) ([]domain.FiledDocument, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	filed := make([]domain.FiledDocument, 0, len(uc.queued))
	for i, capture := range uc.queued {
		doc, err := uc.filer.File(ctx, capture)
		if err != nil {
			uc.queued = append([]domain.Capture(nil), uc.queued[i:]...)
			return filed, fmt.Errorf("file capture %s: %w", capture.ID, err)
		}
		filed = append(filed, *doc)
		uc.observe(string(domain.CaptureFiled))
	}
	uc.queued = nil
	return filed, nil
}

func (uc *CaptureUseCase) Pending(_ context.Context) domain.Session {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	session := domain.Session{Queued: append([]domain.Capture{}, uc.queued...)}
	if uc.pending != nil {
		pending := *uc.pending
		session.Pending = &pending
	}
	return session
}

func (uc *CaptureUseCase) pendingByID(captureID string) (*domain.Capture, error) {
	if uc.pending == nil || uc.pending.ID != captureID {
		return nil, domain.WrapError(domain.ErrCaptureNotFound, "lookup pending capture", fmt.Errorf("id %q", captureID))
	}
	return uc.pending, nil
}

func (uc *CaptureUseCase) observe(outcome string) {
	if uc.observer != nil {
		uc.observer.ObserveCapture(domain.SourceCamera, outcome)
	}
}
