package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

// CaptureInput describes a freshly taken photo. SourcePath is a local file
// owned by the caller unless Body is set.
type CaptureInput struct {
	SourcePath string
	Body       io.Reader
	MimeType   string
}

// CaptureSession is the inbound contract for the camera flow.
type CaptureSession interface {
	Capture(ctx context.Context, in CaptureInput) (*domain.Capture, error)
	Discard(ctx context.Context, captureID string) error
	Continue(ctx context.Context, captureID string) (*domain.Capture, error)
	Done(ctx context.Context) ([]domain.FiledDocument, error)
	Pending(ctx context.Context) domain.Session
}

// DocumentImporter files a picked document in one step.
type DocumentImporter interface {
	Import(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.FiledDocument, error)
}

// DocumentLibrary browses and edits the filed tree.
type DocumentLibrary interface {
	List(ctx context.Context, filter domain.LibraryFilter) ([]domain.StoredDocument, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Rename(ctx context.Context, path, newName string) (*domain.StoredDocument, error)
	Delete(ctx context.Context, paths []string) error
}

// TextClassifier previews classification and filing for arbitrary text.
type TextClassifier interface {
	Preview(ctx context.Context, rawText, mimeType string) (*domain.ClassificationPreview, error)
}
