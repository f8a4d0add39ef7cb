package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

// FileStorage is a root-confined file tree addressed by slash-separated keys.
type FileStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Stat(ctx context.Context, key string) (domain.FileEntry, error)
	CreateDir(ctx context.Context, key string) error
	// Move relocates a local file at srcPath into the tree.
	Move(ctx context.Context, srcPath, dstKey string) error
	// Copy is Move without removing srcPath.
	Copy(ctx context.Context, srcPath, dstKey string) error
	Rename(ctx context.Context, key, newKey string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]domain.FileEntry, error)
	Resolve(key string) (string, error)
}

// TextRecognizer runs OCR over an image file.
type TextRecognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// TextExtractor reads an embedded text layer from a document file.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// DocumentClassifier turns raw recognized text into a classification.
type DocumentClassifier interface {
	Classify(ctx context.Context, rawText string) (domain.ClassifiedDocument, error)
}

// Catalog keeps a searchable record of filed documents.
type Catalog interface {
	Record(ctx context.Context, doc *domain.FiledDocument) error
	GetByPath(ctx context.Context, path string) (*domain.FiledDocument, error)
	ListRecent(ctx context.Context, limit int) ([]domain.FiledDocument, error)
	UpdatePath(ctx context.Context, oldPath, newPath string) error
	DeleteByPath(ctx context.Context, path string) error
}

// EventPublisher announces filed documents to other processes.
type EventPublisher interface {
	PublishDocumentFiled(ctx context.Context, doc domain.FiledDocument) error
}

// FilingObserver receives pipeline measurements.
type FilingObserver interface {
	ObserveCapture(source domain.CaptureSource, outcome string)
	ObserveFiling(docType domain.DocumentType, duration time.Duration, err error)
}
