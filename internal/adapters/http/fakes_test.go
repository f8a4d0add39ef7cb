package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docs-manager/internal/config"
	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/ports"
)

var testTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

type captureSessionFake struct {
	captured  []ports.CaptureInput
	body      string
	err       error
	discarded []string
	filed     []domain.FiledDocument
	doneErr   error
}

func (f *captureSessionFake) Capture(_ context.Context, in ports.CaptureInput) (*domain.Capture, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(raw)
	f.captured = append(f.captured, in)
	return &domain.Capture{
		ID:         "cap-1",
		Source:     domain.SourceCamera,
		State:      domain.CaptureCaptured,
		TempKey:    "scan_1714555800000.jpg",
		MimeType:   in.MimeType,
		Classified: domain.ClassifiedDocument{Type: domain.TypeAadhaar, PersonName: "Rahul"},
		Recognized: true,
		CapturedAt: testTime,
	}, nil
}

func (f *captureSessionFake) Discard(_ context.Context, captureID string) error {
	if captureID != "cap-1" {
		return domain.WrapError(domain.ErrCaptureNotFound, "discard", errors.New(captureID))
	}
	f.discarded = append(f.discarded, captureID)
	return nil
}

func (f *captureSessionFake) Continue(_ context.Context, captureID string) (*domain.Capture, error) {
	if captureID != "cap-1" {
		return nil, domain.WrapError(domain.ErrCaptureNotFound, "continue", errors.New(captureID))
	}
	return &domain.Capture{ID: captureID, State: domain.CaptureQueued}, nil
}

func (f *captureSessionFake) Done(context.Context) ([]domain.FiledDocument, error) {
	return f.filed, f.doneErr
}

func (f *captureSessionFake) Pending(context.Context) domain.Session {
	return domain.Session{Pending: &domain.Capture{ID: "cap-1"}, Queued: []domain.Capture{}}
}

type importerFake struct {
	filename string
	mimeType string
	body     string
	err      error
}

func (f *importerFake) Import(_ context.Context, filename, mimeType string, body io.Reader) (*domain.FiledDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.filename, f.mimeType, f.body = filename, mimeType, string(raw)
	return &domain.FiledDocument{
		ID:         "doc-1",
		Classified: domain.ClassifiedDocument{Type: domain.TypeBill},
		Folder:     "Unknown",
		FileName:   "Bill_Unknown_NA_1714555800000.jpg",
		Path:       "Unknown/Bill_Unknown_NA_1714555800000.jpg",
		MimeType:   mimeType,
		FiledAt:    testTime,
	}, nil
}

type libraryFake struct {
	filter  domain.LibraryFilter
	docs    []domain.StoredDocument
	content map[string]string
	renamed [2]string
	deleted []string
	err     error
}

func (f *libraryFake) List(_ context.Context, filter domain.LibraryFilter) ([]domain.StoredDocument, error) {
	f.filter = filter
	return f.docs, f.err
}

func (f *libraryFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.content[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open", errors.New(key))
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (f *libraryFake) Rename(_ context.Context, key, newName string) (*domain.StoredDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.renamed = [2]string{key, newName}
	return &domain.StoredDocument{Path: "Rahul/" + newName, Name: newName, Folder: "Rahul"}, nil
}

func (f *libraryFake) Delete(_ context.Context, keys []string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, keys...)
	return nil
}

type classifierFake struct {
	text string
}

func (f *classifierFake) Preview(_ context.Context, rawText, _ string) (*domain.ClassificationPreview, error) {
	f.text = rawText
	return &domain.ClassificationPreview{
		NormalizedText: rawText,
		Classified:     domain.ClassifiedDocument{Type: domain.TypePAN, PersonName: "Rahul"},
		Target:         domain.FilingTarget{Dir: "Rahul", FileName: "PAN_Rahul_NA_1714555800000.jpg"},
	}, nil
}

type exporterFake struct {
	err error
}

func (f exporterFake) Write(_ context.Context, w io.Writer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	_, err := io.WriteString(w, "PK-workbook")
	return 1, err
}

type testServices struct {
	captures   *captureSessionFake
	importer   *importerFake
	library    *libraryFake
	classifier *classifierFake
}

func newTestServices() *testServices {
	return &testServices{
		captures:   &captureSessionFake{},
		importer:   &importerFake{},
		library:    &libraryFake{content: map[string]string{}},
		classifier: &classifierFake{},
	}
}

func (s *testServices) services() Services {
	return Services{
		Captures:   s.captures,
		Importer:   s.importer,
		Library:    s.library,
		Classifier: s.classifier,
		Exporter:   exporterFake{},
	}
}

func newTestHandler(t *testing.T, cfg config.Config, services Services) http.Handler {
	t.Helper()
	handler, err := NewRouter(cfg, services, nil, nil).Handler(context.Background())
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}
