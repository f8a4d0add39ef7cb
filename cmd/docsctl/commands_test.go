package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/filing"
)

type textReaderFake struct {
	mimeType string
}

func (f *textReaderFake) Read(_ context.Context, _ string, mimeType string) (string, domain.ClassifiedDocument, bool) {
	f.mimeType = mimeType
	return "GOVERNMENT OF INDIA\nRahul Sharma", domain.ClassifiedDocument{
		Type:        domain.TypeAadhaar,
		PersonName:  "Rahul Sharma",
		DateOfBirth: "12/05/1990",
	}, true
}

type importerFake struct {
	filename string
	mimeType string
}

func (f *importerFake) Import(_ context.Context, filename, mimeType string, body io.Reader) (*domain.FiledDocument, error) {
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	f.filename, f.mimeType = filename, mimeType
	return &domain.FiledDocument{Path: "Unknown/Other_Unknown_NA_1.jpg"}, nil
}

type libraryFake struct {
	filter  domain.LibraryFilter
	deleted []string
	err     error
}

func (f *libraryFake) List(_ context.Context, filter domain.LibraryFilter) ([]domain.StoredDocument, error) {
	f.filter = filter
	return []domain.StoredDocument{{
		Path:       "Rahul/Bill_Rahul_NA_1.jpg",
		Type:       domain.TypeBill,
		Size:       42,
		ModifiedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}}, f.err
}

func (f *libraryFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not used")
}

func (f *libraryFake) Rename(_ context.Context, key, newName string) (*domain.StoredDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StoredDocument{Path: filepath.ToSlash(filepath.Join(filepath.Dir(key), newName))}, nil
}

func (f *libraryFake) Delete(_ context.Context, keys []string) error {
	f.deleted = append(f.deleted, keys...)
	return f.err
}

type exporterFake struct {
	err error
}

func (f exporterFake) Write(_ context.Context, w io.Writer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	_, err := w.Write([]byte("PK"))
	return 3, err
}

type cliHarness struct {
	text     *textReaderFake
	importer *importerFake
	library  *libraryFake
	exporter exporterFake
	closed   int
}

func newCLIHarness() *cliHarness {
	return &cliHarness{
		text:     &textReaderFake{},
		importer: &importerFake{},
		library:  &libraryFake{},
	}
}

func (h *cliHarness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	open := func(context.Context) (*services, func(), error) {
		return &services{
			text:     h.text,
			policy:   filing.NewPolicy(domain.FilingByPerson),
			importer: h.importer,
			library:  h.library,
			exporter: h.exporter,
		}, func() { h.closed++ }, nil
	}
	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "scan.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return path
}

func TestClassifyCommandPrintsTarget(t *testing.T) {
	h := newCLIHarness()
	path := writePNG(t, t.TempDir())

	out, err := h.run(t, "classify", path)
	if err != nil {
		t.Fatalf("classify error = %v", err)
	}
	if h.text.mimeType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", h.text.mimeType)
	}

	var resp struct {
		Classified domain.ClassifiedDocument `json:"classified"`
		Target     domain.FilingTarget       `json:"target"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, output = %q", err, out)
	}
	if resp.Target.Dir != "Rahul" || !strings.HasPrefix(resp.Target.FileName, "Aadhaar_Rahul_1990_") {
		t.Fatalf("unexpected target: %+v", resp.Target)
	}
	if h.closed != 1 {
		t.Fatalf("expected services closed once, got %d", h.closed)
	}
}

func TestImportCommandUsesBaseName(t *testing.T) {
	h := newCLIHarness()
	path := writePNG(t, t.TempDir())

	if _, err := h.run(t, "import", path); err != nil {
		t.Fatalf("import error = %v", err)
	}
	if h.importer.filename != "scan.png" || h.importer.mimeType != "image/png" {
		t.Fatalf("unexpected import call: %+v", h.importer)
	}
}

func TestListCommandFiltersAndPrintsTable(t *testing.T) {
	h := newCLIHarness()

	out, err := h.run(t, "list", "--q", "rahul", "--tag", "bills")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if h.library.filter.Query != "rahul" || h.library.filter.Tag != domain.TagBills {
		t.Fatalf("unexpected filter: %+v", h.library.filter)
	}
	if !strings.Contains(out, "Rahul/Bill_Rahul_NA_1.jpg") || !strings.HasPrefix(out, "TYPE") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestListCommandRejectsUnknownTag(t *testing.T) {
	h := newCLIHarness()

	if _, err := h.run(t, "list", "--tag", "receipts"); err == nil {
		t.Fatal("expected error for unknown tag")
	}
	if h.closed != 0 {
		t.Fatal("services must not be opened for invalid flags")
	}
}

func TestRenameAndDeleteCommands(t *testing.T) {
	h := newCLIHarness()

	out, err := h.run(t, "rename", "Rahul/a.jpg", "b.jpg")
	if err != nil {
		t.Fatalf("rename error = %v", err)
	}
	if strings.TrimSpace(out) != "Rahul/b.jpg" {
		t.Fatalf("unexpected rename output: %q", out)
	}

	if _, err := h.run(t, "delete", "Rahul/b.jpg", "Rahul/c.jpg"); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if len(h.library.deleted) != 2 {
		t.Fatalf("unexpected deletes: %v", h.library.deleted)
	}

	if _, err := h.run(t, "delete"); err == nil {
		t.Fatal("expected error without paths")
	}
}

func TestExportCommandWritesFile(t *testing.T) {
	h := newCLIHarness()
	out := filepath.Join(t.TempDir(), "docs.xlsx")

	if _, err := h.run(t, "export", out); err != nil {
		t.Fatalf("export error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "PK" {
		t.Fatalf("unexpected workbook content: %q", data)
	}
}

func TestExportCommandRemovesFileOnFailure(t *testing.T) {
	h := newCLIHarness()
	h.exporter = exporterFake{err: errors.New("catalog unavailable")}
	out := filepath.Join(t.TempDir(), "docs.xlsx")

	if _, err := h.run(t, "export", out); err == nil {
		t.Fatal("expected export error")
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial workbook removed, stat error = %v", err)
	}
}
