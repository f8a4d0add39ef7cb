package xlsx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

const sheetName = "Documents"

var headers = []string{
	"Document Type",
	"Person",
	"Date of Birth",
	"Aadhaar (last 4)",
	"Folder",
	"File",
	"Captured At",
	"Filed At",
}

// Source lists catalog rows to export.
type Source interface {
	ListRecent(ctx context.Context, limit int) ([]domain.FiledDocument, error)
}

// Exporter renders the catalog as an XLSX workbook.
type Exporter struct {
	source Source
	logger *slog.Logger
}

func NewExporter(source Source, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{source: source, logger: logger}
}

// Write streams the workbook to w and returns the number of document rows.
func (e *Exporter) Write(ctx context.Context, w io.Writer) (int, error) {
	start := time.Now()

	docs, err := e.source.ListRecent(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("query catalog: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
	}

	for i, doc := range docs {
		row := i + 2
		values := []any{
			string(doc.Classified.Type),
			orDash(doc.Classified.PersonName),
			orDash(doc.Classified.DateOfBirth),
			doc.AadhaarLast,
			doc.Folder,
			doc.FileName,
			formatTime(doc.CapturedAt),
			formatTime(doc.FiledAt),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return 0, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 16)
	_ = f.SetColWidth(sheetName, "B", "B", 28)
	_ = f.SetColWidth(sheetName, "C", "D", 16)
	_ = f.SetColWidth(sheetName, "E", "E", 24)
	_ = f.SetColWidth(sheetName, "F", "F", 48)
	_ = f.SetColWidth(sheetName, "G", "H", 22)

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("export.xlsx.ok",
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return len(docs), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
