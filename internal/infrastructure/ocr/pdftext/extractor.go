package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

const maxTextBytes = 1 << 20

// Extractor implements ports.TextExtractor by reading the text layer of a
// PDF. Scanned PDFs without a text layer yield an empty string.
type Extractor struct {
	maxBytes int64
}

func NewExtractor() *Extractor {
	return &Extractor{maxBytes: maxTextBytes}
}

func (e *Extractor) Extract(ctx context.Context, path string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, e.maxBytes)); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
