package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

// CatalogRepository records filed documents. Queries are written with "?"
// placeholders and rebound for Postgres.
type CatalogRepository struct {
	db     *sql.DB
	driver string
}

func NewCatalogRepository(db *sql.DB, driver string) *CatalogRepository {
	return &CatalogRepository{db: db, driver: driver}
}

const catalogDDL = `
CREATE TABLE IF NOT EXISTS filed_documents (
	id TEXT PRIMARY KEY,
	capture_id TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	person_name TEXT NOT NULL DEFAULT '',
	date_of_birth TEXT NOT NULL DEFAULT '',
	aadhaar_last4 TEXT NOT NULL DEFAULT '',
	folder TEXT NOT NULL,
	file_name TEXT NOT NULL,
	path TEXT NOT NULL UNIQUE,
	mime_type TEXT NOT NULL,
	ocr_text TEXT NOT NULL DEFAULT '',
	captured_at BIGINT NOT NULL,
	filed_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_filed_documents_filed_at ON filed_documents(filed_at DESC);
CREATE INDEX IF NOT EXISTS idx_filed_documents_doc_type ON filed_documents(doc_type);
`

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if r.driver == DriverPostgres {
		// Serialize bootstrap DDL across concurrent startups.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	for _, stmt := range strings.Split(catalogDDL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema ddl: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CatalogRepository) Record(ctx context.Context, doc *domain.FiledDocument) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`
INSERT INTO filed_documents (
	id, capture_id, doc_type, person_name, date_of_birth, aadhaar_last4, folder, file_name, path, mime_type, ocr_text, captured_at, filed_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (path) DO UPDATE SET
	id = excluded.id,
	capture_id = excluded.capture_id,
	doc_type = excluded.doc_type,
	person_name = excluded.person_name,
	date_of_birth = excluded.date_of_birth,
	aadhaar_last4 = excluded.aadhaar_last4,
	mime_type = excluded.mime_type,
	ocr_text = excluded.ocr_text,
	captured_at = excluded.captured_at,
	filed_at = excluded.filed_at
`),
		doc.ID, doc.CaptureID, string(doc.Classified.Type), doc.Classified.PersonName, doc.Classified.DateOfBirth,
		doc.AadhaarLast, doc.Folder, doc.FileName, doc.Path, doc.MimeType, doc.Text,
		doc.CapturedAt.UnixMilli(), doc.FiledAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert filed document: %w", err)
	}
	return nil
}

const selectColumns = `
SELECT id, capture_id, doc_type, person_name, date_of_birth, aadhaar_last4, folder, file_name, path, mime_type, ocr_text, captured_at, filed_at
FROM filed_documents
`

func (r *CatalogRepository) GetByPath(ctx context.Context, docPath string) (*domain.FiledDocument, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(selectColumns+"WHERE path = ?"), docPath)

	doc, err := scanFiledDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get filed document", fmt.Errorf("path %q", docPath))
		}
		return nil, fmt.Errorf("scan filed document: %w", err)
	}
	return &doc, nil
}

// ListRecent returns the latest filed documents; limit <= 0 returns all.
func (r *CatalogRepository) ListRecent(ctx context.Context, limit int) ([]domain.FiledDocument, error) {
	query := selectColumns + "ORDER BY filed_at DESC, path ASC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list filed documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FiledDocument, 0)
	for rows.Next() {
		doc, err := scanFiledDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filed document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filed documents: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) UpdatePath(ctx context.Context, oldPath, newPath string) error {
	folder, name := path.Split(newPath)
	res, err := r.db.ExecContext(ctx, r.rebind(`
UPDATE filed_documents
SET path = ?, folder = ?, file_name = ?
WHERE path = ?
`), newPath, strings.TrimSuffix(folder, "/"), name, oldPath)
	if err != nil {
		return fmt.Errorf("update filed document path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update filed document path rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update filed document path", fmt.Errorf("path %q", oldPath))
	}
	return nil
}

// DeleteByPath is idempotent.
func (r *CatalogRepository) DeleteByPath(ctx context.Context, docPath string) error {
	if _, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM filed_documents WHERE path = ?`), docPath); err != nil {
		return fmt.Errorf("delete filed document: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFiledDocument(row rowScanner) (domain.FiledDocument, error) {
	var (
		doc        domain.FiledDocument
		docType    string
		capturedAt int64
		filedAt    int64
	)
	err := row.Scan(
		&doc.ID, &doc.CaptureID, &docType, &doc.Classified.PersonName, &doc.Classified.DateOfBirth,
		&doc.AadhaarLast, &doc.Folder, &doc.FileName, &doc.Path, &doc.MimeType, &doc.Text,
		&capturedAt, &filedAt,
	)
	if err != nil {
		return domain.FiledDocument{}, err
	}
	doc.Classified.Type = domain.DocumentType(docType)
	doc.CapturedAt = time.UnixMilli(capturedAt).UTC()
	doc.FiledAt = time.UnixMilli(filedAt).UTC()
	return doc, nil
}

func (r *CatalogRepository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
