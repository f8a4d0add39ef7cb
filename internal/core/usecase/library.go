package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/filing"
	"github.com/kirillkom/docs-manager/internal/core/ports"
)

type LibraryUseCase struct {
	documents ports.FileStorage
	catalog   ports.Catalog
	logger    *slog.Logger
}

func NewLibraryUseCase(documents ports.FileStorage, catalog ports.Catalog, logger *slog.Logger) *LibraryUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &LibraryUseCase{
		documents: documents,
		catalog:   catalog,
		logger:    logger,
	}
}

// List returns every filed document, most recently modified first.
func (uc *LibraryUseCase) List(ctx context.Context, filter domain.LibraryFilter) ([]domain.StoredDocument, error) {
	entries, err := uc.documents.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	docs := make([]domain.StoredDocument, 0, len(entries))
	for _, entry := range entries {
		doc := storedDocument(entry)
		if !filter.Tag.Matches(doc.Type) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(doc.Name), query) && !strings.Contains(strings.ToLower(doc.Folder), query) {
			continue
		}
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].ModifiedAt.Equal(docs[j].ModifiedAt) {
			return docs[i].ModifiedAt.After(docs[j].ModifiedAt)
		}
		return docs[i].Path < docs[j].Path
	})
	return docs, nil
}

func (uc *LibraryUseCase) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if strings.TrimSpace(key) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open document", errors.New("path is required"))
	}
	rc, err := uc.documents.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open document %q: %w", key, err)
	}
	return rc, nil
}

// Rename renames a file inside its folder. newName must be a bare file name.
func (uc *LibraryUseCase) Rename(ctx context.Context, key, newName string) (*domain.StoredDocument, error) {
	newName = strings.TrimSpace(newName)
	if err := validateFileName(newName); err != nil {
		return nil, err
	}

	if _, err := uc.documents.Stat(ctx, key); err != nil {
		return nil, fmt.Errorf("rename %q: %w", key, err)
	}

	current := cleanKey(key)
	newKey := path.Join(path.Dir(current), newName)
	if newKey == current {
		return nil, domain.WrapError(domain.ErrInvalidInput, "rename document", errors.New("new name equals current name"))
	}
	exists, err := uc.documents.Exists(ctx, newKey)
	if err != nil {
		return nil, fmt.Errorf("check rename target: %w", err)
	}
	if exists {
		return nil, domain.WrapError(domain.ErrInvalidInput, "rename document", fmt.Errorf("%q already exists", newKey))
	}

	if err := uc.documents.Rename(ctx, key, newKey); err != nil {
		uc.logger.Error("document rename failed", "path", key, "new_path", newKey, "error", err)
		return nil, fmt.Errorf("rename %q: %w", key, err)
	}
	if uc.catalog != nil {
		if err := uc.catalog.UpdatePath(ctx, current, newKey); err != nil {
			uc.logger.Warn("catalog rename failed", "path", key, "new_path", newKey, "error", err)
		}
	}

	entry, err := uc.documents.Stat(ctx, newKey)
	if err != nil {
		return nil, fmt.Errorf("stat renamed document: %w", err)
	}
	doc := storedDocument(entry)
	return &doc, nil
}

// Delete removes each path; missing files are not an error. All paths are
// checked before anything is removed.
func (uc *LibraryUseCase) Delete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "delete documents", errors.New("empty path"))
		}
		if _, err := uc.documents.Resolve(key); err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}

	for _, key := range keys {
		if err := uc.documents.Delete(ctx, key); err != nil {
			uc.logger.Error("document delete failed", "path", key, "error", err)
			return fmt.Errorf("delete %q: %w", key, err)
		}
		if uc.catalog != nil {
			if err := uc.catalog.DeleteByPath(ctx, cleanKey(key)); err != nil {
				uc.logger.Warn("catalog delete failed", "path", key, "error", err)
			}
		}
	}
	return nil
}

func storedDocument(entry domain.FileEntry) domain.StoredDocument {
	return domain.StoredDocument{
		Path:       entry.Key,
		Name:       entry.Name,
		Folder:     entry.Dir,
		Type:       filing.TypeOf(entry.Key),
		Size:       entry.Size,
		ModifiedAt: entry.ModTime,
	}
}

func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

func validateFileName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return domain.WrapError(domain.ErrInvalidInput, "validate file name", fmt.Errorf("invalid name %q", name))
	case strings.ContainsAny(name, `/\`):
		return domain.WrapError(domain.ErrInvalidInput, "validate file name", fmt.Errorf("name %q must not contain a path separator", name))
	case strings.ContainsRune(name, 0):
		return domain.WrapError(domain.ErrInvalidInput, "validate file name", errors.New("name contains NUL"))
	}
	return nil
}
