package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

// Storage is a file tree confined to basePath. Keys are slash-separated
// and relative to the root; keys that would leave it are rejected.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/documents"
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

func (s *Storage) BasePath() string {
	return s.basePath
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	p, err := s.resolveFile(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return storageError("create parent dir", err)
	}

	f, err := os.Create(p)
	if err != nil {
		return storageError("create file", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return storageError("write file", err)
	}
	if err := f.Close(); err != nil {
		return storageError("close file", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.resolveFile(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, storageError("open file", err)
	}
	if info.IsDir() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open file", fmt.Errorf("%q is a directory", key))
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, storageError("open file", err)
	}
	return f, nil
}

func (s *Storage) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, storageError("stat", err)
	}
}

func (s *Storage) Stat(_ context.Context, key string) (domain.FileEntry, error) {
	p, err := s.resolveFile(key)
	if err != nil {
		return domain.FileEntry{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return domain.FileEntry{}, storageError("stat", err)
	}
	if info.IsDir() {
		return domain.FileEntry{}, domain.WrapError(domain.ErrInvalidInput, "stat", fmt.Errorf("%q is a directory", key))
	}
	return s.entry(p, info)
}

// CreateDir creates the directory and any missing parents.
func (s *Storage) CreateDir(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return storageError("create dir", err)
	}
	return nil
}

// Move renames srcPath into the tree, copying across filesystems.
func (s *Storage) Move(_ context.Context, srcPath, dstKey string) error {
	dst, err := s.resolveFile(dstKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return storageError("create parent dir", err)
	}

	err = os.Rename(srcPath, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return storageError("move file", err)
	}

	if err := copyFile(srcPath, dst); err != nil {
		return storageError("move file across devices", err)
	}
	if err := os.Remove(srcPath); err != nil {
		return storageError("remove moved source", err)
	}
	return nil
}

func (s *Storage) Copy(_ context.Context, srcPath, dstKey string) error {
	dst, err := s.resolveFile(dstKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return storageError("create parent dir", err)
	}
	if err := copyFile(srcPath, dst); err != nil {
		return storageError("copy file", err)
	}
	return nil
}

func (s *Storage) Rename(_ context.Context, key, newKey string) error {
	src, err := s.resolveFile(key)
	if err != nil {
		return err
	}
	dst, err := s.resolveFile(newKey)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return storageError("rename", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return storageError("rename", err)
	}
	return nil
}

// Delete removes a file or empty directory. A missing key is not an error.
func (s *Storage) Delete(_ context.Context, key string) error {
	p, err := s.resolveFile(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageError("delete", err)
	}
	return nil
}

// List walks the tree under prefix and returns every regular file.
// Dot files are skipped.
func (s *Storage) List(ctx context.Context, prefix string) ([]domain.FileEntry, error) {
	root, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.FileEntry, 0)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		entry, err := s.entry(p, info)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, storageError("list", err)
	}
	return entries, nil
}

// Resolve maps a key to its absolute path on disk.
func (s *Storage) Resolve(key string) (string, error) {
	return s.resolve(key)
}

func (s *Storage) entry(p string, info fs.FileInfo) (domain.FileEntry, error) {
	rel, err := filepath.Rel(s.basePath, p)
	if err != nil {
		return domain.FileEntry{}, storageError("relative path", err)
	}
	key := filepath.ToSlash(rel)
	dir := path.Dir(key)
	if dir == "." {
		dir = ""
	}
	return domain.FileEntry{
		Key:     key,
		Name:    path.Base(key),
		Dir:     dir,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

func (s *Storage) resolve(key string) (string, error) {
	slashed := strings.ReplaceAll(key, "\\", "/")
	if strings.ContainsRune(slashed, 0) || strings.HasPrefix(slashed, "/") || filepath.IsAbs(key) || filepath.VolumeName(key) != "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve key", fmt.Errorf("key %q is not relative", key))
	}
	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", domain.WrapError(domain.ErrInvalidInput, "resolve key", fmt.Errorf("key %q leaves the storage root", key))
		}
	}
	return filepath.Join(s.basePath, filepath.FromSlash(path.Clean("/"+slashed))), nil
}

// resolveFile is resolve for operations that must not target the root.
func (s *Storage) resolveFile(key string) (string, error) {
	p, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if p == s.basePath {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve key", errors.New("key addresses the storage root"))
	}
	return p, nil
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	return dst.Close()
}

func storageError(op string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return domain.WrapError(domain.ErrDocumentNotFound, op, err)
	case errors.Is(err, fs.ErrPermission):
		return domain.WrapError(domain.ErrPermissionDenied, op, err)
	default:
		return domain.WrapError(domain.ErrStorage, op, err)
	}
}
