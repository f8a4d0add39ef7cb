package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

type memFile struct {
	data    []byte
	modTime time.Time
}

// memDisk is shared by the storages of one test so files can move between roots.
type memDisk struct {
	mu    sync.Mutex
	files map[string]memFile
	clock time.Time
}

func newMemDisk() *memDisk {
	return &memDisk{
		files: map[string]memFile{},
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (d *memDisk) tick() time.Time {
	d.clock = d.clock.Add(time.Second)
	return d.clock
}

type storageFake struct {
	disk      *memDisk
	root      string
	moveErrAt map[string]error
	deleted   []string
	dirs      []string
}

func newStorageFake(disk *memDisk, root string) *storageFake {
	return &storageFake{disk: disk, root: root, moveErrAt: map[string]error{}}
}

func (s *storageFake) abs(key string) (string, error) {
	clean := path.Clean("/" + key)
	if strings.Contains(key, "..") {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve", fmt.Errorf("key %q escapes root", key))
	}
	return s.root + clean, nil
}

func (s *storageFake) put(key, body string) {
	p, _ := s.abs(key)
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	s.disk.files[p] = memFile{data: []byte(body), modTime: s.disk.tick()}
}

func (s *storageFake) has(key string) bool {
	p, _ := s.abs(key)
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	_, ok := s.disk.files[p]
	return ok
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.put(key, string(raw))
	return nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.abs(key)
	if err != nil {
		return nil, err
	}
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	f, ok := s.disk.files[p]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (s *storageFake) Exists(_ context.Context, key string) (bool, error) {
	return s.has(key), nil
}

func (s *storageFake) Stat(_ context.Context, key string) (domain.FileEntry, error) {
	p, err := s.abs(key)
	if err != nil {
		return domain.FileEntry{}, err
	}
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	f, ok := s.disk.files[p]
	if !ok {
		return domain.FileEntry{}, domain.WrapError(domain.ErrDocumentNotFound, "stat", errors.New(key))
	}
	return s.entry(p, f), nil
}

func (s *storageFake) entry(p string, f memFile) domain.FileEntry {
	key := strings.TrimPrefix(p, s.root+"/")
	dir := path.Dir(key)
	if dir == "." {
		dir = ""
	}
	return domain.FileEntry{Key: key, Name: path.Base(key), Dir: dir, Size: int64(len(f.data)), ModTime: f.modTime}
}

func (s *storageFake) CreateDir(_ context.Context, key string) error {
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	s.dirs = append(s.dirs, key)
	return nil
}

func (s *storageFake) Move(_ context.Context, srcPath, dstKey string) error {
	if err, ok := s.moveErrAt[dstKey]; ok {
		return err
	}
	dst, err := s.abs(dstKey)
	if err != nil {
		return err
	}
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	f, ok := s.disk.files[srcPath]
	if !ok {
		return fmt.Errorf("source %q missing", srcPath)
	}
	delete(s.disk.files, srcPath)
	s.disk.files[dst] = memFile{data: f.data, modTime: s.disk.tick()}
	return nil
}

func (s *storageFake) Copy(_ context.Context, srcPath, dstKey string) error {
	dst, err := s.abs(dstKey)
	if err != nil {
		return err
	}
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	f, ok := s.disk.files[srcPath]
	if !ok {
		return fmt.Errorf("source %q missing", srcPath)
	}
	s.disk.files[dst] = memFile{data: f.data, modTime: s.disk.tick()}
	return nil
}

func (s *storageFake) Rename(_ context.Context, key, newKey string) error {
	src, err := s.abs(key)
	if err != nil {
		return err
	}
	dst, err := s.abs(newKey)
	if err != nil {
		return err
	}
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	f, ok := s.disk.files[src]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "rename", errors.New(key))
	}
	delete(s.disk.files, src)
	s.disk.files[dst] = f
	return nil
}

func (s *storageFake) Delete(_ context.Context, key string) error {
	p, err := s.abs(key)
	if err != nil {
		return err
	}
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	delete(s.disk.files, p)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *storageFake) List(_ context.Context, _ string) ([]domain.FileEntry, error) {
	s.disk.mu.Lock()
	defer s.disk.mu.Unlock()
	out := make([]domain.FileEntry, 0)
	for p, f := range s.disk.files {
		if strings.HasPrefix(p, s.root+"/") {
			out = append(out, s.entry(p, f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *storageFake) Resolve(key string) (string, error) {
	return s.abs(key)
}

type recognizerFake struct {
	text  string
	err   error
	paths []string
}

func (f *recognizerFake) Recognize(_ context.Context, p string) (string, error) {
	f.paths = append(f.paths, p)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type extractorFake struct {
	text  string
	paths []string
}

func (f *extractorFake) Extract(_ context.Context, p string) (string, error) {
	f.paths = append(f.paths, p)
	return f.text, nil
}

type classifierFake struct {
	doc domain.ClassifiedDocument
	err error
}

func (f *classifierFake) Classify(context.Context, string) (domain.ClassifiedDocument, error) {
	return f.doc, f.err
}

type catalogFake struct {
	recorded []domain.FiledDocument
	renamed  map[string]string
	deleted  []string
	err      error
}

func (f *catalogFake) Record(_ context.Context, doc *domain.FiledDocument) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, *doc)
	return nil
}

func (f *catalogFake) GetByPath(context.Context, string) (*domain.FiledDocument, error) {
	return nil, errors.New("not implemented")
}

func (f *catalogFake) ListRecent(context.Context, int) ([]domain.FiledDocument, error) {
	return nil, errors.New("not implemented")
}

func (f *catalogFake) UpdatePath(_ context.Context, oldPath, newPath string) error {
	if f.err != nil {
		return f.err
	}
	if f.renamed == nil {
		f.renamed = map[string]string{}
	}
	f.renamed[oldPath] = newPath
	return nil
}

func (f *catalogFake) DeleteByPath(_ context.Context, p string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, p)
	return nil
}

type publisherFake struct {
	events []domain.FiledDocument
	err    error
}

func (f *publisherFake) PublishDocumentFiled(_ context.Context, doc domain.FiledDocument) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, doc)
	return nil
}

type observerFake struct {
	captures []string
	filings  []string
}

func (f *observerFake) ObserveCapture(source domain.CaptureSource, outcome string) {
	f.captures = append(f.captures, string(source)+":"+outcome)
}

func (f *observerFake) ObserveFiling(docType domain.DocumentType, _ time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	f.filings = append(f.filings, string(docType)+":"+status)
}

func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		current := now
		now = now.Add(time.Millisecond)
		return current
	}
}
