package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

var allowedExts = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// Importer files one dropped document.
type Importer interface {
	ImportFrom(ctx context.Context, source domain.CaptureSource, filename, mimeType string, body io.Reader) (*domain.FiledDocument, error)
}

type Config struct {
	Root        string
	Debounce    time.Duration
	InitialScan bool
}

// Watcher feeds files dropped into a folder to the importer, one at a time.
// Imported files are removed from the folder; failed ones stay for the next
// scan.
type Watcher struct {
	cfg      Config
	importer Importer
	logger   *slog.Logger
}

func New(cfg Config, importer Importer, logger *slog.Logger) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{cfg: cfg, importer: importer, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.cfg.Root == "" {
		return errors.New("inbox root is empty")
	}
	if err := os.MkdirAll(w.cfg.Root, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.cfg.Root); err != nil {
		return fmt.Errorf("watch inbox dir: %w", err)
	}
	w.logger.Info("inbox watcher started", "root", w.cfg.Root)

	work := make(chan string, 256)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range work {
			w.handle(ctx, path)
		}
	}()
	defer func() {
		close(work)
		wg.Wait()
	}()

	pending := map[string]struct{}{}
	if w.cfg.InitialScan {
		entries, err := os.ReadDir(w.cfg.Root)
		if err != nil {
			return fmt.Errorf("scan inbox dir: %w", err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && allowed(entry.Name()) {
				pending[filepath.Join(w.cfg.Root, entry.Name())] = struct{}{}
			}
		}
	}

	timer := time.NewTimer(w.cfg.Debounce)
	if len(pending) == 0 && !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !allowed(event.Name) || event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.cfg.Debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox watcher error", "error", err)
		case <-timer.C:
			for path := range pending {
				select {
				case work <- path:
				case <-ctx.Done():
					return nil
				}
				delete(pending, path)
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		w.logger.Warn("inbox mime detection failed", "path", path, "error", err)
		return
	}
	mimeType := mime.String()
	if !strings.HasPrefix(mimeType, "image/") && !mime.Is("application/pdf") {
		w.logger.Warn("inbox file skipped", "path", path, "mime_type", mimeType)
		return
	}

	if err := w.importFile(ctx, path, mimeType); err != nil {
		w.logger.Error("inbox import failed", "path", path, "error", err)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("inbox cleanup failed", "path", path, "error", err)
	}
}

func (w *Watcher) importFile(ctx context.Context, path, mimeType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open inbox file: %w", err)
	}
	defer f.Close()

	filed, err := w.importer.ImportFrom(ctx, domain.SourceInbox, filepath.Base(path), mimeType, f)
	if err != nil {
		return err
	}
	w.logger.Info("inbox file imported", "path", path, "filed_path", filed.Path)
	return nil
}

func allowed(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := allowedExts[ext]
	return ok
}
