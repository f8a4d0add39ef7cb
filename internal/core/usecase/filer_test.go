package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/filing"
)

// slowExistsStorage widens the gap between the free-name check and the move.
type slowExistsStorage struct {
	*storageFake
}

func (s slowExistsStorage) Exists(ctx context.Context, key string) (bool, error) {
	time.Sleep(time.Millisecond)
	return s.storageFake.Exists(ctx, key)
}

func TestDocumentFilerConcurrentFilesNeverShareAName(t *testing.T) {
	disk := newMemDisk()
	temp := newStorageFake(disk, "/tmp")
	docs := newStorageFake(disk, "/docs")
	filer := NewDocumentFiler(slowExistsStorage{docs}, temp, filing.NewPolicy(domain.FilingByType), nil, nil, nil, nil)

	const workers = 16
	captures := make([]domain.Capture, workers)
	for i := range captures {
		key := fmt.Sprintf("pick_%d.jpg", i)
		temp.put(key, fmt.Sprintf("body-%d", i))
		captures[i] = domain.Capture{
			ID:         fmt.Sprintf("cap-%d", i),
			TempKey:    key,
			MimeType:   "image/jpeg",
			Classified: domain.DefaultClassification(),
			CapturedAt: captureEpoch,
		}
	}

	var wg sync.WaitGroup
	paths := make([]string, workers)
	errs := make([]error, workers)
	for i := range captures {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			filed, err := filer.File(context.Background(), captures[i])
			if err != nil {
				errs[i] = err
				return
			}
			paths[i] = filed.Path
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, p := range paths {
		if errs[i] != nil {
			t.Fatalf("File(%s) error = %v", captures[i].ID, errs[i])
		}
		if seen[p] {
			t.Fatalf("two captures filed at %s", p)
		}
		seen[p] = true
	}
	if !seen["Other/Unknown_Other_NA.jpg"] || !seen[fmt.Sprintf("Other/Unknown_Other_NA_%d.jpg", workers-1)] {
		t.Fatalf("unexpected paths: %v", paths)
	}

	files, _ := docs.List(context.Background(), "")
	if len(files) != workers {
		t.Fatalf("expected %d filed documents, got %d", workers, len(files))
	}
}
