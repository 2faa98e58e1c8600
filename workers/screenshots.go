package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Uploader is the S3-compatible sink the archiver writes to.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ScreenshotWorker ships scan screenshots to object storage and removes the
// local copy once uploaded. Local retention then only matters when no bucket
// is configured.
type ScreenshotWorker struct {
	uploader Uploader
	dataDir  string
}

func NewScreenshotWorker(uploader Uploader, dataDir string) *ScreenshotWorker {
	return &ScreenshotWorker{uploader: uploader, dataDir: dataDir}
}

// Run archives on every tick until the context is cancelled.
func (w *ScreenshotWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Screenshot worker stopping")
			return
		case <-ticker.C:
			w.Trigger(ctx)
		}
	}
}

// Trigger runs one archive pass immediately.
func (w *ScreenshotWorker) Trigger(ctx context.Context) {
	entries, err := os.ReadDir(w.dataDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Screenshot worker: read data dir: %v", err)
		}
		return
	}

	uploaded := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "scan-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		if err := w.archive(ctx, name); err != nil {
			log.Printf("Screenshot worker: %s: %v", name, err)
			continue
		}
		uploaded++
	}
	if uploaded > 0 {
		log.Printf("Screenshot worker: archived %d screenshot(s)", uploaded)
	}
}

func (w *ScreenshotWorker) archive(ctx context.Context, name string) error {
	path := filepath.Join(w.dataDir, name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	key := fmt.Sprintf("screenshots/%s/%s", time.Now().Format("2006/01"), name)
	err = w.uploader.Upload(ctx, key, f, "image/png")
	f.Close()
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove local copy: %w", err)
	}
	return nil
}
