package workers

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeUploader struct {
	keys []string
	err  error
}

func (u *fakeUploader) Upload(_ context.Context, key string, data io.Reader, contentType string) error {
	if u.err != nil {
		return u.err
	}
	if contentType != "image/png" {
		return errors.New("unexpected content type " + contentType)
	}
	io.Copy(io.Discard, data)
	u.keys = append(u.keys, key)
	return nil
}

func TestScreenshotArchive(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"scan-p1-a.png", "scan-p1-b.png", "monitor.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	uploader := &fakeUploader{}
	w := NewScreenshotWorker(uploader, dir)
	w.Trigger(context.Background())

	if len(uploader.keys) != 2 {
		t.Fatalf("uploads = %d, want 2", len(uploader.keys))
	}
	for _, key := range uploader.keys {
		if !strings.HasPrefix(key, "screenshots/") || !strings.HasSuffix(key, ".png") {
			t.Errorf("unexpected key %q", key)
		}
	}

	// Uploaded screenshots are gone, everything else stays.
	if _, err := os.Stat(filepath.Join(dir, "scan-p1-a.png")); !os.IsNotExist(err) {
		t.Error("uploaded screenshot still on disk")
	}
	if _, err := os.Stat(filepath.Join(dir, "monitor.log")); err != nil {
		t.Errorf("unrelated file missing: %v", err)
	}
}

func TestScreenshotArchiveKeepsFileOnUploadError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "scan-p1-a.png"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w := NewScreenshotWorker(&fakeUploader{err: errors.New("bucket unavailable")}, dir)
	w.Trigger(context.Background())

	if _, err := os.Stat(filepath.Join(dir, "scan-p1-a.png")); err != nil {
		t.Error("screenshot removed despite failed upload")
	}
}
