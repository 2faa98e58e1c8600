package workers

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	screenshotMaxAge = 24 * time.Hour
	screenshotKeep   = 10
	historyKeepDays  = 30
)

// HistoryPruner is the single store capability cleanup needs.
type HistoryPruner interface {
	PruneHistory(ctx context.Context, before time.Time) (int64, error)
}

// CleanupWorker prunes scan screenshots from the data directory and old rows
// from scan history. Screenshots are kept if they are both recent and among
// the newest few.
type CleanupWorker struct {
	store   HistoryPruner
	dataDir string
}

func NewCleanupWorker(store HistoryPruner, dataDir string) *CleanupWorker {
	return &CleanupWorker{store: store, dataDir: dataDir}
}

// Run triggers a cleanup on every tick until the context is cancelled.
func (w *CleanupWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Cleanup worker stopping")
			return
		case <-ticker.C:
			w.Trigger(ctx)
		}
	}
}

// Trigger runs one cleanup pass immediately.
func (w *CleanupWorker) Trigger(ctx context.Context) {
	w.pruneScreenshots()

	removed, err := w.store.PruneHistory(ctx, time.Now().AddDate(0, 0, -historyKeepDays))
	if err != nil {
		log.Printf("Cleanup: prune history failed: %v", err)
	} else if removed > 0 {
		log.Printf("Cleanup: removed %d old scan records", removed)
	}
}

func (w *CleanupWorker) pruneScreenshots() {
	entries, err := os.ReadDir(w.dataDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Cleanup: read data dir: %v", err)
		}
		return
	}

	type shot struct {
		path    string
		modTime time.Time
	}
	var shots []shot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "scan-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		shots = append(shots, shot{path: filepath.Join(w.dataDir, name), modTime: info.ModTime()})
	}

	// Newest first; the first screenshotKeep survive regardless of age.
	sort.Slice(shots, func(i, j int) bool { return shots[i].modTime.After(shots[j].modTime) })

	cutoff := time.Now().Add(-screenshotMaxAge)
	removed := 0
	for i, s := range shots {
		if i < screenshotKeep && s.modTime.After(cutoff) {
			continue
		}
		if err := os.Remove(s.path); err != nil {
			log.Printf("Cleanup: remove %s: %v", s.path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("Cleanup: removed %d screenshot(s)", removed)
	}
}
