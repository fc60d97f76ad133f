// Package watcher auto-archives vault documents as they change on disk.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/algiz/internal/archiver"
	"github.com/starford/algiz/internal/checksum"
	"github.com/starford/algiz/internal/storage"
)

// Watch starts an fsnotify watcher on the vault root and runs a normal-mode
// archival pass over each changed document until ctx is cancelled. Write
// bursts are debounced per path, and a pass is skipped when the document's
// content matches what the previous pass left behind, so the archiver's own
// patch writes do not retrigger archiving.
//
// New directories created at runtime are automatically added to the watch
// list.
func Watch(ctx context.Context, svc *archiver.Service, store storage.Provider, vaultRoot string, debounce time.Duration, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	pending := make(map[string]time.Time) // rel path -> deadline
	processed := make(map[string]string)  // rel path -> checksum after last pass

	tick := time.NewTicker(debounce / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-tick.C:
			now := time.Now()
			for rel, deadline := range pending {
				if now.Before(deadline) {
					continue
				}
				delete(pending, rel)
				archiveChanged(ctx, svc, store, rel, processed, logger)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// Handle new directories: add to watcher.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			pending[rel] = time.Now().Add(debounce)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// archiveChanged runs one document pass unless the content is what the
// previous pass already produced.
func archiveChanged(ctx context.Context, svc *archiver.Service, store storage.Provider, rel string, processed map[string]string, logger *slog.Logger) {
	data, err := store.Read(rel)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if processed[rel] == checksum.Sum(data) {
		logger.Debug("watcher: unchanged since last pass", slog.String("path", rel))
		return
	}

	sum, err := svc.ArchiveDocument(ctx, rel, false)
	if err != nil {
		logger.Warn("watcher: archive failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	logger.Info("watcher: archived document",
		slog.String("path", rel),
		slog.Int("archived", sum.Archived),
		slog.Int("failed", sum.Failed),
		slog.Int("skipped", sum.Skipped))

	// Record what the pass left behind, including any patches it wrote.
	if after, err := store.Read(rel); err == nil {
		processed[rel] = checksum.Sum(after)
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
