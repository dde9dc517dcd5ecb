// Package content watches the local content directory where download
// workers place cached copies. When a cached copy disappears from disk
// the owning item must stop claiming it is locally present; the watcher
// reports evictions to the dispatcher, which downgrades the item's
// download state.
package content

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexjbarnes/drivesync/internal/view"
	"github.com/fsnotify/fsnotify"
)

const (
	// contentDirPerm is the permission mode for the content directory
	// when ensuring it exists before watching.
	contentDirPerm = fs.FileMode(0o755)

	// sweepInterval batches rapid removal events into one pass.
	sweepInterval = 500 * time.Millisecond
)

// Poster is the subset of the dispatcher the watcher needs.
type Poster interface {
	Post(ev view.Event)
}

// Watcher monitors the content directory for evicted cached copies.
type Watcher struct {
	dir     string
	account string
	sink    Poster
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher over dir for the given account.
func NewWatcher(dir, account string, sink Poster, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:     dir,
		account: account,
		sink:    sink,
		logger:  logger,
	}
}

// Watch blocks until the context is cancelled. Directories are watched
// recursively; removals are debounced so a directory delete reports
// each contained file once.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	w.watcher = watcher
	defer watcher.Close()

	if err := os.MkdirAll(w.dir, contentDirPerm); err != nil {
		return fmt.Errorf("creating content dir: %w", err)
	}

	if err := w.addRecursive(w.dir); err != nil {
		return fmt.Errorf("watching content dir: %w", err)
	}

	w.logger.Info("content watcher started", slog.String("dir", w.dir))

	// Removals observed since the last sweep, keyed by absolute path.
	removed := make(map[string]struct{})

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if w.shouldIgnore(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) {
				// Watch new directories; downloads land in fresh
				// subtrees. Lstat avoids following symlinks outside
				// the content directory.
				info, err := os.Lstat(event.Name)
				if err == nil && info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
					_ = w.addRecursive(event.Name)
				}

				// A re-created path is no longer evicted.
				delete(removed, event.Name)
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				removed[event.Name] = struct{}{}

				_ = watcher.Remove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			for path := range removed {
				delete(removed, path)

				// Re-validate: the file may have come back.
				if _, err := os.Stat(path); err == nil {
					continue
				}

				w.sink.Post(view.ContentEvicted{
					Account:     w.account,
					ContentPath: path,
				})
			}
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}

		if d.Type()&os.ModeSymlink != 0 {
			return filepath.SkipDir
		}

		return w.watcher.Add(path)
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}

	// Download workers write into partial files before renaming.
	if strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".tmp") {
		return true
	}

	return false
}
