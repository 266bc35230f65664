package devserver

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher watches directory trees and reports batches of changed paths once
// events stop arriving for the debounce period.
type Watcher struct {
	roots    []string
	files    []string
	debounce time.Duration
	logger   zerolog.Logger
	onChange func(ctx context.Context, changed []string)

	mu      sync.Mutex
	pending []string
	timer   *time.Timer
}

func NewWatcher(roots, files []string, debounce time.Duration, logger zerolog.Logger, onChange func(ctx context.Context, changed []string)) *Watcher {
	return &Watcher{
		roots:    roots,
		files:    files,
		debounce: debounce,
		logger:   logger,
		onChange: onChange,
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range w.roots {
		w.addTree(watcher, root)
	}
	// files are watched through their directory, editors often replace them
	for _, f := range w.files {
		if err := watcher.Add(filepath.Dir(f)); err != nil {
			w.logger.Warn().Err(err).Str("file", f).Msg("Failed to watch file")
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				w.addTree(watcher, event.Name)
			}
			w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Change detected")
			w.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	for _, f := range w.files {
		if event.Name == f {
			return true
		}
	}
	for _, root := range w.roots {
		if event.Name == root || within(root, event.Name) {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, path)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		changed := w.pending
		w.pending = nil
		w.mu.Unlock()

		if ctx.Err() != nil || len(changed) == 0 {
			return
		}
		w.onChange(ctx, changed)
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) {
	if _, err := os.Stat(root); err != nil {
		w.logger.Debug().Str("dir", root).Msg("Directory not found, not watching")
		return
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug().Err(err).Str("path", path).Msg("Error walking directory")
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				w.logger.Warn().Err(err).Str("dir", path).Msg("Failed to watch directory")
			}
		}
		return nil
	})
	if err != nil {
		w.logger.Warn().Err(err).Str("dir", root).Msg("Failed to walk directory for watching")
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
