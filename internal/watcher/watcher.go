// Package watcher implements watch mode: filesystem notifications over
// every collection root, debounced into per-collection re-index
// triggers.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quickmd/qmd/internal/config"
	"github.com/quickmd/qmd/internal/scanner"
)

// Watcher maps raw filesystem events to the collections they belong to
// and emits a debounced trigger per collection.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *Debouncer

	// roots maps absolute collection roots to collection names, kept
	// sorted longest-first so nested roots resolve to the inner one.
	roots     map[string]string
	rootOrder []string
}

func New(window time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}
	return &Watcher{
		fsw:       fsw,
		debouncer: NewDebouncer(window),
		roots:     make(map[string]string),
	}, nil
}

// AddCollection registers every directory under the collection root,
// skipping the directories scans exclude.
func (w *Watcher) AddCollection(col config.NamedCollection) error {
	absRoot, err := filepath.Abs(col.Path)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("watch_skip_unreadable", slog.String("path", path))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != absRoot && scanner.ExcludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch collection %q: %w", col.Name, err)
	}

	w.roots[absRoot] = col.Name
	w.rootOrder = append(w.rootOrder, absRoot)
	sort.Slice(w.rootOrder, func(i, j int) bool {
		return len(w.rootOrder[i]) > len(w.rootOrder[j])
	})
	slog.Info("watch_collection_added",
		slog.String("collection", col.Name),
		slog.String("root", absRoot))
	return nil
}

// Run pumps filesystem events into the debouncer and calls onChange for
// each collection whose window elapses. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onChange func(collection string)) error {
	defer w.debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))

		case collection := <-w.debouncer.Output():
			onChange(collection)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if scanner.ExcludedDir(name) && ev.Op.Has(fsnotify.Create) {
		return
	}

	collection := w.collectionFor(ev.Name)
	if collection == "" {
		return
	}

	// New directories need their own watch for events underneath them.
	if ev.Op.Has(fsnotify.Create) && !scanner.ExcludedDir(name) {
		if err := w.fsw.Add(ev.Name); err == nil {
			slog.Debug("watch_dir_added", slog.String("path", ev.Name))
		}
		// Add fails for plain files; that is fine, only directories
		// need watches.
	}

	slog.Debug("watch_event",
		slog.String("op", ev.Op.String()),
		slog.String("path", ev.Name),
		slog.String("collection", collection))
	w.debouncer.Trigger(collection)
}

// collectionFor resolves a path to the collection owning it, longest
// root first.
func (w *Watcher) collectionFor(path string) string {
	for _, root := range w.rootOrder {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return w.roots[root]
		}
	}
	return ""
}

func (w *Watcher) Close() error {
	w.debouncer.Stop()
	return w.fsw.Close()
}
