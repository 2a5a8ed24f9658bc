// Package scanner discovers indexable documents under a collection root.
// It walks the tree once, prunes excluded directories, and matches the
// remaining files against the collection's glob pattern.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/quickmd/qmd/internal/gitignore"
)

// DefaultMaxFileSize is the largest file the scanner will report (10 MB).
// Anything bigger is almost certainly not a document worth indexing.
const DefaultMaxFileSize = 10 * 1024 * 1024

// excludedDirs are pruned from every walk regardless of pattern. These
// hold generated or third-party trees that drown out real documents.
var excludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".cache":       true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
}

// ExcludedDir reports whether a directory name is always pruned. The
// watcher uses the same predicate so watch mode and scans agree.
func ExcludedDir(name string) bool {
	return excludedDirs[name] || strings.HasPrefix(name, ".")
}

// FileInfo describes one discovered file, with its path relative to the
// scanned root using forward slashes.
type FileInfo struct {
	RelPath string
	Size    int64
	ModTime time.Time
}

// Options controls a scan.
type Options struct {
	// Pattern is a doublestar glob matched against slash-separated
	// relative paths, e.g. "**/*.md". Empty means match everything.
	Pattern string
	// MaxFileSize caps reported files; <= 0 uses DefaultMaxFileSize.
	MaxFileSize int64
	// IncludeHidden reports files inside dot-directories too.
	IncludeHidden bool
	// RespectGitignore honors .gitignore files found during the walk,
	// including nested ones.
	RespectGitignore bool
}

// Scan walks root and returns matching files sorted by relative path.
// The sort makes indexing runs deterministic. Unreadable subdirectories
// are logged and skipped rather than failing the whole scan.
func Scan(ctx context.Context, root string, opts Options) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root is not a directory: %s", absRoot)
	}

	pattern := opts.Pattern
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %q", pattern)
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var ignore *gitignore.Matcher
	if opts.RespectGitignore {
		ignore = gitignore.New()
	}

	var files []FileInfo
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			slog.Warn("scan_skip_unreadable", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		name := d.Name()
		if d.IsDir() {
			if path == absRoot {
				rel = ""
			} else if excludedDirs[name] || (!opts.IncludeHidden && strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			if ignore != nil {
				if rel != "" && ignore.Ignored(rel, true) {
					return filepath.SkipDir
				}
				if err := ignore.AddFile(filepath.Join(path, ".gitignore"), rel); err != nil {
					slog.Warn("scan_gitignore_unreadable", slog.String("path", path), slog.String("error", err.Error()))
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ignore != nil && ignore.Ignored(rel, false) {
			return nil
		}

		if pattern != "" {
			ok, _ := doublestar.Match(pattern, rel)
			if !ok {
				return nil
			}
		}

		fi, err := d.Info()
		if err != nil {
			slog.Warn("scan_skip_stat_failed", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if fi.Size() > maxSize {
			slog.Debug("scan_skip_oversize",
				slog.String("path", rel),
				slog.Int64("size", fi.Size()))
			return nil
		}

		files = append(files, FileInfo{RelPath: rel, Size: fi.Size(), ModTime: fi.ModTime()})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
