// Package index implements the incremental indexing pipeline: scan a
// collection root, diff against the document index by content hash, and
// reconcile additions, updates, and removals.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/quickmd/qmd/internal/config"
	qmderrors "github.com/quickmd/qmd/internal/errors"
	"github.com/quickmd/qmd/internal/scanner"
	"github.com/quickmd/qmd/internal/store"
)

// lockRetryDelay is how often a blocked indexer re-tries the collection
// lock while waiting on a concurrent run.
const lockRetryDelay = 100 * time.Millisecond

// etaMinProcessed is the number of files that must be processed before
// progress events carry an ETA. Below this the estimate is noise.
const etaMinProcessed = 2

// Indexer runs incremental indexing against a single store.
type Indexer struct {
	store *store.Store
	model string
}

// NewIndexer creates an Indexer. model names the embedding model used
// to count content still awaiting vectors after a run.
func NewIndexer(s *store.Store, model string) *Indexer {
	return &Indexer{store: s, model: model}
}

// IndexAll indexes every configured collection in name order. It stops
// at the first failure and returns the results accumulated so far.
func (ix *Indexer) IndexAll(ctx context.Context, cfg *config.Config, progress ProgressFunc) ([]*Result, error) {
	var results []*Result
	for _, col := range cfg.ListCollections() {
		res, err := ix.IndexCollection(ctx, col, progress)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// IndexCollection scans the collection root and reconciles the document
// index with what is on disk. Files are diffed by content hash, so
// unchanged files cost one read and one lookup. Paths that disappeared
// since the last run are deactivated, never deleted.
//
// The run is cancellable between files: a cancelled context aborts with
// ERR_503 and leaves every file processed so far committed.
func (ix *Indexer) IndexCollection(ctx context.Context, col config.NamedCollection, progress ProgressFunc) (*Result, error) {
	start := ix.store.Now()

	unlock, err := ix.acquireLock(ctx, col.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	slog.Info("index_run_started",
		slog.String("collection", col.Name),
		slog.String("path", col.Path))

	// Any run may change what queries should return, so drop cached
	// results up front rather than risking stale hits mid-run.
	if err := ix.store.ClearCache(ctx); err != nil {
		return nil, err
	}

	pattern := col.Pattern
	if pattern == "" {
		pattern = config.DefaultPattern
	}
	files, err := scanner.Scan(ctx, col.Path, scanner.Options{Pattern: pattern, RespectGitignore: true})
	if err != nil {
		if ctx.Err() != nil {
			return nil, qmderrors.IndexingCancelled(col.Name)
		}
		return nil, qmderrors.IndexingIOError(col.Path, err)
	}

	res := &Result{Collection: col.Name, Scanned: len(files)}
	emit(progress, Progress{Stage: StageScan, Total: len(files)})

	seen := make(map[string]bool, len(files))
	processed := 0
	loopStart := time.Now()

	for _, f := range files {
		if ctx.Err() != nil {
			return nil, qmderrors.IndexingCancelled(col.Name)
		}

		absPath := filepath.Join(col.Path, filepath.FromSlash(f.RelPath))
		raw, err := os.ReadFile(absPath)
		if err != nil {
			return nil, qmderrors.IndexingIOError(f.RelPath, err)
		}
		body := string(raw)

		processed++
		emit(progress, Progress{
			Stage:     StageIndex,
			Current:   processed,
			Total:     len(files),
			Path:      f.RelPath,
			Indexed:   res.Indexed,
			Updated:   res.Updated,
			Unchanged: res.Unchanged,
			ETA:       estimateETA(loopStart, processed, len(files)),
		})

		// The file still exists on disk, so it counts as seen even when
		// its content is skipped below. A document whose file becomes
		// whitespace-only keeps its last indexed content rather than
		// being deactivated as removed.
		docPath := store.NormalizePath(f.RelPath)
		seen[docPath] = true

		if strings.TrimSpace(body) == "" {
			res.Skipped++
			continue
		}

		if err := ix.indexOne(ctx, col.Name, docPath, body, f.ModTime, res); err != nil {
			return nil, err
		}
	}

	emit(progress, Progress{
		Stage:     StageIndex,
		Current:   len(files),
		Total:     len(files),
		Indexed:   res.Indexed,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
	})

	if err := ix.deactivateMissing(ctx, col.Name, seen, res); err != nil {
		return nil, err
	}

	emit(progress, Progress{Stage: StageCleanup})
	purged, err := ix.store.CleanupOrphanedContent(ctx)
	if err != nil {
		return nil, err
	}
	res.OrphanedPurged = purged

	pending, err := ix.store.CountHashesNeedingEmbedding(ctx, ix.model)
	if err != nil {
		return nil, err
	}
	res.NeedsEmbedding = pending
	res.Duration = ix.store.Now().Sub(start)

	slog.Info("index_run_completed",
		slog.String("collection", col.Name),
		slog.Int("scanned", res.Scanned),
		slog.Int("indexed", res.Indexed),
		slog.Int("updated", res.Updated),
		slog.Int("removed", res.Removed),
		slog.Int("needs_embedding", res.NeedsEmbedding))
	return res, nil
}

// indexOne reconciles a single on-disk file with the document index.
func (ix *Indexer) indexOne(ctx context.Context, collection, docPath, body string, modTime time.Time, res *Result) error {
	hash := store.HashContent(body)
	title := ExtractTitle(body, docPath)

	existing, err := ix.store.FindActiveDocument(ctx, collection, docPath)
	if err != nil {
		return err
	}

	switch {
	case existing == nil:
		if err := ix.store.InsertContent(ctx, hash, body); err != nil {
			return err
		}
		if _, err := ix.store.InsertDocument(ctx, collection, docPath, title, hash, modTime, modTime); err != nil {
			return err
		}
		res.Indexed++
		slog.Debug("document_indexed",
			slog.String("collection", collection),
			slog.String("path", docPath))

	case existing.Hash != hash:
		if err := ix.store.InsertContent(ctx, hash, body); err != nil {
			return err
		}
		if err := ix.store.UpdateDocument(ctx, existing.ID, title, hash, modTime); err != nil {
			return err
		}
		res.Updated++
		slog.Debug("document_updated",
			slog.String("collection", collection),
			slog.String("path", docPath))

	case existing.Title != title:
		if err := ix.store.UpdateDocumentTitle(ctx, existing.ID, title, modTime); err != nil {
			return err
		}
		res.Updated++

	default:
		res.Unchanged++
	}
	return nil
}

// deactivateMissing marks documents whose files vanished since the last
// run as inactive.
func (ix *Indexer) deactivateMissing(ctx context.Context, collection string, seen map[string]bool, res *Result) error {
	paths, err := ix.store.GetActiveDocumentPaths(ctx, collection)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if seen[p] {
			continue
		}
		ok, err := ix.store.DeactivateDocument(ctx, collection, p)
		if err != nil {
			return err
		}
		if ok {
			res.Removed++
			slog.Debug("document_removed",
				slog.String("collection", collection),
				slog.String("path", p))
		}
	}
	return nil
}

// acquireLock takes the per-collection file lock so two indexing runs
// can't interleave writes. In-memory stores have no lock directory and
// skip locking.
func (ix *Indexer) acquireLock(ctx context.Context, collection string) (func(), error) {
	dbPath := ix.store.Path()
	if dbPath == "" {
		return func() {}, nil
	}

	lockDir := filepath.Join(filepath.Dir(dbPath), "locks")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(lockDir, collection+".lock"))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire collection lock %q: %w", collection, err)
	}
	if !locked {
		return nil, fmt.Errorf("collection %q is locked by another indexing run", collection)
	}
	return func() { _ = fl.Unlock() }, nil
}

func emit(progress ProgressFunc, p Progress) {
	if progress != nil {
		progress(p)
	}
}

// estimateETA projects time remaining from throughput so far. Returns
// zero until enough files have been processed for a stable estimate.
func estimateETA(start time.Time, processed, total int) time.Duration {
	if processed <= etaMinProcessed || total <= processed {
		return 0
	}
	elapsed := time.Since(start)
	perFile := elapsed / time.Duration(processed)
	return perFile * time.Duration(total-processed)
}
