package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickmd/qmd/internal/config"
	qmderrors "github.com/quickmd/qmd/internal/errors"
	"github.com/quickmd/qmd/internal/store"
)

func newTestIndexer(t *testing.T) (*Indexer, *store.Store) {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewIndexer(s, "test-model"), s
}

func testCollection(t *testing.T) config.NamedCollection {
	t.Helper()
	return config.NamedCollection{Name: "notes", Path: t.TempDir(), Pattern: "**/*.md"}
}

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func TestIndexCollection_FreshRun(t *testing.T) {
	ix, s := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	writeFile(t, col.Path, "guide.md", "# User Guide\n\nhow to use the thing")
	writeFile(t, col.Path, "api/errors.md", "# Error Codes\n\nERR tables")

	res, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 2, res.Indexed)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Removed)
	assert.Equal(t, 2, res.NeedsEmbedding)
	assert.True(t, res.Changed())

	doc, err := s.FindActiveDocument(ctx, "notes", "guide.md")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "User Guide", doc.Title)

	hits, err := s.SearchFTS(ctx, "error codes", 10, "notes")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "qmd://notes/api/errors.md", hits[0].Filepath)
}

func TestIndexCollection_IdempotentRerun(t *testing.T) {
	ix, _ := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	writeFile(t, col.Path, "a.md", "# A\n\nalpha")
	_, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)

	res, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Indexed)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 1, res.Unchanged)
	assert.False(t, res.Changed())
}

func TestIndexCollection_UpdateByHashDiff(t *testing.T) {
	ix, s := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	writeFile(t, col.Path, "a.md", "# A\n\noriginal body")
	_, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)
	before, err := s.FindActiveDocument(ctx, "notes", "a.md")
	require.NoError(t, err)

	writeFile(t, col.Path, "a.md", "# A\n\nrewritten body")
	res, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.OrphanedPurged, "old content with no referents is purged")

	after, err := s.FindActiveDocument(ctx, "notes", "a.md")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID, "update keeps the document row")
	assert.NotEqual(t, before.Hash, after.Hash)
}

func TestIndexCollection_RemovalDeactivates(t *testing.T) {
	ix, s := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	writeFile(t, col.Path, "keep.md", "# Keep\n\nstays")
	writeFile(t, col.Path, "gone.md", "# Gone\n\nleaves")
	_, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(col.Path, "gone.md")))
	res, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	doc, err := s.FindActiveDocument(ctx, "notes", "gone.md")
	require.NoError(t, err)
	assert.Nil(t, doc, "removed file must not be active")

	hits, err := s.SearchFTS(ctx, "leaves", 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits, "removed file must not be searchable")
}

func TestIndexCollection_WhitespaceOnlySkipped(t *testing.T) {
	ix, s := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	writeFile(t, col.Path, "blank.md", "  \n\t\n")
	writeFile(t, col.Path, "real.md", "# Real\n\ncontent")

	res, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Indexed)

	doc, err := s.FindActiveDocument(ctx, "notes", "blank.md")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestIndexCollection_FileBecomingBlankStaysActive(t *testing.T) {
	ix, s := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	writeFile(t, col.Path, "a.md", "# A\n\nalpha")
	_, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)

	// The file still exists, it just lost its content. That is a skip,
	// not a removal: the document keeps its last indexed state.
	writeFile(t, col.Path, "a.md", "  \n\t\n")
	res, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Removed)

	doc, err := s.FindActiveDocument(ctx, "notes", "a.md")
	require.NoError(t, err)
	require.NotNil(t, doc, "blanked file must stay active")
	assert.Equal(t, "A", doc.Title)

	paths, err := s.GetActiveDocumentPaths(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, paths)
}

func TestIndexCollection_DeduplicatesIdenticalContent(t *testing.T) {
	ix, s := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	body := "# Same\n\nduplicated text"
	writeFile(t, col.Path, "one.md", body)
	writeFile(t, col.Path, "two.md", body)

	res, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 1, res.NeedsEmbedding, "shared content needs one embedding")

	st, err := s.Status(ctx, "test-model")
	require.NoError(t, err)
	assert.Equal(t, 1, st.ContentRows)
	assert.Equal(t, 2, st.TotalDocuments)
}

func TestIndexCollection_NormalizesPaths(t *testing.T) {
	ix, s := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	writeFile(t, col.Path, "My Notes/Daily Log.md", "# Log\n\nentry")

	_, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)

	doc, err := s.FindActiveDocument(ctx, "notes", "my-notes/daily-log.md")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "qmd://notes/my-notes/daily-log.md", doc.VirtualPath())
}

func TestIndexCollection_ClearsResultCache(t *testing.T) {
	ix, s := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	key := store.CacheKey("search", "stale")
	require.NoError(t, s.SetCachedResult(ctx, key, []byte("old")))

	writeFile(t, col.Path, "a.md", "# A\n\nalpha")
	_, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)

	_, ok, err := s.GetCachedResult(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "an indexing run must invalidate cached results")
}

func TestIndexCollection_CancelBetweenFiles(t *testing.T) {
	ix, s := newTestIndexer(t)
	col := testCollection(t)

	for i := 0; i < 10; i++ {
		writeFile(t, col.Path, fmt.Sprintf("f%02d.md", i), fmt.Sprintf("# F%d\n\nbody %d", i, i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var events int
	_, err := ix.IndexCollection(ctx, col, func(p Progress) {
		if p.Stage == StageIndex && p.Path != "" {
			events++
			if events == 3 {
				cancel()
			}
		}
	})
	require.Error(t, err)
	assert.True(t, qmderrors.IsCancelled(err))

	// Already-processed files stay committed; later files were never reached.
	paths, err := s.GetActiveDocumentPaths(context.Background(), "notes")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(paths), 3)
	assert.Less(t, len(paths), 10)
}

func TestIndexCollection_MissingRootFails(t *testing.T) {
	ix, _ := newTestIndexer(t)
	col := config.NamedCollection{Name: "notes", Path: filepath.Join(t.TempDir(), "nope")}

	_, err := ix.IndexCollection(context.Background(), col, nil)
	require.Error(t, err)
	assert.Equal(t, qmderrors.ErrCodeFileRead, qmderrors.GetCode(err))
}

func TestIndexCollection_ProgressEvents(t *testing.T) {
	ix, _ := newTestIndexer(t)
	col := testCollection(t)

	for i := 0; i < 5; i++ {
		writeFile(t, col.Path, fmt.Sprintf("f%d.md", i), fmt.Sprintf("# F%d\n\nbody", i))
	}

	var stages []Stage
	var final Progress
	_, err := ix.IndexCollection(context.Background(), col, func(p Progress) {
		stages = append(stages, p.Stage)
		if p.Stage == StageIndex {
			final = p
		}
	})
	require.NoError(t, err)

	assert.Equal(t, StageScan, stages[0])
	assert.Equal(t, StageCleanup, stages[len(stages)-1])
	assert.Equal(t, final.Current, final.Total, "last index event reports completion")
	assert.Equal(t, 5, final.Total)
}

func TestIndexCollection_ProgressCarriesRunningCounters(t *testing.T) {
	ix, _ := newTestIndexer(t)
	col := testCollection(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		writeFile(t, col.Path, fmt.Sprintf("f%d.md", i), fmt.Sprintf("# F%d\n\nbody", i))
	}
	_, err := ix.IndexCollection(ctx, col, nil)
	require.NoError(t, err)

	// Change one file so the rerun sees a mix of updated and unchanged.
	writeFile(t, col.Path, "f1.md", "# F1\n\nrewritten")

	var events []Progress
	res, err := ix.IndexCollection(ctx, col, func(p Progress) {
		if p.Stage == StageIndex {
			events = append(events, p)
		}
	})
	require.NoError(t, err)
	require.NotEmpty(t, events)

	// Per-file events report the counters before that file is processed,
	// so they never decrease and never exceed files already seen.
	prev := Progress{}
	for _, p := range events {
		done := p.Indexed + p.Updated + p.Unchanged
		assert.LessOrEqual(t, done, p.Current)
		assert.GreaterOrEqual(t, p.Indexed, prev.Indexed)
		assert.GreaterOrEqual(t, p.Updated, prev.Updated)
		assert.GreaterOrEqual(t, p.Unchanged, prev.Unchanged)
		prev = p
	}

	final := events[len(events)-1]
	assert.Equal(t, res.Indexed, final.Indexed)
	assert.Equal(t, res.Updated, final.Updated)
	assert.Equal(t, res.Unchanged, final.Unchanged)
	assert.Equal(t, 1, final.Updated)
	assert.Equal(t, 2, final.Unchanged)
	assert.InDelta(t, 100, final.Percent(), 0.01)
}

func TestEstimateETA(t *testing.T) {
	start := time.Now().Add(-10 * time.Second)

	assert.Zero(t, estimateETA(start, 1, 100), "too few samples")
	assert.Zero(t, estimateETA(start, 2, 100), "too few samples")
	assert.Zero(t, estimateETA(start, 100, 100), "nothing remaining")

	eta := estimateETA(start, 10, 20)
	assert.Greater(t, eta, 9*time.Second)
	assert.Less(t, eta, 11*time.Second)
}

func TestIndexAll_OrderedAndAccumulated(t *testing.T) {
	ix, _ := newTestIndexer(t)
	ctx := context.Background()

	rootA := t.TempDir()
	rootB := t.TempDir()
	writeFile(t, rootA, "a.md", "# A\n\nalpha")
	writeFile(t, rootB, "b.md", "# B\n\nbeta")

	cfg := config.New()
	require.NoError(t, cfg.AddCollection("zeta", rootA, "**/*.md", ""))
	require.NoError(t, cfg.AddCollection("alpha", rootB, "**/*.md", ""))

	results, err := ix.IndexAll(ctx, cfg, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Collection)
	assert.Equal(t, "zeta", results[1].Collection)
}
