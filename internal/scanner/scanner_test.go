package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestScan_MatchesPatternRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "readme.md", "# hi")
	writeFile(t, root, "docs/guide.md", "# guide")
	writeFile(t, root, "docs/deep/nested.md", "# nested")
	writeFile(t, root, "docs/data.json", "{}")
	writeFile(t, root, "script.sh", "echo")

	files, err := Scan(context.Background(), root, Options{Pattern: "**/*.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/deep/nested.md", "docs/guide.md", "readme.md"}, relPaths(files))
}

func TestScan_PrunesExcludedAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "kept.md", "x")
	writeFile(t, root, "node_modules/pkg/readme.md", "x")
	writeFile(t, root, ".git/config.md", "x")
	writeFile(t, root, ".obsidian/note.md", "x")
	writeFile(t, root, "vendor/lib/doc.md", "x")
	writeFile(t, root, "dist/out.md", "x")

	files, err := Scan(context.Background(), root, Options{Pattern: "**/*.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kept.md"}, relPaths(files))
}

func TestScan_HiddenFilesInVisibleDirsMatch(t *testing.T) {
	// Only dot-directories are pruned; a dot-file still matches its pattern.
	root := t.TempDir()
	writeFile(t, root, ".hidden.md", "x")
	writeFile(t, root, "normal.md", "x")

	files, err := Scan(context.Background(), root, Options{Pattern: "**/*.md"})
	require.NoError(t, err)
	assert.Contains(t, relPaths(files), ".hidden.md")
	assert.Contains(t, relPaths(files), "normal.md")
}

func TestScan_IncludeHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".notes/secret.md", "x")

	files, err := Scan(context.Background(), root, Options{Pattern: "**/*.md"})
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = Scan(context.Background(), root, Options{Pattern: "**/*.md", IncludeHidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".notes/secret.md"}, relPaths(files))
}

func TestScan_SkipsOversizeFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.md", "ok")
	writeFile(t, root, "big.md", "0123456789abcdef")

	files, err := Scan(context.Background(), root, Options{Pattern: "**/*.md", MaxFileSize: 8})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.md"}, relPaths(files))
}

func TestScan_EmptyPatternMatchesEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "x")
	writeFile(t, root, "b.txt", "x")

	files, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.txt"}, relPaths(files))
}

func TestScan_RootErrors(t *testing.T) {
	_, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)

	root := t.TempDir()
	writeFile(t, root, "file.md", "x")
	_, err = Scan(context.Background(), filepath.Join(root, "file.md"), Options{})
	assert.Error(t, err)

	_, err = Scan(context.Background(), root, Options{Pattern: "[unclosed"})
	assert.Error(t, err)
}

func TestScan_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scan(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_RespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "drafts/\n*.tmp.md\n")
	writeFile(t, root, "keep.md", "x")
	writeFile(t, root, "note.tmp.md", "x")
	writeFile(t, root, "drafts/wip.md", "x")
	writeFile(t, root, "sub/also.md", "x")

	files, err := Scan(context.Background(), root, Options{Pattern: "**/*.md", RespectGitignore: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.md", "sub/also.md"}, relPaths(files))
}

func TestScan_NestedGitignoreAppliesBelowItsDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/.gitignore", "*.md\n")
	writeFile(t, root, "sub/hidden.md", "x")
	writeFile(t, root, "top.md", "x")

	files, err := Scan(context.Background(), root, Options{Pattern: "**/*.md", RespectGitignore: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"top.md"}, relPaths(files))
}

func TestScan_GitignoreOffByDefault(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.md\n")
	writeFile(t, root, "a.md", "x")

	files, err := Scan(context.Background(), root, Options{Pattern: "**/*.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, relPaths(files))
}
