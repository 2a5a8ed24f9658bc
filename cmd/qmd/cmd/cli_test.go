package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes one qmd invocation against the config and database
// under dir, capturing combined output.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	full := append([]string{
		"--config", filepath.Join(dir, "index.yaml"),
		"--db", filepath.Join(dir, "index.db"),
	}, args...)
	cmd.SetArgs(full)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeDoc(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestCLI_CollectionLifecycle(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))

	out, err := runCLI(t, dir, "collection", "add", "notes", docs)
	require.NoError(t, err)
	assert.Contains(t, out, `Added collection "notes"`)

	out, err = runCLI(t, dir, "collection", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "notes")
	assert.Contains(t, out, "**/*.md")

	out, err = runCLI(t, dir, "collection", "rename", "notes", "journal")
	require.NoError(t, err)
	assert.Contains(t, out, `Renamed collection "notes" to "journal"`)

	out, err = runCLI(t, dir, "collection", "remove", "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed collection")

	out, err = runCLI(t, dir, "collection", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No collections configured")
}

func TestCLI_CollectionAddRejectsBadName(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "collection", "add", "bad name!", dir)
	require.Error(t, err)
}

func TestCLI_IndexAndSearch(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	writeDoc(t, docs, "deploy.md", "# Deployment Guide\n\nDeploy with the blue-green strategy on Kubernetes.\n")
	writeDoc(t, docs, "recipes/bread.md", "# Sourdough\n\nMix flour and water, wait a day.\n")

	_, err := runCLI(t, dir, "collection", "add", "notes", docs)
	require.NoError(t, err)

	out, err := runCLI(t, dir, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "2 indexed")

	// Second run touches nothing.
	out, err = runCLI(t, dir, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	out, err = runCLI(t, dir, "search", "deployment kubernetes")
	require.NoError(t, err)
	assert.Contains(t, out, "notes/deploy.md")
	assert.Contains(t, out, "Deployment Guide")
	assert.NotContains(t, out, "bread")
}

func TestCLI_IndexUnknownCollection(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "index", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown collection")
}

func TestCLI_GetByPathAndDocid(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	writeDoc(t, docs, "api.md", "# API Reference\n\nAll endpoints return JSON.\n")

	_, err := runCLI(t, dir, "collection", "add", "notes", docs)
	require.NoError(t, err)
	_, err = runCLI(t, dir, "index")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "get", "notes/api.md")
	require.NoError(t, err)
	assert.Contains(t, out, "All endpoints return JSON")

	// First indexed document gets id 1 -> docid 000001.
	out, err = runCLI(t, dir, "get", "000001")
	require.NoError(t, err)
	assert.Contains(t, out, "All endpoints return JSON")

	_, err = runCLI(t, dir, "get", "no/such/doc.md")
	require.Error(t, err)
}

func TestCLI_EmbedAndVSearch(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	writeDoc(t, docs, "deploy.md", "# Deployment\n\nShipping containers to the production cluster.\n")
	writeDoc(t, docs, "cooking.md", "# Pasta\n\nBoil noodles in salted water.\n")

	_, err := runCLI(t, dir, "collection", "add", "notes", docs)
	require.NoError(t, err)
	_, err = runCLI(t, dir, "index")
	require.NoError(t, err)

	// vsearch before embedding fails: no vectors yet.
	_, err = runCLI(t, dir, "vsearch", "deployment cluster")
	require.Error(t, err)

	out, err := runCLI(t, dir, "embed", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "Embedded 2 documents")

	out, err = runCLI(t, dir, "embed", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "already embedded")

	out, err = runCLI(t, dir, "vsearch", "deployment cluster", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "notes/deploy.md")
}

func TestCLI_QueryHybrid(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	writeDoc(t, docs, "deploy.md", "# Deployment\n\nRollouts happen through the deploy pipeline.\n")
	writeDoc(t, docs, "misc.md", "# Misc\n\nAssorted notes with nothing in particular.\n")

	_, err := runCLI(t, dir, "collection", "add", "notes", docs)
	require.NoError(t, err)
	_, err = runCLI(t, dir, "index")
	require.NoError(t, err)

	// Hybrid works without embeddings; it degrades to keyword-only.
	out, err := runCLI(t, dir, "query", "deploy pipeline")
	require.NoError(t, err)
	assert.Contains(t, out, "notes/deploy.md")

	out, err = runCLI(t, dir, "query", "deploy pipeline", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"docid"`)
}

func TestCLI_StatusAndMaintenance(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	writeDoc(t, docs, "one.md", "# One\n\nbody\n")

	_, err := runCLI(t, dir, "collection", "add", "notes", docs)
	require.NoError(t, err)
	_, err = runCLI(t, dir, "index")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "active documents:  1")
	assert.Contains(t, out, "notes")

	out, err = runCLI(t, dir, "status", "--health")
	require.NoError(t, err)
	assert.Contains(t, out, "index is healthy")

	out, err = runCLI(t, dir, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cache cleared")

	out, err = runCLI(t, dir, "vacuum")
	require.NoError(t, err)
	assert.Contains(t, out, "orphaned content rows")
}

func TestCLI_Version(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "qmd")

	out, err = runCLI(t, dir, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"go_version"`)
}
