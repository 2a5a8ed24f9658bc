package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsEmptyConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Collections)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	// Given: a config with two collections and a path context
	path := filepath.Join(t.TempDir(), "index.yaml")
	cfg := &Config{Collections: map[string]Collection{}}
	require.NoError(t, cfg.AddCollection("notes", "/data/notes", "", "personal notes"))
	require.NoError(t, cfg.AddCollection("docs", "/data/docs", "**/*.txt", ""))
	cfg.SetContext("docs/api", "API reference material")

	// When: saved and reloaded
	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	// Then: everything survives
	colls := loaded.ListCollections()
	require.Len(t, colls, 2)
	assert.Equal(t, "docs", colls[0].Name) // sorted by name
	assert.Equal(t, "**/*.txt", colls[0].Pattern)
	assert.Equal(t, "notes", colls[1].Name)
	assert.Equal(t, DefaultPattern, colls[1].Pattern)
	assert.Equal(t, "API reference material", loaded.FindContextForPath("docs", "api/errors.md"))
}

func TestAddCollection_Validation(t *testing.T) {
	cfg := &Config{Collections: map[string]Collection{}}

	require.NoError(t, cfg.AddCollection("notes", "/x", "", ""))
	assert.Error(t, cfg.AddCollection("notes", "/y", "", ""), "duplicate name rejected")
	assert.Error(t, cfg.AddCollection("bad name", "/y", "", ""), "space in name rejected")
	assert.Error(t, cfg.AddCollection("", "/y", "", ""))
}

func TestRemoveCollection_DropsContexts(t *testing.T) {
	cfg := &Config{Collections: map[string]Collection{}}
	require.NoError(t, cfg.AddCollection("notes", "/x", "", ""))
	cfg.SetContext("notes/work", "work stuff")
	cfg.SetContext("notesbook", "unrelated key")

	require.NoError(t, cfg.RemoveCollection("notes"))

	_, ok := cfg.Collections["notes"]
	assert.False(t, ok)
	_, ok = cfg.Contexts["notes/work"]
	assert.False(t, ok)
	_, ok = cfg.Contexts["notesbook"]
	assert.True(t, ok, "prefix match must be segment-aware")

	assert.Error(t, cfg.RemoveCollection("gone"))
}

func TestRenameCollection_CarriesContexts(t *testing.T) {
	cfg := &Config{Collections: map[string]Collection{}}
	require.NoError(t, cfg.AddCollection("notes", "/x", "", "ctx"))
	cfg.SetContext("notes/work", "work stuff")

	require.NoError(t, cfg.RenameCollection("notes", "journal"))

	_, ok := cfg.Collections["notes"]
	assert.False(t, ok)
	got, ok := cfg.GetCollection("journal")
	require.True(t, ok)
	assert.Equal(t, "/x", got.Path)
	assert.Equal(t, "work stuff", cfg.Contexts["journal/work"])
}

func TestFindContextForPath_LongestPrefixWins(t *testing.T) {
	cfg := &Config{Collections: map[string]Collection{
		"docs": {Path: "/d", Context: "collection level"},
	}}
	cfg.SetContext("docs/api", "api level")
	cfg.SetContext("docs/api/internal", "internal level")

	assert.Equal(t, "internal level", cfg.FindContextForPath("docs", "api/internal/auth.md"))
	assert.Equal(t, "api level", cfg.FindContextForPath("docs", "api/errors.md"))
	assert.Equal(t, "collection level", cfg.FindContextForPath("docs", "readme.md"))
	assert.Equal(t, "", cfg.FindContextForPath("other", "readme.md"))
}

func TestIsValidCollectionName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"notes", true},
		{"my-docs.v2", true},
		{"A1", true},
		{"-leading", false},
		{"has space", false},
		{"has/slash", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidCollectionName(tt.name), tt.name)
	}
}
