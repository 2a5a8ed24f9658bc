// Package config manages the qmd collection configuration file.
//
// The file maps collection names to filesystem roots, glob patterns, and
// optional context strings. It lives at ~/.config/qmd/index.yaml and is the
// source of truth for which directories are indexed; document rows in the
// store always refer back to a collection name defined here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	qmderrors "github.com/quickmd/qmd/internal/errors"
)

// DefaultPattern is the glob applied when a collection does not set one.
const DefaultPattern = "**/*.md"

// Collection is a single configured collection entry.
type Collection struct {
	Path    string `yaml:"path"`
	Pattern string `yaml:"pattern,omitempty"`
	Context string `yaml:"context,omitempty"`
}

// NamedCollection is a collection with its name attached, as returned by
// ListCollections.
type NamedCollection struct {
	Name    string
	Path    string
	Pattern string
	Context string
}

// Config is the full configuration file contents.
type Config struct {
	Collections map[string]Collection `yaml:"collections"`

	// Contexts maps "collection/relative/path" prefixes to context strings.
	// More specific prefixes win over the collection-level context.
	Contexts map[string]string `yaml:"contexts,omitempty"`
}

// collectionNameRe restricts names to something safe inside qmd:// paths.
var collectionNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// IsValidCollectionName reports whether name can be used as a collection name.
func IsValidCollectionName(name string) bool {
	return collectionNameRe.MatchString(name)
}

// DefaultPath returns the default config file location
// (~/.config/qmd/index.yaml).
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "qmd", "index.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "qmd", "index.yaml")
	}
	return filepath.Join(home, ".config", "qmd", "index.yaml")
}

// New returns an empty config ready for collections to be added.
func New() *Config {
	return &Config{Collections: map[string]Collection{}}
}

// Load reads the config file at path. A missing file yields an empty config,
// not an error, so first runs work without setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Collections: map[string]Collection{}}, nil
		}
		return nil, qmderrors.Wrap(qmderrors.ErrCodeConfigNotFound, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, qmderrors.New(qmderrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid config at %s", path), err)
	}
	if cfg.Collections == nil {
		cfg.Collections = map[string]Collection{}
	}
	return &cfg, nil
}

// Save writes the config atomically (temp file + rename).
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// ListCollections returns all collections sorted by name.
func (c *Config) ListCollections() []NamedCollection {
	names := make([]string, 0, len(c.Collections))
	for name := range c.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]NamedCollection, 0, len(names))
	for _, name := range names {
		coll := c.Collections[name]
		pattern := coll.Pattern
		if pattern == "" {
			pattern = DefaultPattern
		}
		out = append(out, NamedCollection{
			Name:    name,
			Path:    coll.Path,
			Pattern: pattern,
			Context: coll.Context,
		})
	}
	return out
}

// GetCollection looks up one collection by name.
func (c *Config) GetCollection(name string) (NamedCollection, bool) {
	coll, ok := c.Collections[name]
	if !ok {
		return NamedCollection{}, false
	}
	pattern := coll.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	return NamedCollection{Name: name, Path: coll.Path, Pattern: pattern, Context: coll.Context}, true
}

// AddCollection registers a new collection. The path is made absolute.
func (c *Config) AddCollection(name, path, pattern, context string) error {
	if !IsValidCollectionName(name) {
		return qmderrors.New(qmderrors.ErrCodeInvalidInput,
			fmt.Sprintf("invalid collection name %q", name), nil)
	}
	if _, exists := c.Collections[name]; exists {
		return qmderrors.New(qmderrors.ErrCodeInvalidInput,
			fmt.Sprintf("collection %q already exists", name), nil)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	c.Collections[name] = Collection{Path: abs, Pattern: pattern, Context: context}
	return nil
}

// RemoveCollection drops a collection and its path contexts.
func (c *Config) RemoveCollection(name string) error {
	if _, ok := c.Collections[name]; !ok {
		return qmderrors.New(qmderrors.ErrCodeCollectionNotFound,
			fmt.Sprintf("collection not found: %s", name), nil)
	}
	delete(c.Collections, name)
	for key := range c.Contexts {
		if key == name || strings.HasPrefix(key, name+"/") {
			delete(c.Contexts, key)
		}
	}
	return nil
}

// RenameCollection renames a collection, carrying its path contexts along.
func (c *Config) RenameCollection(oldName, newName string) error {
	coll, ok := c.Collections[oldName]
	if !ok {
		return qmderrors.New(qmderrors.ErrCodeCollectionNotFound,
			fmt.Sprintf("collection not found: %s", oldName), nil)
	}
	if !IsValidCollectionName(newName) {
		return qmderrors.New(qmderrors.ErrCodeInvalidInput,
			fmt.Sprintf("invalid collection name %q", newName), nil)
	}
	if _, exists := c.Collections[newName]; exists {
		return qmderrors.New(qmderrors.ErrCodeInvalidInput,
			fmt.Sprintf("collection %q already exists", newName), nil)
	}

	delete(c.Collections, oldName)
	c.Collections[newName] = coll

	for key, val := range c.Contexts {
		if key == oldName {
			delete(c.Contexts, key)
			c.Contexts[newName] = val
		} else if rest, found := strings.CutPrefix(key, oldName+"/"); found {
			delete(c.Contexts, key)
			c.Contexts[newName+"/"+rest] = val
		}
	}
	return nil
}

// SetContext attaches a context string to "collection" or "collection/path".
func (c *Config) SetContext(key, context string) {
	if c.Contexts == nil {
		c.Contexts = map[string]string{}
	}
	c.Contexts[key] = context
}

// FindContextForPath returns the context for a document, preferring the
// longest matching "collection/path" prefix, then the collection-level
// context. Returns "" when none applies.
func (c *Config) FindContextForPath(collection, path string) string {
	best := ""
	bestLen := -1

	full := collection + "/" + path
	for key, val := range c.Contexts {
		if key == full || strings.HasPrefix(full, key+"/") || key == collection {
			if len(key) > bestLen {
				best = val
				bestLen = len(key)
			}
		}
	}
	if bestLen >= 0 {
		return best
	}

	if coll, ok := c.Collections[collection]; ok {
		return coll.Context
	}
	return ""
}
