// Package store provides the content-addressable document store backing qmd:
// deduplicated content rows, per-collection document records, FTS5 full-text
// search, embedding storage, and the persisted result cache. Everything lives
// in a single SQLite database file opened in WAL mode.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	qmderrors "github.com/quickmd/qmd/internal/errors"
)

// TimeFormat is the timestamp format used in all store columns.
const TimeFormat = time.RFC3339

// Store is an explicitly constructed handle to one qmd database.
// It is safe for concurrent use; tests create isolated in-memory stores.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool

	// generation increments on every write that can invalidate derived
	// state (result cache, in-memory vector index).
	generation atomic.Int64

	// now supplies wall-clock timestamps; overridable in tests.
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall-clock source used for created_at/modified_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// DefaultPath returns the default database location (~/.qmd/index.db).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".qmd", "index.db")
	}
	return filepath.Join(home, ".qmd", "index.db")
}

// Open opens (or creates) the database at path. An empty path opens an
// in-memory database for testing. WAL mode is enabled for concurrent access.
func Open(path string, opts ...Option) (*Store, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer prevents SQLITE_BUSY storms under concurrent jobs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores some DSN params, so set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{
		db:   db,
		path: path,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates all tables. Idempotent.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Content bodies, stored once per hash regardless of how many
	-- documents reference them.
	CREATE TABLE IF NOT EXISTS content (
		hash TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Document records. Rows are never deleted on removal from the
	-- source tree; they flip to active = 0.
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		path TEXT NOT NULL,
		title TEXT NOT NULL,
		hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		modified_at TEXT NOT NULL
	);

	-- At most one active document per (collection, path).
	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_active
		ON documents(collection, path) WHERE active = 1;
	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(hash);

	-- FTS5 index over active documents, kept in lockstep by the
	-- indexing pipeline. doc_id is the documents.id.
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
		doc_id UNINDEXED,
		title,
		body,
		tokenize='unicode61'
	);

	-- One embedding per (content hash, model). Embeddings reference
	-- content, not documents, so shared bodies embed once.
	CREATE TABLE IF NOT EXISTS embeddings (
		hash TEXT NOT NULL,
		model TEXT NOT NULL,
		vector BLOB NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (hash, model)
	);

	-- Persisted result cache, cleared wholesale on every indexing run.
	CREATE TABLE IF NOT EXISTS result_cache (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path ("" for in-memory stores).
func (s *Store) Path() string {
	return s.path
}

// Now returns the store's current wall-clock time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Generation returns a counter that increments whenever a write invalidates
// derived state. Consumers (vector index, cache layers) compare it to decide
// whether to rebuild.
func (s *Store) Generation() int64 {
	return s.generation.Load()
}

// bumpGeneration marks derived state stale.
func (s *Store) bumpGeneration() {
	s.generation.Add(1)
}

// Vacuum reclaims free pages and truncates the WAL.
func (s *Store) Vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Close checkpoints and closes the database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// checkOpen returns an error if the store has been closed.
// Callers must hold at least a read lock.
func (s *Store) checkOpen() error {
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// wrapConstraint converts SQLite constraint violations into the fatal
// StorageConstraint error class; anything else passes through.
func wrapConstraint(err error, context string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "constraint failed") {
		cerr := qmderrors.StorageConstraint(context, err)
		slog.Error("storage_constraint_violation",
			slog.String("context", context),
			slog.String("error", err.Error()))
		return cerr
	}
	return fmt.Errorf("%s: %w", context, err)
}
