package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// HashContent returns the content digest used as the storage key: SHA-256
// over the body, hex encoded. Identical bodies always map to one hash.
func HashContent(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// InsertContent stores a content body under its hash. Idempotent: inserting
// an existing hash is a no-op, since the body for a given hash is invariant.
func (s *Store) InsertContent(ctx context.Context, hash, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO content (hash, doc, created_at) VALUES (?, ?, ?)`,
		hash, body, s.now().Format(TimeFormat))
	return wrapConstraint(err, "insert content")
}

// GetContentBody returns the body stored for hash, or ok=false.
func (s *Store) GetContentBody(ctx context.Context, hash string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return "", false, err
	}

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM content WHERE hash = ?`, hash).Scan(&body)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get content: %w", err)
	}
	return body, true, nil
}

// CleanupOrphanedContent deletes every content row whose hash is referenced
// by zero documents (active or inactive) and zero embeddings. Each hash is
// deleted in one transaction, so concurrent readers never observe a
// half-deleted row. Returns the number of rows removed.
func (s *Store) CleanupOrphanedContent(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM content
		WHERE hash NOT IN (SELECT DISTINCT hash FROM documents)
		  AND hash NOT IN (SELECT DISTINCT hash FROM embeddings)`)
	if err != nil {
		return 0, fmt.Errorf("cleanup orphaned content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		s.bumpGeneration()
		slog.Debug("orphaned_content_removed", slog.Int64("count", n))
	}
	return int(n), nil
}
