package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// CacheKey derives the result-cache key from every parameter that affects a
// query's result. Parts are length-prefixed before hashing so ("ab","c")
// and ("a","bc") never collide.
func CacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetCachedResult returns the cached value for key, or ok=false on a miss.
func (s *Store) GetCachedResult(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM result_cache WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return value, true, nil
}

// SetCachedResult stores a value under key, replacing any previous entry.
func (s *Store) SetCachedResult(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO result_cache (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, s.now().Format(TimeFormat))
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// ClearCache drops every cache entry. Called unconditionally at the start of
// each indexing run; conservative invalidation keeps cached results correct.
func (s *Store) ClearCache(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM result_cache`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}

	s.bumpGeneration()
	slog.Debug("result_cache_cleared")
	return nil
}

// NormalizeCacheQuery canonicalizes query text for key derivation so
// insignificant whitespace doesn't fragment the cache.
func NormalizeCacheQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
