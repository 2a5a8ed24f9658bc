package store

import (
	"context"
	"fmt"
	"os"
)

// Status returns a store-wide summary: per-collection document counts,
// content and embedding totals, cache size, and db file size.
func (s *Store) Status(ctx context.Context, model string) (*Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	st := &Status{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, COUNT(*)
		FROM documents WHERE active = 1
		GROUP BY collection ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("status collections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cs CollectionStatus
		if err := rows.Scan(&cs.Name, &cs.ActiveDocuments); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		st.Collections = append(st.Collections, cs)
		st.ActiveDocuments += cs.ActiveDocuments
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scalars := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM documents`, &st.TotalDocuments},
		{`SELECT COUNT(*) FROM content`, &st.ContentRows},
		{`SELECT COUNT(*) FROM result_cache`, &st.CacheEntries},
	}
	for _, sc := range scalars {
		if err := s.db.QueryRowContext(ctx, sc.query).Scan(sc.dest); err != nil {
			return nil, fmt.Errorf("status scalar: %w", err)
		}
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE model = ?`, model).Scan(&st.EmbeddedHashes); err != nil {
		return nil, fmt.Errorf("status embeddings: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT d.hash)
		FROM documents d
		WHERE d.active = 1
		  AND d.hash NOT IN (SELECT hash FROM embeddings WHERE model = ?)`,
		model).Scan(&st.PendingHashes); err != nil {
		return nil, fmt.Errorf("status pending: %w", err)
	}

	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}

	return st, nil
}

// Health reports consistency counters between the tables. All-zero damage
// counters mean the store is internally consistent.
func (s *Store) Health(ctx context.Context) (*IndexHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	h := &IndexHealth{}

	checks := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM content
		  WHERE hash NOT IN (SELECT DISTINCT hash FROM documents)
		    AND hash NOT IN (SELECT DISTINCT hash FROM embeddings)`, &h.OrphanedContent},
		{`SELECT COUNT(*) FROM documents WHERE active = 0`, &h.InactiveDocuments},
		{`SELECT
		    (SELECT COUNT(*) FROM documents d WHERE d.active = 1
		       AND d.id NOT IN (SELECT doc_id FROM fts_documents))
		  + (SELECT COUNT(*) FROM fts_documents f
		       WHERE f.doc_id NOT IN (SELECT id FROM documents WHERE active = 1))`, &h.FTSOutOfSync},
		{`SELECT COUNT(*) FROM embeddings
		  WHERE hash NOT IN (SELECT hash FROM content)`, &h.DanglingEmbeddings},
	}
	for _, c := range checks {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("health check: %w", err)
		}
	}

	return h, nil
}
