package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// upsertFTSTx refreshes the FTS row for a document inside an open
// transaction. FTS5 tables don't support REPLACE, so delete then insert.
// The body comes from the content table; a missing hash is a constraint
// breach the caller will hit anyway.
func upsertFTSTx(ctx context.Context, tx *sql.Tx, docID int64, title, hash string) error {
	var body string
	err := tx.QueryRowContext(ctx, `SELECT doc FROM content WHERE hash = ?`, hash).Scan(&body)
	if err != nil {
		return fmt.Errorf("fts body lookup for %s: %w", hash, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fts_documents WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("fts delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fts_documents (doc_id, title, body) VALUES (?, ?, ?)`,
		docID, title, body); err != nil {
		return fmt.Errorf("fts insert: %w", err)
	}
	return nil
}

var ftsTokenRe = regexp.MustCompile(`[\pL\pN]+`)

// buildMatchQuery turns free text into a safe FTS5 MATCH expression:
// each token double-quoted (so punctuation can't become syntax) and
// AND-joined. Returns "" when the query has no searchable tokens.
func buildMatchQuery(query string) string {
	tokens := ftsTokenRe.FindAllString(query, -1)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ToLower(tok) + `"`
	}
	return strings.Join(quoted, " ")
}

// bm25ToScore maps a raw FTS5 bm25() value to [0,1). FTS5 returns negative
// values where more negative is better; raw = -bm25 is positive, and
// raw/(1+raw) is monotonic and absolute, so strong-signal thresholds keep
// their meaning across queries.
func bm25ToScore(bm25 float64) float64 {
	raw := -bm25
	if raw <= 0 {
		return 0
	}
	return raw / (1 + raw)
}

// SearchFTS runs a BM25-ranked full-text query over active documents.
// Results are ordered by descending score with ties broken by document id
// ascending, at most limit rows. An empty collection filter means all
// collections. A blank query yields an empty list by contract, not an error.
func (s *Store) SearchFTS(ctx context.Context, query string, limit int, collection string) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	match := buildMatchQuery(query)
	if match == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	sqlQuery := `
		SELECT d.id, d.collection, d.path, d.title, d.hash, c.doc,
		       bm25(fts_documents) AS rank
		FROM fts_documents f
		JOIN documents d ON d.id = f.doc_id
		JOIN content c ON c.hash = d.hash
		WHERE fts_documents MATCH ? AND d.active = 1`
	args := []any{match}
	if collection != "" {
		sqlQuery += ` AND d.collection = ?`
		args = append(args, collection)
	}
	sqlQuery += ` ORDER BY rank ASC, d.id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		// FTS5 rejects some otherwise-sanitized queries; treat as no results.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return []SearchResult{}, nil
		}
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			id                           int64
			coll, path, title, hash, doc string
			rank                         float64
		)
		if err := rows.Scan(&id, &coll, &path, &title, &hash, &doc, &rank); err != nil {
			return nil, fmt.Errorf("scan fts result: %w", err)
		}
		results = append(results, SearchResult{
			Docid:          Docid(id),
			Filepath:       BuildVirtualPath(coll, path),
			Title:          title,
			DisplayPath:    coll + "/" + path,
			Score:          bm25ToScore(rank),
			Body:           doc,
			CollectionName: coll,
			Hash:           hash,
			Source:         "fts",
		})
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, rows.Err()
}
