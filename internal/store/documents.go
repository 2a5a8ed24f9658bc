package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// documentColumns is the scan list shared by all document queries.
const documentColumns = `id, collection, path, title, hash, active, created_at, modified_at`

// scanDocument scans one documents row.
func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	var active int
	var createdAt, modifiedAt string
	err := row.Scan(&d.ID, &d.Collection, &d.Path, &d.Title, &d.Hash, &active, &createdAt, &modifiedAt)
	if err != nil {
		return nil, err
	}
	d.Active = active != 0
	d.CreatedAt, _ = time.Parse(TimeFormat, createdAt)
	d.ModifiedAt, _ = time.Parse(TimeFormat, modifiedAt)
	return &d, nil
}

// FindActiveDocument returns the active document at (collection, path),
// or nil when none exists.
func (s *Store) FindActiveDocument(ctx context.Context, collection, path string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE collection = ? AND path = ? AND active = 1`,
		collection, path)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active document: %w", err)
	}
	return doc, nil
}

// GetDocumentByID returns the document with the given id, or nil.
func (s *Store) GetDocumentByID(ctx context.Context, id int64) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// FindDocumentByDocid resolves a docid reference to its document, or nil.
// Inactive documents resolve too; docids are stable history.
func (s *Store) FindDocumentByDocid(ctx context.Context, docid string) (*Document, error) {
	id, ok := ParseDocid(docid)
	if !ok {
		return nil, nil
	}
	return s.GetDocumentByID(ctx, id)
}

// InsertDocument creates a new active document row and its FTS entry.
// Returns the new document id. createdAt/modifiedAt come from the caller so
// file mtimes survive; zero values fall back to the store clock.
func (s *Store) InsertDocument(ctx context.Context, collection, path, title, hash string, createdAt, modifiedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	if createdAt.IsZero() {
		createdAt = s.now()
	}
	if modifiedAt.IsZero() {
		modifiedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (collection, path, title, hash, active, created_at, modified_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		collection, path, title, hash,
		createdAt.Format(TimeFormat), modifiedAt.Format(TimeFormat))
	if err != nil {
		return 0, wrapConstraint(err, "insert document")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert document id: %w", err)
	}

	if err := upsertFTSTx(ctx, tx, id, title, hash); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert document: %w", err)
	}

	s.bumpGeneration()
	return id, nil
}

// UpdateDocument records a content change: new hash, title, and modified
// time. Refreshes the FTS row. A nonexistent id is a no-op.
func (s *Store) UpdateDocument(ctx context.Context, id int64, title, hash string, modifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if modifiedAt.IsZero() {
		modifiedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET title = ?, hash = ?, modified_at = ? WHERE id = ?`,
		title, hash, modifiedAt.Format(TimeFormat), id)
	if err != nil {
		return wrapConstraint(err, "update document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if err := upsertFTSTx(ctx, tx, id, title, hash); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update document: %w", err)
	}

	s.bumpGeneration()
	return nil
}

// UpdateDocumentTitle updates only the title (hash unchanged).
// A nonexistent id is a no-op.
func (s *Store) UpdateDocumentTitle(ctx context.Context, id int64, title string, modifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if modifiedAt.IsZero() {
		modifiedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update title: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var hash string
	err = tx.QueryRowContext(ctx, `SELECT hash FROM documents WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update title lookup: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET title = ?, modified_at = ? WHERE id = ?`,
		title, modifiedAt.Format(TimeFormat), id); err != nil {
		return wrapConstraint(err, "update document title")
	}

	if err := upsertFTSTx(ctx, tx, id, title, hash); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update title: %w", err)
	}

	s.bumpGeneration()
	return nil
}

// DeactivateDocument marks the active document at (collection, path)
// inactive and removes its FTS row. Content is untouched. Returns false
// when no active document existed.
func (s *Store) DeactivateDocument(ctx context.Context, collection, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin deactivate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE collection = ? AND path = ? AND active = 1`,
		collection, path).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deactivate lookup: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET active = 0, modified_at = ? WHERE id = ?`,
		s.now().Format(TimeFormat), id); err != nil {
		return false, wrapConstraint(err, "deactivate document")
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fts_documents WHERE doc_id = ?`, id); err != nil {
		return false, fmt.Errorf("deactivate fts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit deactivate: %w", err)
	}

	s.bumpGeneration()
	return true, nil
}

// GetActiveDocumentPaths lists the normalized paths of all active documents
// in a collection, ordered for determinism.
func (s *Store) GetActiveDocumentPaths(ctx context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM documents WHERE collection = ? AND active = 1 ORDER BY path`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("active document paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// FindBySuffix returns the first active document whose path ends in suffix,
// optionally scoped to one collection (empty = all). Ties break by document
// id ascending so resolution is deterministic for a given database state.
func (s *Store) FindBySuffix(ctx context.Context, collection, suffix string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `SELECT ` + documentColumns + ` FROM documents
		 WHERE active = 1 AND path LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(suffix)}
	if collection != "" {
		query += ` AND collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY id ASC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("suffix match: %w", err)
	}
	return doc, nil
}

// FindSimilarFiles lists active documents whose path contains the fragment,
// for "did you mean" output. Ordered by path then id.
func (s *Store) FindSimilarFiles(ctx context.Context, fragment string, limit int) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE active = 1 AND path LIKE ? ESCAPE '\'
		 ORDER BY path, id LIMIT ?`,
		"%"+escapeLike(fragment)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("similar files: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// MatchFilesByGlob lists active documents whose path matches a * glob,
// optionally scoped to one collection. The glob maps to SQL LIKE: * -> %.
func (s *Store) MatchFilesByGlob(ctx context.Context, collection, glob string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	pattern := strings.ReplaceAll(escapeLike(glob), "*", "%")
	query := `SELECT ` + documentColumns + ` FROM documents
		 WHERE active = 1 AND path LIKE ? ESCAPE '\'`
	args := []any{pattern}
	if collection != "" {
		query += ` AND collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY collection, path, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("glob match: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// HasCollection reports whether any active document belongs to collection.
func (s *Store) HasCollection(ctx context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND active = 1 LIMIT 1`,
		collection).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has collection: %w", err)
	}
	return true, nil
}

// DocumentsByHashes returns active documents whose content hash is in
// hashes, optionally scoped to one collection, ordered by id for
// deterministic ties. Used by vector search to map hashes back to documents.
func (s *Store) DocumentsByHashes(ctx context.Context, collection string, hashes []string) ([]*Document, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	placeholders := make([]string, len(hashes))
	args := make([]any, 0, len(hashes)+1)
	for i, h := range hashes {
		placeholders[i] = "?"
		args = append(args, h)
	}

	query := `SELECT ` + documentColumns + ` FROM documents
		 WHERE active = 1 AND hash IN (` + strings.Join(placeholders, ",") + `)`
	if collection != "" {
		query += ` AND collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("documents by hashes: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// RemoveCollectionDocuments physically deletes all document rows (and FTS
// rows) for a collection. Used by `qmd collection remove`; content rows are
// left to orphan cleanup.
func (s *Store) RemoveCollectionDocuments(ctx context.Context, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin remove collection: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fts_documents WHERE doc_id IN
		 (SELECT id FROM documents WHERE collection = ?)`, collection); err != nil {
		return 0, fmt.Errorf("remove collection fts: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return 0, fmt.Errorf("remove collection documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit remove collection: %w", err)
	}

	n, _ := res.RowsAffected()
	s.bumpGeneration()
	return int(n), nil
}

// RenameCollectionDocuments moves all document rows to a new collection name.
func (s *Store) RenameCollectionDocuments(ctx context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET collection = ? WHERE collection = ?`, newName, oldName)
	if err != nil {
		return wrapConstraint(err, "rename collection")
	}

	s.bumpGeneration()
	return nil
}

// DeleteInactiveDocuments permanently removes inactive document rows for a
// collection (all collections when empty). History-pruning maintenance.
func (s *Store) DeleteInactiveDocuments(ctx context.Context, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	query := `DELETE FROM documents WHERE active = 0`
	var args []any
	if collection != "" {
		query += ` AND collection = ?`
		args = append(args, collection)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete inactive documents: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		s.bumpGeneration()
	}
	return int(n), nil
}

// escapeLike escapes SQL LIKE wildcards in user-supplied fragments.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// collectDocuments drains a documents query.
func collectDocuments(rows *sql.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
