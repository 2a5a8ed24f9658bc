package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes a float32 vector as a little-endian BLOB.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes a little-endian float32 BLOB.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

// Embedding is one row of the embeddings table.
type Embedding struct {
	Hash   string
	Model  string
	Vector []float32
}

// PendingEmbedding pairs a content hash with its body for the embedding pass.
type PendingEmbedding struct {
	Hash string
	Body string
}

// InsertEmbedding stores a vector for (hash, model). Replaces any existing
// row, so re-running an embedding pass with a newer model revision wins.
func (s *Store) InsertEmbedding(ctx context.Context, hash, model string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (hash, model, vector, created_at)
		 VALUES (?, ?, ?, ?)`,
		hash, model, EncodeVector(vector), s.now().Format(TimeFormat))
	if err != nil {
		return wrapConstraint(err, "insert embedding")
	}

	s.bumpGeneration()
	return nil
}

// EmbeddingsForModel loads every embedding row for one model.
// The vector index builds from this snapshot.
func (s *Store) EmbeddingsForModel(ctx context.Context, model string) ([]Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, vector FROM embeddings WHERE model = ? ORDER BY hash`, model)
	if err != nil {
		return nil, fmt.Errorf("embeddings for model: %w", err)
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		var e Embedding
		var blob []byte
		if err := rows.Scan(&e.Hash, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.Model = model
		e.Vector, err = DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding %s: %w", e.Hash, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEmbeddings returns the number of embedding rows for model.
func (s *Store) CountEmbeddings(ctx context.Context, model string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE model = ?`, model).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// CountHashesNeedingEmbedding counts distinct content hashes of active
// documents that have no embedding row for model. The indexing pipeline
// reports this so callers know an embedding pass should follow.
func (s *Store) CountHashesNeedingEmbedding(ctx context.Context, model string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT d.hash)
		FROM documents d
		WHERE d.active = 1
		  AND d.hash NOT IN (SELECT hash FROM embeddings WHERE model = ?)`,
		model).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending embeddings: %w", err)
	}
	return n, nil
}

// HashesNeedingEmbedding returns up to limit (hash, body) pairs for active
// content that lacks an embedding row for model. limit <= 0 means all.
func (s *Store) HashesNeedingEmbedding(ctx context.Context, model string, limit int) ([]PendingEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT DISTINCT d.hash, c.doc
		FROM documents d
		JOIN content c ON c.hash = d.hash
		WHERE d.active = 1
		  AND d.hash NOT IN (SELECT hash FROM embeddings WHERE model = ?)
		ORDER BY d.hash`
	args := []any{model}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pending embeddings: %w", err)
	}
	defer rows.Close()

	var out []PendingEmbedding
	for rows.Next() {
		var p PendingEmbedding
		if err := rows.Scan(&p.Hash, &p.Body); err != nil {
			return nil, fmt.Errorf("scan pending embedding: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClearAllEmbeddings drops every embedding row for model (all models when
// empty). Used before a forced re-embed.
func (s *Store) ClearAllEmbeddings(ctx context.Context, model string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	query := `DELETE FROM embeddings`
	var args []any
	if model != "" {
		query += ` WHERE model = ?`
		args = append(args, model)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear embeddings: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		s.bumpGeneration()
	}
	return int(n), nil
}

// CleanupOrphanedVectors deletes embedding rows whose hash is referenced by
// no document at all. Content rows they were keeping alive become eligible
// for the next CleanupOrphanedContent pass.
func (s *Store) CleanupOrphanedVectors(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE hash NOT IN (SELECT DISTINCT hash FROM documents)`)
	if err != nil {
		return 0, fmt.Errorf("cleanup orphaned vectors: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		s.bumpGeneration()
	}
	return int(n), nil
}
