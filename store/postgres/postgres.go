// Package postgres implements engram.VectorStore backed by PostgreSQL with
// pgvector. Similarity search runs in SQL against an HNSW cosine index
// instead of brute-force in-process scans.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/engram"
)

// Store implements engram.VectorStore on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ engram.VectorStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool. The caller owns the
// pool and is responsible for closing it after Close.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates the pgvector extension, the memories table, and the HNSW
// index. Safe to call multiple times; the chunk and superseded_by column
// additions cover databases created before those columns existed.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			memory TEXT NOT NULL,
			vector vector(%d),
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			hash TEXT NOT NULL DEFAULT ''
		)`, engram.EmbeddingDims),
		`ALTER TABLE memories ADD COLUMN IF NOT EXISTS chunk TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE memories ADD COLUMN IF NOT EXISTS superseded_by TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX IF NOT EXISTS memories_user_idx ON memories (user_id)`,
		`CREATE INDEX IF NOT EXISTS memories_vector_idx ON memories USING hnsw (vector vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const memoryColumns = `id, user_id, memory, vector::text, metadata_json, created_at, updated_at, hash, chunk, superseded_by`

// Insert appends one row.
func (s *Store) Insert(ctx context.Context, m engram.Memory) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memories (id, user_id, memory, vector, metadata_json, created_at, updated_at, hash, chunk, superseded_by)
		 VALUES ($1, $2, $3, $4::vector, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.UserID, m.Memory, encodeVector(m.Vector), m.MetadataJSON,
		m.CreatedAt, m.UpdatedAt, m.Hash, m.Chunk, m.SupersededBy)
	if err != nil {
		return fmt.Errorf("postgres: insert memory: %w", err)
	}
	return nil
}

// UpdateFact overwrites the dedup-updatable columns; the vector is kept.
func (s *Store) UpdateFact(ctx context.Context, id string, up engram.FactUpdate) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE memories SET memory=$1, updated_at=$2, hash=$3, metadata_json=$4, chunk=$5 WHERE id=$6`,
		up.Memory, up.UpdatedAt, up.Hash, up.MetadataJSON, up.Chunk, id)
	if err != nil {
		return fmt.Errorf("postgres: update memory: %w", err)
	}
	return nil
}

// MarkSuperseded retires a row. Last writer wins on the pointer.
func (s *Store) MarkSuperseded(ctx context.Context, oldID, newID, updatedAt string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE memories SET superseded_by=$1, updated_at=$2 WHERE id=$3`,
		newID, updatedAt, oldID)
	if err != nil {
		return fmt.Errorf("postgres: mark superseded: %w", err)
	}
	return nil
}

// Delete removes one row unconditionally.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE id=$1`, id); err != nil {
		return fmt.Errorf("postgres: delete memory: %w", err)
	}
	return nil
}

// Get returns one row by id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*engram.Memory, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id=$1`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: get memory: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var m engram.Memory
	var vec string
	if err := rows.Scan(&m.ID, &m.UserID, &m.Memory, &vec, &m.MetadataJSON,
		&m.CreatedAt, &m.UpdatedAt, &m.Hash, &m.Chunk, &m.SupersededBy); err != nil {
		return nil, err
	}
	m.Vector = decodeVector(vec)
	return &m, nil
}

// Search returns the nearest rows by cosine distance using the pgvector
// `<=>` operator, closest first.
func (s *Store) Search(ctx context.Context, spec engram.SearchSpec) ([]engram.Match, error) {
	query := `SELECT ` + memoryColumns + `, vector <=> $1::vector AS distance
		FROM memories WHERE user_id=$2`
	args := []any{encodeVector(spec.Vector), spec.UserID}
	if spec.LiveOnly {
		query += ` AND superseded_by=''`
	}
	if spec.ExcludeID != "" {
		args = append(args, spec.ExcludeID)
		query += fmt.Sprintf(` AND id!=$%d`, len(args))
	}
	query += ` ORDER BY vector <=> $1::vector`
	if spec.Limit > 0 {
		args = append(args, spec.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search memories: %w", err)
	}
	defer rows.Close()

	var matches []engram.Match
	for rows.Next() {
		var m engram.Memory
		var vec string
		var dist float64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Memory, &vec, &m.MetadataJSON,
			&m.CreatedAt, &m.UpdatedAt, &m.Hash, &m.Chunk, &m.SupersededBy, &dist); err != nil {
			return nil, err
		}
		m.Vector = decodeVector(vec)
		matches = append(matches, engram.Match{Memory: m, Distance: dist})
	}
	return matches, rows.Err()
}

// ListByUser returns a user's rows sorted by updated_at descending.
func (s *Store) ListByUser(ctx context.Context, userID string, includeSuperseded bool) ([]engram.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE user_id=$1`
	if !includeSuperseded {
		query += ` AND superseded_by=''`
	}
	query += ` ORDER BY updated_at DESC`
	return s.collect(ctx, query, userID)
}

// ListByTypes returns a user's live rows of the given types, oldest first.
func (s *Store) ListByTypes(ctx context.Context, userID string, types []string) ([]engram.Memory, error) {
	all, err := s.collect(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE user_id=$1 AND superseded_by='' ORDER BY created_at ASC`,
		userID)
	if err != nil {
		return nil, err
	}
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	var typed []engram.Memory
	for _, m := range all {
		if typeSet[m.Type()] {
			typed = append(typed, m)
		}
	}
	return typed, nil
}

// Users returns live-row counts grouped by user.
func (s *Store) Users(ctx context.Context) ([]engram.UserCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, COUNT(*) FROM memories WHERE superseded_by='' GROUP BY user_id ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: users: %w", err)
	}
	defer rows.Close()

	var counts []engram.UserCount
	for rows.Next() {
		var uc engram.UserCount
		if err := rows.Scan(&uc.UserID, &uc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, uc)
	}
	return counts, rows.Err()
}

// Count returns the total number of rows in the table.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// collect runs a query selecting memoryColumns and scans every row.
func (s *Store) collect(ctx context.Context, query string, args ...any) ([]engram.Memory, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list memories: %w", err)
	}
	defer rows.Close()

	var out []engram.Memory
	for rows.Next() {
		var m engram.Memory
		var vec string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Memory, &vec, &m.MetadataJSON,
			&m.CreatedAt, &m.UpdatedAt, &m.Hash, &m.Chunk, &m.SupersededBy); err != nil {
			return nil, err
		}
		m.Vector = decodeVector(vec)
		out = append(out, m)
	}
	return out, rows.Err()
}

// encodeVector renders a []float32 in pgvector text format: [1,2,3].
func encodeVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// decodeVector parses pgvector text format back to []float32.
func decodeVector(s string) []float32 {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	v := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		v = append(v, float32(f))
	}
	return v
}
