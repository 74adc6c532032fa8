package sqlite

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nevindra/engram"
)

const memoryColumns = `id, user_id, memory, vector, metadata_json, created_at, updated_at, hash, chunk, superseded_by`

// Insert appends one row.
func (s *Store) Insert(ctx context.Context, m engram.Memory) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Memory, serializeVector(m.Vector), m.MetadataJSON,
		m.CreatedAt, m.UpdatedAt, m.Hash, m.Chunk, m.SupersededBy)
	if err != nil {
		s.logger.Error("sqlite: insert failed", "id", m.ID, "error", err)
		return fmt.Errorf("sqlite: insert memory: %w", err)
	}
	s.logger.Debug("sqlite: insert ok", "id", m.ID, "user_id", m.UserID, "duration", time.Since(start))
	return nil
}

// UpdateFact overwrites the dedup-updatable columns of one row. The stored
// vector is deliberately left untouched.
func (s *Store) UpdateFact(ctx context.Context, id string, up engram.FactUpdate) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET memory=?, updated_at=?, hash=?, metadata_json=?, chunk=? WHERE id=?`,
		up.Memory, up.UpdatedAt, up.Hash, up.MetadataJSON, up.Chunk, id)
	if err != nil {
		s.logger.Error("sqlite: update failed", "id", id, "error", err)
		return fmt.Errorf("sqlite: update memory: %w", err)
	}
	s.logger.Debug("sqlite: update ok", "id", id, "duration", time.Since(start))
	return nil
}

// MarkSuperseded retires a row. Last writer wins on the pointer.
func (s *Store) MarkSuperseded(ctx context.Context, oldID, newID, updatedAt string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET superseded_by=?, updated_at=? WHERE id=?`,
		newID, updatedAt, oldID)
	if err != nil {
		s.logger.Error("sqlite: mark superseded failed", "id", oldID, "error", err)
		return fmt.Errorf("sqlite: mark superseded: %w", err)
	}
	s.logger.Info("sqlite: memory superseded", "id", oldID, "superseded_by", newID)
	return nil
}

// Delete removes one row unconditionally.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id=?`, id)
	if err != nil {
		s.logger.Error("sqlite: delete failed", "id", id, "error", err)
		return fmt.Errorf("sqlite: delete memory: %w", err)
	}
	s.logger.Debug("sqlite: delete ok", "id", id)
	return nil
}

// Get returns one row by id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*engram.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id=?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memory: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	m, err := scanMemory(rows)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Search returns the nearest rows by cosine distance, closest first.
func (s *Store) Search(ctx context.Context, spec engram.SearchSpec) ([]engram.Match, error) {
	start := time.Now()
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE user_id=?`
	args := []any{spec.UserID}
	if spec.LiveOnly {
		query += ` AND superseded_by=''`
	}
	if spec.ExcludeID != "" {
		query += ` AND id!=?`
		args = append(args, spec.ExcludeID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("sqlite: search failed", "user_id", spec.UserID, "error", err)
		return nil, fmt.Errorf("sqlite: search memories: %w", err)
	}
	defer rows.Close()

	var matches []engram.Match
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			continue
		}
		if len(m.Vector) == 0 {
			continue
		}
		matches = append(matches, engram.Match{
			Memory:   m,
			Distance: engram.CosineDistance(spec.Vector, m.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search memories: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if spec.Limit > 0 && len(matches) > spec.Limit {
		matches = matches[:spec.Limit]
	}
	s.logger.Debug("sqlite: search ok", "user_id", spec.UserID, "count", len(matches), "duration", time.Since(start))
	return matches, nil
}

// ListByUser returns a user's rows sorted by updated_at descending.
func (s *Store) ListByUser(ctx context.Context, userID string, includeSuperseded bool) ([]engram.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE user_id=?`
	if !includeSuperseded {
		query += ` AND superseded_by=''`
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// ListByTypes returns a user's live rows of the given types, oldest first.
// A single scan serves any number of types.
func (s *Store) ListByTypes(ctx context.Context, userID string, types []string) ([]engram.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE user_id=? AND superseded_by='' ORDER BY created_at ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list by types: %w", err)
	}
	defer rows.Close()

	all, err := collectMemories(rows)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, COUNT(*) FROM memories WHERE superseded_by='' GROUP BY user_id ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: users: %w", err)
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(r rowScanner) (engram.Memory, error) {
	var m engram.Memory
	var vecJSON string
	if err := r.Scan(&m.ID, &m.UserID, &m.Memory, &vecJSON, &m.MetadataJSON,
		&m.CreatedAt, &m.UpdatedAt, &m.Hash, &m.Chunk, &m.SupersededBy); err != nil {
		return engram.Memory{}, err
	}
	m.Vector, _ = deserializeVector(vecJSON)
	return m, nil
}

type memoryRows interface {
	rowScanner
	Next() bool
	Err() error
}

func collectMemories(rows memoryRows) ([]engram.Memory, error) {
	var out []engram.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
