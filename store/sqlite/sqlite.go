// Package sqlite implements engram.VectorStore backed by a local SQLite
// file. Embeddings are stored as JSON text and similarity search is done
// in-process with brute-force cosine distance, which is fast enough for a
// corpus measured in hundreds of rows per user.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nevindra/engram"
)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a structured logger for the store. When set, the store
// emits debug logs for every operation including timing and row counts.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements engram.VectorStore on SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ engram.VectorStore = (*Store)(nil)

// New creates a Store using a local SQLite file at dbPath. A single shared
// connection serializes all goroutines, eliminating SQLITE_BUSY errors from
// concurrent writers.
func New(dbPath string, opts ...Option) *Store {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the memories table and applies idempotent column migrations.
// The chunk and superseded_by columns were added in successive versions;
// older databases gain them defaulted to "".
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()

	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		memory TEXT NOT NULL,
		vector TEXT NOT NULL,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		hash TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return fmt.Errorf("sqlite: create memories table: %w", err)
	}

	migrations := []struct {
		col string
		ddl string
	}{
		{"chunk", `ALTER TABLE memories ADD COLUMN chunk TEXT NOT NULL DEFAULT ''`},
		{"superseded_by", `ALTER TABLE memories ADD COLUMN superseded_by TEXT NOT NULL DEFAULT ''`},
	}
	for _, mig := range migrations {
		col, ddl := mig.col, mig.ddl
		has, err := s.hasColumn(ctx, col)
		if err != nil {
			return err
		}
		if !has {
			if _, err := s.db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("sqlite: add %s column: %w", col, err)
			}
			s.logger.Info("sqlite: migrated memories table", "added_column", col)
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS memories_user_idx ON memories (user_id)`); err != nil {
		return fmt.Errorf("sqlite: create user index: %w", err)
	}

	s.logger.Info("sqlite: memories init completed", "duration", time.Since(start))
	return nil
}

func (s *Store) hasColumn(ctx context.Context, name string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(memories)`)
	if err != nil {
		return false, fmt.Errorf("sqlite: table_info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var colName, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if colName == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// serializeVector converts []float32 to a JSON array string.
func serializeVector(v []float32) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// deserializeVector parses a JSON array string back to []float32.
func deserializeVector(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
