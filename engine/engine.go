// Package engine implements the memory lifecycle pipeline: extraction,
// embedding, deduplication, relational versioning, aging, and semantic
// search over a user's fact corpus.
//
// Per request the pipeline is strictly serial — later facts in one batch may
// legitimately deduplicate against earlier ones. Across requests the store's
// single-row atomicity is the only guarantee: two concurrent near-identical
// inserts may both land and converge on a later ingestion.
package engine

import (
	"context"
	"log/slog"

	"github.com/nevindra/engram"
	"github.com/nevindra/engram/extract"
)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Metrics receives pipeline lifecycle events. Implementations must be
// non-blocking; the pipeline calls them inline.
type Metrics interface {
	FactsExtracted(ctx context.Context, n int)
	DedupHit(ctx context.Context)
	FactInserted(ctx context.Context)
	Superseded(ctx context.Context, n int)
	Condensed(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) FactsExtracted(context.Context, int) {}
func (nopMetrics) DedupHit(context.Context)            {}
func (nopMetrics) FactInserted(context.Context)        {}
func (nopMetrics) Superseded(context.Context, int)     {}
func (nopMetrics) Condensed(context.Context)           {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a structured logger. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets a pipeline metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine couples the extractor, embedder, and vector store into the memory
// lifecycle pipeline.
type Engine struct {
	store     engram.VectorStore
	embedder  engram.EmbeddingProvider
	extractor *extract.Extractor
	logger    *slog.Logger
	metrics   Metrics
}

// New creates an Engine.
func New(store engram.VectorStore, embedder engram.EmbeddingProvider, extractor *extract.Extractor, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		logger:    nopLogger,
		metrics:   nopMetrics{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// embed returns the embedding for one text in the given role.
func (e *Engine) embed(ctx context.Context, text, role string) ([]float32, error) {
	vecs, err := e.embedder.Embed(ctx, []string{text}, role)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, &engram.ErrLLM{Provider: e.embedder.Name(), Message: "embedding response was empty"}
	}
	return vecs[0], nil
}

// Delete removes one memory by id after validating it.
func (e *Engine) Delete(ctx context.Context, memoryID string) error {
	if err := engram.ValidateID(memoryID, "memory_id"); err != nil {
		return err
	}
	if err := e.store.Delete(ctx, memoryID); err != nil {
		return err
	}
	e.logger.Info("memory deleted", "id", memoryID)
	return nil
}

// ListItem is one row of a List response.
type ListItem struct {
	ID           string         `json:"id"`
	Memory       string         `json:"memory"`
	UserID       string         `json:"user_id"`
	Metadata     engram.Metadata `json:"metadata"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	SupersededBy string         `json:"superseded_by,omitempty"`
}

// List returns up to limit memories for a user, most recently updated
// first. Retired rows are excluded unless includeSuperseded is set.
func (e *Engine) List(ctx context.Context, userID string, limit int, includeSuperseded bool) ([]ListItem, error) {
	if err := engram.ValidateID(userID, "user_id"); err != nil {
		return nil, err
	}
	rows, err := e.store.ListByUser(ctx, userID, includeSuperseded)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ListItem, 0, len(rows))
	for _, m := range rows {
		items = append(items, ListItem{
			ID:           m.ID,
			Memory:       m.Memory,
			UserID:       m.UserID,
			Metadata:     m.Metadata(),
			CreatedAt:    m.CreatedAt,
			UpdatedAt:    m.UpdatedAt,
			SupersededBy: m.SupersededBy,
		})
	}
	e.logger.Info("list memories", "user_id", userID, "returned", len(items))
	return items, nil
}

// Users returns live-memory counts per user.
func (e *Engine) Users(ctx context.Context) ([]engram.UserCount, error) {
	return e.store.Users(ctx)
}
