package engine

import (
	"context"

	"github.com/nevindra/engram"
)

// applyAgingRules enforces rolling-window rules after an insert.
//
// progress: only the latest entry survives; older ones are deleted.
//
// session-summary: capped at MaxSessionSummaries. Past the cap, the oldest
// entry is condensed into a learned-pattern and then deleted.
//
// Aging is best-effort and idempotent: a partially applied pass converges
// on the next ingestion of the same type.
func (e *Engine) applyAgingRules(ctx context.Context, userID, memoryType, newID string) {
	switch memoryType {
	case engram.TypeProgress:
		e.ageProgress(ctx, userID, newID)
	case engram.TypeSessionSummary:
		e.ageSessionSummaries(ctx, userID)
	}
}

func (e *Engine) ageProgress(ctx context.Context, userID, newID string) {
	rows, err := e.store.ListByTypes(ctx, userID, []string{engram.TypeProgress})
	if err != nil {
		e.logger.Warn("aging: progress scan error", "error", err)
		return
	}
	for _, row := range rows {
		if row.ID == newID {
			continue
		}
		if err := e.store.Delete(ctx, row.ID); err != nil {
			e.logger.Warn("aging: delete old progress failed", "id", row.ID, "error", err)
			continue
		}
		e.logger.Debug("aging: deleted old progress memory", "id", row.ID)
	}
}

func (e *Engine) ageSessionSummaries(ctx context.Context, userID string) {
	// Sorted ascending; includes the entry just inserted.
	existing, err := e.store.ListByTypes(ctx, userID, []string{engram.TypeSessionSummary})
	if err != nil {
		e.logger.Warn("aging: session-summary scan error", "error", err)
		return
	}
	if len(existing) <= engram.MaxSessionSummaries {
		return
	}

	oldest := existing[0]
	e.logger.Info("aging: condensing oldest session-summary", "id", oldest.ID)

	condensed := e.extractor.Condense(ctx, oldest.Memory)
	if condensed == nil {
		// Keep the summary rather than silently dropping the information.
		e.logger.Warn("aging: condensation produced nothing, keeping oldest session-summary", "id", oldest.ID)
		return
	}

	vector, err := e.embed(ctx, condensed.Memory, engram.RoleDocument)
	if err != nil {
		e.logger.Warn("aging: condensed embedding failed, keeping oldest session-summary", "id", oldest.ID, "error", err)
		return
	}

	now := engram.NowRFC3339()
	m := engram.Memory{
		ID:     engram.NewID(),
		UserID: userID,
		Memory: condensed.Memory,
		Vector: vector,
		MetadataJSON: engram.Metadata{
			"type":           engram.TypeLearnedPattern,
			"condensed_from": oldest.ID,
		}.Encode(),
		CreatedAt: now,
		UpdatedAt: now,
		Hash:      engram.HashMemory(condensed.Memory),
		// Condensed learned-patterns have no single source chunk.
		Chunk:        "",
		SupersededBy: "",
	}
	// The condensed row is inserted directly: it does not run back through
	// dedup, versioning, or aging.
	if err := e.store.Insert(ctx, m); err != nil {
		e.logger.Warn("aging: condensed insert failed, keeping oldest session-summary", "id", oldest.ID, "error", err)
		return
	}
	e.metrics.Condensed(ctx)

	if err := e.store.Delete(ctx, oldest.ID); err != nil {
		e.logger.Warn("aging: delete oldest session-summary failed", "id", oldest.ID, "error", err)
		return
	}
	e.logger.Info("aging: condensed oldest session-summary", "deleted", oldest.ID, "learned_pattern", m.ID)
}
