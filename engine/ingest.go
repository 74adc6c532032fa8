package engine

import (
	"context"

	"github.com/nevindra/engram"
	"github.com/nevindra/engram/extract"
)

// Ingestion result events.
const (
	EventAdd    = "ADD"
	EventUpdate = "UPDATE"
)

// IngestRequest is one ingestion call: a transcript (or raw file content in
// init mode) to extract facts from.
type IngestRequest struct {
	Messages    []engram.Message
	UserID      string
	Metadata    engram.Metadata
	SummaryMode bool
	InitMode    bool
}

// IngestResult reports what happened to one extracted fact.
type IngestResult struct {
	ID     string `json:"id"`
	Memory string `json:"memory"`
	Event  string `json:"event"`
}

// Ingest extracts typed facts from the request and stores each one:
// embed → dedup (UPDATE in place) → insert → versioner → ager.
//
// A provider failure aborts the remaining facts in the batch; facts already
// stored remain. Versioner and ager failures never block a fact.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) ([]IngestResult, error) {
	if err := engram.ValidateID(req.UserID, "user_id"); err != nil {
		return nil, err
	}

	mode := extract.ModeConversation
	switch {
	case req.InitMode:
		mode = extract.ModeInit
	case req.SummaryMode:
		mode = extract.ModeSummary
	}

	facts, err := e.extractor.Extract(ctx, req.Messages, mode)
	if err != nil {
		return nil, err
	}
	e.metrics.FactsExtracted(ctx, len(facts))
	e.logger.Info("ingest", "user_id", req.UserID, "extracted", len(facts),
		"summary_mode", req.SummaryMode, "init_mode", req.InitMode)

	results := make([]IngestResult, 0, len(facts))
	for _, fact := range facts {
		res, err := e.ingestFact(ctx, req.UserID, fact, req.Metadata)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ingestFact runs the per-fact pipeline stage.
func (e *Engine) ingestFact(ctx context.Context, userID string, fact engram.Fact, base engram.Metadata) (IngestResult, error) {
	factType := fact.Type
	if factType == "" {
		factType = base.Type()
	}

	metadata := engram.Metadata{}
	for k, v := range base {
		metadata[k] = v
	}
	if factType != "" {
		metadata["type"] = factType
	}

	now := engram.NowRFC3339()
	hash := engram.HashMemory(fact.Memory)

	vector, err := e.embed(ctx, fact.Memory, engram.RoleDocument)
	if err != nil {
		return IngestResult{}, err
	}

	threshold := engram.DedupDistance
	if engram.StructuralTypes[factType] {
		threshold = engram.StructuralDedupDistance
	}

	if dup := e.findDuplicate(ctx, userID, vector, threshold); dup != nil {
		// UPDATE in place keeps the stored embedding; only the text-side
		// columns move.
		err := e.store.UpdateFact(ctx, dup.ID, engram.FactUpdate{
			Memory:       fact.Memory,
			UpdatedAt:    now,
			Hash:         hash,
			MetadataJSON: metadata.Encode(),
			Chunk:        fact.Chunk,
		})
		if err != nil {
			return IngestResult{}, err
		}
		e.metrics.DedupHit(ctx)
		e.logger.Debug("dedup update", "id", dup.ID, "type", factType)
		return IngestResult{ID: dup.ID, Memory: fact.Memory, Event: EventUpdate}, nil
	}

	m := engram.Memory{
		ID:           engram.NewID(),
		UserID:       userID,
		Memory:       fact.Memory,
		Vector:       vector,
		MetadataJSON: metadata.Encode(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Hash:         hash,
		Chunk:        fact.Chunk,
		SupersededBy: "",
	}
	if err := e.store.Insert(ctx, m); err != nil {
		return IngestResult{}, err
	}
	e.metrics.FactInserted(ctx)
	e.logger.Debug("added memory", "id", m.ID, "type", factType)

	// Relational versioning: retire existing memories this fact contradicts.
	if superseded := e.checkAndSupersede(ctx, userID, fact.Memory, vector, m.ID, factType); len(superseded) > 0 {
		e.metrics.Superseded(ctx, len(superseded))
		e.logger.Info("versioning: new memory superseded existing",
			"id", m.ID, "count", len(superseded), "superseded", superseded)
	}

	if factType != "" {
		e.applyAgingRules(ctx, userID, factType, m.ID)
	}

	return IngestResult{ID: m.ID, Memory: fact.Memory, Event: EventAdd}, nil
}

// findDuplicate returns the closest existing memory for the user when it is
// within threshold cosine distance. Store read errors are tolerated: the
// fact is then treated as new.
func (e *Engine) findDuplicate(ctx context.Context, userID string, vector []float32, threshold float64) *engram.Memory {
	matches, err := e.store.Search(ctx, engram.SearchSpec{
		UserID: userID,
		Vector: vector,
		Limit:  1,
	})
	if err != nil {
		e.logger.Debug("dedup search error", "error", err)
		return nil
	}
	if len(matches) > 0 && matches[0].Distance <= threshold {
		return &matches[0].Memory
	}
	return nil
}
