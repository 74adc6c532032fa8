package engine

import (
	"context"

	"github.com/nevindra/engram"
	"github.com/nevindra/engram/extract"
)

// checkAndSupersede runs the versioning pass for a newly inserted memory:
//
//  1. Skip types that have dedicated lifecycle rules (progress,
//     session-summary).
//  2. Find live candidates within the contradiction radius.
//  3. Ask the LLM which candidates the new memory supersedes.
//  4. Retire each confirmed candidate.
//
// Returns the ids that were retired. Every failure mode degrades to zero
// retirements; the new memory always stays live.
func (e *Engine) checkAndSupersede(ctx context.Context, userID, newMemory string, vector []float32, newID, memoryType string) []string {
	if engram.VersioningSkipTypes[memoryType] {
		return nil
	}

	candidates := e.findContradictionCandidates(ctx, userID, vector, newID, memoryType)
	if len(candidates) == 0 {
		return nil
	}

	candidateSet := make(map[string]bool, len(candidates))
	classifierInput := make([]extract.Candidate, 0, len(candidates))
	for _, c := range candidates {
		candidateSet[c.ID] = true
		classifierInput = append(classifierInput, extract.Candidate{ID: c.ID, Memory: c.Memory.Memory})
	}

	ids := e.extractor.ClassifySuperseded(ctx, newMemory, classifierInput)

	now := engram.NowRFC3339()
	var superseded []string
	for _, id := range ids {
		if !candidateSet[id] {
			// The model returned an id that was never offered to it.
			e.logger.Warn("versioning: ignoring id outside candidate set", "id", id)
			continue
		}
		if err := e.store.MarkSuperseded(ctx, id, newID, now); err != nil {
			e.logger.Warn("versioning: mark superseded failed", "id", id, "new_id", newID, "error", err)
			continue
		}
		superseded = append(superseded, id)
	}
	return superseded
}

// findContradictionCandidates returns live same-user memories within the
// contradiction radius, excluding the new memory itself. Structural types
// use a wider radius: they evolve across sessions (ORM migrations, infra
// changes) and phrasing can differ significantly between versions.
func (e *Engine) findContradictionCandidates(ctx context.Context, userID string, vector []float32, newID, memoryType string) []engram.Match {
	maxDistance := engram.ContradictionCandidateDistance
	if engram.StructuralTypes[memoryType] {
		maxDistance = engram.StructuralContradictionDistance
	}

	matches, err := e.store.Search(ctx, engram.SearchSpec{
		UserID:    userID,
		Vector:    vector,
		Limit:     engram.ContradictionCandidateLimit,
		ExcludeID: newID,
		LiveOnly:  true,
	})
	if err != nil {
		e.logger.Debug("versioning: candidate search error", "error", err)
		return nil
	}

	var within []engram.Match
	for _, m := range matches {
		if m.Distance <= maxDistance {
			within = append(within, m)
		}
	}
	return within
}
