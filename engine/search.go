package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/nevindra/engram"
)

// Search defaults.
const (
	DefaultSearchLimit    = 5
	DefaultScoreThreshold = 0.3
	recencyDecayPerDay    = 0.1
)

// SearchRequest parameterizes a semantic search.
type SearchRequest struct {
	UserID string
	Query  string
	Limit  int
	// Threshold drops results scoring below it.
	Threshold float64
	// RecencyWeight blends session-date recency into the score:
	// score = (1-w)*semantic + w*recency. Zero means pure semantic.
	RecencyWeight float64
}

// SearchResult is one ranked hit. Memory carries the retrieval-relevant
// fact; Chunk is the verbatim source text for exact values.
type SearchResult struct {
	ID        string         `json:"id"`
	Memory    string         `json:"memory"`
	Chunk     string         `json:"chunk"`
	Score     float64        `json:"score"`
	Metadata  engram.Metadata `json:"metadata"`
	CreatedAt string         `json:"created_at"`
	Date      string         `json:"date,omitempty"`
}

// Search embeds the query, runs a cosine top-k over the user's live
// memories, blends recency when requested, thresholds, and sorts by score
// descending.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if err := engram.ValidateID(req.UserID, "user_id"); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	queryVector, err := e.embed(ctx, req.Query, engram.RoleQuery)
	if err != nil {
		return nil, err
	}

	matches, err := e.store.Search(ctx, engram.SearchSpec{
		UserID:   req.UserID,
		Vector:   queryVector,
		Limit:    limit,
		LiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	type candidate struct {
		result   SearchResult
		semantic float64
		date     *time.Time
	}
	candidates := make([]candidate, 0, len(matches))
	for _, m := range matches {
		semantic := math.Max(0.0, 1.0-m.Distance)
		meta := m.Metadata()
		d := sessionDate(meta, m.CreatedAt)
		c := candidate{
			result: SearchResult{
				ID:        m.ID,
				Memory:    m.Memory.Memory,
				Chunk:     m.Chunk,
				Metadata:  meta,
				CreatedAt: m.CreatedAt,
			},
			semantic: semantic,
			date:     d,
		}
		if d != nil {
			c.result.Date = d.Format(time.DateOnly)
		}
		candidates = append(candidates, c)
	}

	// Recency blending uses the session date from metadata, not ingestion
	// time. Without any dated row the blend falls back to pure semantic.
	if req.RecencyWeight > 0 {
		var maxDate *time.Time
		for _, c := range candidates {
			if c.date != nil && (maxDate == nil || c.date.After(*maxDate)) {
				maxDate = c.date
			}
		}
		for i := range candidates {
			if maxDate != nil {
				rec := recencyScore(candidates[i].date, *maxDate)
				candidates[i].result.Score = round4((1.0-req.RecencyWeight)*candidates[i].semantic + req.RecencyWeight*rec)
			} else {
				candidates[i].result.Score = round4(candidates[i].semantic)
			}
		}
	} else {
		for i := range candidates {
			candidates[i].result.Score = round4(candidates[i].semantic)
		}
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if c.result.Score >= req.Threshold {
			results = append(results, c.result)
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	e.logger.Info("search memories", "user_id", req.UserID, "found", len(results))
	return results, nil
}

// sessionDate parses the session date from metadata, falling back to the
// date part of createdAt. Returns nil when neither parses.
func sessionDate(meta engram.Metadata, createdAt string) *time.Time {
	raw := meta.Date()
	if raw == "" && len(createdAt) >= 10 {
		raw = createdAt[:10]
	}
	if len(raw) > 10 {
		raw = raw[:10]
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil
	}
	return &d
}

// recencyScore is exponential decay: 1.0 at maxDate, lower for older dates,
// 0 for rows without a parseable date.
func recencyScore(d *time.Time, maxDate time.Time) float64 {
	if d == nil {
		return 0.0
	}
	days := maxDate.Sub(*d).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-recencyDecayPerDay * days)
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
