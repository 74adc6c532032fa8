package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nevindra/engram"
	"github.com/nevindra/engram/extract"
	"github.com/nevindra/engram/store/sqlite"
)

// fakeEmbedder returns fixed vectors per text so tests control distances.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, role string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Name() string    { return "fake-embed" }

// fakeLLM replays responses in call order.
type fakeLLM struct {
	responses []string
	calls     []engram.ChatRequest
}

func (f *fakeLLM) Chat(ctx context.Context, req engram.ChatRequest) (engram.ChatResponse, error) {
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return engram.ChatResponse{Text: "[]"}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return engram.ChatResponse{Text: resp}, nil
}

func (f *fakeLLM) Model() string { return "fake-model" }
func (f *fakeLLM) Name() string  { return "fake" }

func testEngine(t *testing.T, llm *fakeLLM, vectors map[string][]float32) (*Engine, *sqlite.Store) {
	t.Helper()
	store := sqlite.New(filepath.Join(t.TempDir(), "engine.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("store init: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := New(store, &fakeEmbedder{vectors: vectors}, extract.New(llm))
	return eng, store
}

func userMessage(text string) []engram.Message {
	data, _ := json.Marshal(text)
	return []engram.Message{{Role: "user", Content: json.RawMessage(data)}}
}

func factJSON(memory, typ string) string {
	return fmt.Sprintf(`[{"memory":%q,"type":%q}]`, memory, typ)
}

// seedMemory inserts a row with explicit timestamps for test setup.
func seedMemory(t *testing.T, store *sqlite.Store, id, userID, text, typ string, vector []float32, createdAt string) {
	t.Helper()
	meta := engram.Metadata{}
	if typ != "" {
		meta["type"] = typ
	}
	err := store.Insert(context.Background(), engram.Memory{
		ID:           id,
		UserID:       userID,
		Memory:       text,
		Vector:       vector,
		MetadataJSON: meta.Encode(),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
		Hash:         engram.HashMemory(text),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestIngestAddsNewFact(t *testing.T) {
	llm := &fakeLLM{responses: []string{factJSON("project uses postgres", "tech-context")}}
	eng, store := testEngine(t, llm, map[string][]float32{
		"project uses postgres": {1, 0, 0},
	})

	results, err := eng.Ingest(context.Background(), IngestRequest{
		Messages: userMessage("we picked postgres"),
		UserID:   "u1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(results) != 1 || results[0].Event != EventAdd {
		t.Fatalf("results = %+v", results)
	}

	m, err := store.Get(context.Background(), results[0].ID)
	if err != nil || m == nil {
		t.Fatalf("stored row: %v %v", m, err)
	}
	if m.Type() != engram.TypeTechContext {
		t.Errorf("type = %q", m.Type())
	}
	if m.Chunk == "" {
		t.Error("chunk should carry the source transcript")
	}
	if m.Hash != engram.HashMemory("project uses postgres") {
		t.Error("hash mismatch")
	}
}

func TestIngestDeduplicatesNearIdentical(t *testing.T) {
	llm := &fakeLLM{responses: []string{factJSON("user prefers tabs over spaces", "preference")}}
	eng, store := testEngine(t, llm, map[string][]float32{
		"user prefers tabs over spaces": {1, 0, 0},
	})
	seedMemory(t, store, "existing", "u1", "prefers tabs", "preference", []float32{1, 0, 0}, "2025-06-01T00:00:00.000000Z")

	results, err := eng.Ingest(context.Background(), IngestRequest{
		Messages: userMessage("tabs please"),
		UserID:   "u1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(results) != 1 || results[0].Event != EventUpdate || results[0].ID != "existing" {
		t.Fatalf("results = %+v, want UPDATE of existing", results)
	}

	total, _ := store.Count(context.Background())
	if total != 1 {
		t.Errorf("row count = %d, want 1 (update, not insert)", total)
	}
	m, _ := store.Get(context.Background(), "existing")
	if m.Memory != "user prefers tabs over spaces" {
		t.Errorf("text not updated: %q", m.Memory)
	}
	if len(m.Vector) != 3 || m.Vector[0] != 1 {
		t.Errorf("stored vector must survive a dedup update, got %v", m.Vector)
	}
}

func TestIngestSupersedesContradicted(t *testing.T) {
	// Distance between the vectors is 0.2: outside dedup (0.12), inside the
	// contradiction radius (0.5).
	llm := &fakeLLM{responses: []string{
		factJSON("project migrated to postgres", "tech-context"),
		`["old-db"]`,
	}}
	eng, store := testEngine(t, llm, map[string][]float32{
		"project migrated to postgres": {1, 0, 0},
	})
	seedMemory(t, store, "old-db", "u1", "project uses mysql", "tech-context", []float32{0.8, 0.6, 0}, "2025-06-01T00:00:00.000000Z")

	results, err := eng.Ingest(context.Background(), IngestRequest{
		Messages: userMessage("we moved to postgres"),
		UserID:   "u1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(results) != 1 || results[0].Event != EventAdd {
		t.Fatalf("results = %+v", results)
	}

	old, _ := store.Get(context.Background(), "old-db")
	if old.SupersededBy != results[0].ID {
		t.Errorf("old row superseded_by = %q, want %q", old.SupersededBy, results[0].ID)
	}
	newRow, _ := store.Get(context.Background(), results[0].ID)
	if !newRow.Live() {
		t.Error("new row must stay live")
	}
}

func TestIngestIgnoresHallucinatedSupersededID(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		factJSON("project migrated to postgres", "tech-context"),
		`["never-offered"]`,
	}}
	eng, store := testEngine(t, llm, map[string][]float32{
		"project migrated to postgres": {1, 0, 0},
	})
	seedMemory(t, store, "old-db", "u1", "project uses mysql", "tech-context", []float32{0.8, 0.6, 0}, "2025-06-01T00:00:00.000000Z")

	if _, err := eng.Ingest(context.Background(), IngestRequest{
		Messages: userMessage("we moved to postgres"),
		UserID:   "u1",
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	old, _ := store.Get(context.Background(), "old-db")
	if !old.Live() {
		t.Error("hallucinated id must not retire anything")
	}
}

func TestIngestProgressKeepsOnlyLatest(t *testing.T) {
	llm := &fakeLLM{responses: []string{factJSON("implementing search endpoint", "progress")}}
	eng, store := testEngine(t, llm, map[string][]float32{
		"implementing search endpoint": {1, 0, 0},
	})
	seedMemory(t, store, "p1", "u1", "setting up repo", "progress", []float32{0, 1, 0}, "2025-06-01T00:00:00.000000Z")
	seedMemory(t, store, "p2", "u1", "writing store layer", "progress", []float32{0, 0.9, 0.1}, "2025-06-02T00:00:00.000000Z")

	results, err := eng.Ingest(context.Background(), IngestRequest{
		Messages: userMessage("now doing search"),
		UserID:   "u1",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	rows, err := store.ListByTypes(context.Background(), "u1", []string{engram.TypeProgress})
	if err != nil {
		t.Fatalf("ListByTypes: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != results[0].ID {
		t.Errorf("progress rows = %+v, want only the new one", rows)
	}
	// Progress bypasses contradiction detection: exactly one LLM call.
	if len(llm.calls) != 1 {
		t.Errorf("llm calls = %d, want 1 (extraction only)", len(llm.calls))
	}
}

func TestIngestCondensesOldestSessionSummary(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		factJSON("session: wired up http server", "session-summary"),
		factJSON("pattern: wire handlers before middleware", "learned-pattern"),
	}}
	eng, store := testEngine(t, llm, map[string][]float32{
		"session: wired up http server": {1, 0, 0},
	})
	seedMemory(t, store, "s1", "u1", "session one", "session-summary", []float32{0, 1, 0}, "2025-06-01T00:00:00.000000Z")
	seedMemory(t, store, "s2", "u1", "session two", "session-summary", []float32{0, 0.9, 0.3}, "2025-06-02T00:00:00.000000Z")
	seedMemory(t, store, "s3", "u1", "session three", "session-summary", []float32{0, 0.7, 0.7}, "2025-06-03T00:00:00.000000Z")

	if _, err := eng.Ingest(context.Background(), IngestRequest{
		Messages:    userMessage("today we wired up the server"),
		UserID:      "u1",
		SummaryMode: true,
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	summaries, _ := store.ListByTypes(context.Background(), "u1", []string{engram.TypeSessionSummary})
	if len(summaries) != engram.MaxSessionSummaries {
		t.Fatalf("summaries = %d, want %d", len(summaries), engram.MaxSessionSummaries)
	}
	for _, s := range summaries {
		if s.ID == "s1" {
			t.Error("oldest summary should be gone")
		}
	}

	patterns, _ := store.ListByTypes(context.Background(), "u1", []string{engram.TypeLearnedPattern})
	if len(patterns) != 1 {
		t.Fatalf("learned patterns = %d, want 1", len(patterns))
	}
	if patterns[0].Metadata().CondensedFrom() != "s1" {
		t.Errorf("condensed_from = %q, want s1", patterns[0].Metadata().CondensedFrom())
	}
}

func TestIngestKeepsSummaryWhenCondenseFails(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		factJSON("session: another day", "session-summary"),
		`not json at all`,
	}}
	eng, store := testEngine(t, llm, map[string][]float32{
		"session: another day": {1, 0, 0},
	})
	seedMemory(t, store, "s1", "u1", "session one", "session-summary", []float32{0, 1, 0}, "2025-06-01T00:00:00.000000Z")
	seedMemory(t, store, "s2", "u1", "session two", "session-summary", []float32{0, 0.9, 0.3}, "2025-06-02T00:00:00.000000Z")
	seedMemory(t, store, "s3", "u1", "session three", "session-summary", []float32{0, 0.7, 0.7}, "2025-06-03T00:00:00.000000Z")

	if _, err := eng.Ingest(context.Background(), IngestRequest{
		Messages:    userMessage("summary"),
		UserID:      "u1",
		SummaryMode: true,
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	summaries, _ := store.ListByTypes(context.Background(), "u1", []string{engram.TypeSessionSummary})
	if len(summaries) != 4 {
		t.Errorf("summaries = %d, want 4 (condense failed, nothing dropped)", len(summaries))
	}
	if s1, _ := store.Get(context.Background(), "s1"); s1 == nil {
		t.Error("oldest summary must survive a failed condensation")
	}
}

func TestIngestInvalidUserID(t *testing.T) {
	llm := &fakeLLM{}
	eng, _ := testEngine(t, llm, nil)

	_, err := eng.Ingest(context.Background(), IngestRequest{
		Messages: userMessage("hi"),
		UserID:   "bad user;drop",
	})
	var invalid *engram.ErrInvalidID
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want *ErrInvalidID", err)
	}
	if len(llm.calls) != 0 {
		t.Error("invalid id must be rejected before any LLM call")
	}
}

func TestSearchRanksAndThresholds(t *testing.T) {
	llm := &fakeLLM{}
	eng, store := testEngine(t, llm, map[string][]float32{
		"database choice": {1, 0, 0},
	})
	seedMemory(t, store, "close", "u1", "we use postgres", "tech-context", []float32{1, 0, 0}, "2025-06-01T00:00:00.000000Z")
	seedMemory(t, store, "mid", "u1", "ci is github actions", "tech-context", []float32{0.7, 0.7, 0}, "2025-06-01T00:00:00.000000Z")
	seedMemory(t, store, "far", "u1", "team likes coffee", "preference", []float32{0, 0, 1}, "2025-06-01T00:00:00.000000Z")

	results, err := eng.Search(context.Background(), SearchRequest{
		UserID:    "u1",
		Query:     "database choice",
		Limit:     10,
		Threshold: 0.3,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2 above threshold", results)
	}
	if results[0].ID != "close" || results[1].ID != "mid" {
		t.Errorf("order = %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Score != 1.0 {
		t.Errorf("exact match score = %v, want 1.0", results[0].Score)
	}
	// Scores are rounded to 4 decimals.
	if results[1].Score != 0.7071 {
		t.Errorf("mid score = %v, want 0.7071", results[1].Score)
	}
}

func TestSearchExcludesSuperseded(t *testing.T) {
	llm := &fakeLLM{}
	eng, store := testEngine(t, llm, map[string][]float32{
		"query": {1, 0, 0},
	})
	seedMemory(t, store, "live", "u1", "current fact", "tech-context", []float32{1, 0, 0}, "2025-06-01T00:00:00.000000Z")
	seedMemory(t, store, "retired", "u1", "old fact", "tech-context", []float32{1, 0, 0}, "2025-06-01T00:00:00.000000Z")
	if err := store.MarkSuperseded(context.Background(), "retired", "live", "2025-06-02T00:00:00.000000Z"); err != nil {
		t.Fatalf("MarkSuperseded: %v", err)
	}

	results, err := eng.Search(context.Background(), SearchRequest{UserID: "u1", Query: "query", Threshold: 0.3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == "retired" {
			t.Error("retired rows must not appear in search results")
		}
	}
}

func TestSearchRecencyBlend(t *testing.T) {
	llm := &fakeLLM{}
	eng, store := testEngine(t, llm, map[string][]float32{
		"what happened recently": {1, 0, 0},
	})

	// Equally similar, different session dates.
	old := engram.Memory{
		ID: "old", UserID: "u1", Memory: "old session", Vector: []float32{0.9, 0.435, 0},
		MetadataJSON: engram.Metadata{"type": "session-summary", "date": "2025-05-01"}.Encode(),
		CreatedAt:    "2025-05-01T00:00:00.000000Z", UpdatedAt: "2025-05-01T00:00:00.000000Z",
	}
	recent := engram.Memory{
		ID: "recent", UserID: "u1", Memory: "recent session", Vector: []float32{0.9, 0.435, 0},
		MetadataJSON: engram.Metadata{"type": "session-summary", "date": "2025-06-01"}.Encode(),
		CreatedAt:    "2025-06-01T00:00:00.000000Z", UpdatedAt: "2025-06-01T00:00:00.000000Z",
	}
	for _, m := range []engram.Memory{old, recent} {
		if err := store.Insert(context.Background(), m); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	results, err := eng.Search(context.Background(), SearchRequest{
		UserID:        "u1",
		Query:         "what happened recently",
		Threshold:     0.1,
		RecencyWeight: 0.5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].ID != "recent" {
		t.Errorf("recency blend should rank the recent session first, got %s", results[0].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not ordered: %v <= %v", results[0].Score, results[1].Score)
	}
	if results[0].Date != "2025-06-01" {
		t.Errorf("date = %q", results[0].Date)
	}
}

func TestDeleteValidatesID(t *testing.T) {
	llm := &fakeLLM{}
	eng, store := testEngine(t, llm, nil)
	seedMemory(t, store, "m1", "u1", "x", "", []float32{1, 0, 0}, "a")

	if err := eng.Delete(context.Background(), "bad id"); err == nil {
		t.Error("invalid memory_id should error")
	}
	if err := eng.Delete(context.Background(), "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m, _ := store.Get(context.Background(), "m1"); m != nil {
		t.Error("row should be deleted")
	}
}

func TestListLimitsAndFilters(t *testing.T) {
	llm := &fakeLLM{}
	eng, store := testEngine(t, llm, nil)
	for i := 0; i < 5; i++ {
		seedMemory(t, store, fmt.Sprintf("m%d", i), "u1", "x", "", []float32{1, 0, 0},
			fmt.Sprintf("2025-06-0%dT00:00:00.000000Z", i+1))
	}

	items, err := eng.List(context.Background(), "u1", 3, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("items = %d, want 3", len(items))
	}
	if items[0].ID != "m4" {
		t.Errorf("most recently updated first, got %s", items[0].ID)
	}

	if _, err := eng.List(context.Background(), "bad id", 3, false); err == nil {
		t.Error("invalid user_id should error")
	}
}
