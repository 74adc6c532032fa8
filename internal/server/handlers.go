package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/nevindra/engram"
	"github.com/nevindra/engram/engine"
)

// 4MB is generous for a conversation transcript.
const maxRequestBodyBytes = 4 << 20

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"configured": len(s.missing) == 0,
		"missing":    s.missing,
	})
}

type ingestRequest struct {
	Messages    []engram.Message `json:"messages"`
	UserID      string           `json:"user_id"`
	Metadata    engram.Metadata  `json:"metadata"`
	SummaryMode bool             `json:"summary_mode"`
	InitMode    bool             `json:"init_mode"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.requireConfigured(w) {
		return
	}
	var req ingestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	results, err := s.engine.Ingest(r.Context(), engine.IngestRequest{
		Messages:    req.Messages,
		UserID:      req.UserID,
		Metadata:    req.Metadata,
		SummaryMode: req.SummaryMode,
		InitMode:    req.InitMode,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if s.activity != nil {
		s.activity.Add("ingest", req.UserID, fmt.Sprintf("%d facts", len(results)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type searchRequest struct {
	UserID        string  `json:"user_id"`
	Query         string  `json:"query"`
	Limit         int     `json:"limit"`
	Threshold     float64 `json:"threshold"`
	RecencyWeight float64 `json:"recency_weight"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireConfigured(w) {
		return
	}
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = engine.DefaultScoreThreshold
	}

	results, err := s.engine.Search(r.Context(), engine.SearchRequest{
		UserID:        req.UserID,
		Query:         req.Query,
		Limit:         req.Limit,
		Threshold:     threshold,
		RecencyWeight: req.RecencyWeight,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if s.activity != nil {
		s.activity.Add("search", req.UserID, fmt.Sprintf("%d hits", len(results)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// DefaultListLimit caps GET /memories when the caller does not pass one.
const DefaultListLimit = 20

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	includeSuperseded := r.URL.Query().Get("include_superseded") == "true"

	items, err := s.engine.List(r.Context(), userID, limit, includeSuperseded)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": items})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	memoryID := r.PathValue("memory_id")
	if err := s.engine.Delete(r.Context(), memoryID); err != nil {
		s.writeErr(w, err)
		return
	}
	if s.activity != nil {
		s.activity.Add("delete", "", memoryID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": memoryID})
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeJSON(w, http.StatusOK, map[string]any{"providers": map[string]any{}, "total_usd": 0.0})
		return
	}
	buckets, total := s.ledger.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"providers": buckets, "total_usd": total})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.activity.Recent()})
}

type setNameRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	var req setNameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.names.Set(req.UserID, req.Name); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": req.UserID, "name": req.Name})
}

func (s *Server) handleListNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"names": s.names.All()})
}

// projectEntry joins a user's live-memory count with its registered name.
type projectEntry struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Count  int    `json:"count"`
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	counts, err := s.engine.Users(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	projects := make([]projectEntry, 0, len(counts))
	for _, c := range counts {
		projects = append(projects, projectEntry{
			UserID: c.UserID,
			Name:   s.names.Get(c.UserID),
			Count:  c.Count,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}
