// Package server exposes the memory engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nevindra/engram"
	"github.com/nevindra/engram/engine"
	"github.com/nevindra/engram/observer"
	"github.com/nevindra/engram/registry"
)

// Server holds the handler dependencies.
type Server struct {
	engine   *engine.Engine
	names    *registry.Registry
	ledger   *observer.Ledger
	activity *observer.Activity
	// missing lists credential env vars absent at startup. Non-empty makes
	// every LLM-backed endpoint answer 503 instead of failing mid-pipeline.
	missing []string
	logger  *slog.Logger
}

// New creates a Server.
func New(eng *engine.Engine, names *registry.Registry, ledger *observer.Ledger, activity *observer.Activity, missing []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &Server{
		engine:   eng,
		names:    names,
		ledger:   ledger,
		activity: activity,
		missing:  missing,
		logger:   logger,
	}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /memories", s.handleIngest)
	mux.HandleFunc("GET /memories", s.handleList)
	mux.HandleFunc("POST /memories/search", s.handleSearch)
	mux.HandleFunc("DELETE /memories/{memory_id}", s.handleDelete)
	mux.HandleFunc("GET /costs", s.handleCosts)
	mux.HandleFunc("GET /activity", s.handleActivity)
	mux.HandleFunc("POST /names", s.handleSetName)
	mux.HandleFunc("GET /names", s.handleListNames)
	mux.HandleFunc("GET /projects", s.handleProjects)
	return cors(mux)
}

// cors allows any origin. The service binds to localhost; the header exists
// for local dashboards.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Too late to change the status; nothing useful to do.
		_ = err
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeErr maps pipeline errors onto HTTP statuses.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	var invalid *engram.ErrInvalidID
	if errors.As(err, &invalid) {
		writeError(w, http.StatusBadRequest, invalid.Error())
		return
	}
	var unconfigured *engram.ErrUnconfigured
	if errors.As(err, &unconfigured) {
		writeError(w, http.StatusServiceUnavailable, unconfigured.Error())
		return
	}
	s.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// requireConfigured answers 503 naming the missing env vars when the service
// lacks credentials. Returns false when the request was already answered.
func (s *Server) requireConfigured(w http.ResponseWriter) bool {
	if len(s.missing) == 0 {
		return true
	}
	s.writeErr(w, &engram.ErrUnconfigured{Missing: s.missing})
	return false
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
