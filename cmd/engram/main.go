// Command engram is a per-project long-term memory service for coding
// assistants. It extracts durable facts from conversation transcripts with
// an LLM, stores them as embeddings, and serves semantic search over HTTP.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/engram"
	"github.com/nevindra/engram/engine"
	"github.com/nevindra/engram/extract"
	"github.com/nevindra/engram/internal/config"
	"github.com/nevindra/engram/internal/server"
	"github.com/nevindra/engram/observer"
	"github.com/nevindra/engram/provider/resolve"
	"github.com/nevindra/engram/provider/voyage"
	"github.com/nevindra/engram/registry"
	"github.com/nevindra/engram/store/postgres"
	"github.com/nevindra/engram/store/sqlite"
)

func main() {
	cfg := config.Load(os.Getenv("ENGRAM_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Observability. The OTEL exporters are optional; the cost ledger and
	// activity feed are always on.
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx, nil)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = shutdown(shutCtx)
		}()
	}
	ledger := observer.OpenLedger(filepath.Join(cfg.Data.Dir, "costs.json"), observer.NewCostCalculator(nil))
	activity := observer.NewActivity()

	// Providers
	chatLLM, err := resolve.Chat(&cfg)
	if err != nil {
		log.Fatalf("resolve provider: %v", err)
	}
	var llm engram.Provider = observer.WrapProvider(chatLLM, inst, ledger)
	var embedder engram.EmbeddingProvider = observer.WrapEmbedding(
		voyage.New(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions),
		cfg.Embedding.Model, inst, ledger)

	// Store: pgvector when a Postgres URL is configured, sqlite otherwise.
	var store engram.VectorStore
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Fatalf("postgres connect: %v", err)
		}
		store = postgres.New(pool)
	} else {
		store = sqlite.New(filepath.Join(cfg.Data.Dir, "engram.db"))
	}
	if err := store.Init(ctx); err != nil {
		log.Fatalf("store init: %v", err)
	}
	defer store.Close()

	extractor := extract.New(llm, extract.WithLogger(logger))
	eng := engine.New(store, embedder, extractor,
		engine.WithLogger(logger),
		engine.WithMetrics(&observer.PipelineMetrics{Inst: inst}),
	)

	names := registry.Open(filepath.Join(cfg.Data.Dir, "names.json"))
	srv := server.New(eng, names, ledger, activity, cfg.Missing(), logger)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
