// Command tracker runs the work-tracking assistant: the websocket chat
// gateway, the code-push webhook, and the background scheduler over a shared
// storage backend.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kumar-shivang/work-tracker/internal/assistant"
	"github.com/kumar-shivang/work-tracker/internal/config"
	"github.com/kumar-shivang/work-tracker/internal/conversation"
	"github.com/kumar-shivang/work-tracker/internal/executor"
	"github.com/kumar-shivang/work-tracker/internal/intent"
	"github.com/kumar-shivang/work-tracker/internal/llm"
	"github.com/kumar-shivang/work-tracker/internal/memory"
	"github.com/kumar-shivang/work-tracker/internal/pending"
	"github.com/kumar-shivang/work-tracker/internal/schedule"
	"github.com/kumar-shivang/work-tracker/internal/server"
	"github.com/kumar-shivang/work-tracker/internal/storage"
	"github.com/kumar-shivang/work-tracker/internal/storage/postgres"
	"github.com/kumar-shivang/work-tracker/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	client, err := llm.NewClient(llm.Config{
		APIKey:             cfg.LLM.APIKey,
		BaseURL:            cfg.LLM.BaseURL,
		Model:              cfg.LLM.Model,
		EmbeddingModel:     cfg.LLM.EmbeddingModel,
		EmbeddingDimension: cfg.LLM.EmbeddingDimension,
		Timeout:            cfg.LLM.Timeout,
		RequestsPerSecond:  cfg.LLM.RequestsPerSecond,
		Title:              "work-tracker",
	}, store)
	if err != nil {
		log.Fatalf("llm: %v", err)
	}
	embedder, err := llm.NewCachingEmbedder(client, cfg.Assistant.EmbedCacheCap)
	if err != nil {
		log.Fatalf("llm: %v", err)
	}

	memories := memory.NewService(embedder, store, loc)
	exec := executor.New(store, memories, loc)
	pipeline := intent.NewPipeline(client, loc)
	composer := conversation.New(memories,
		conversation.WithMaxHistory(cfg.Assistant.MaxHistory),
		conversation.WithLocation(loc),
	)
	pendingStore := pending.NewWithTTL(cfg.Assistant.PendingTTL)

	asst := assistant.New(assistant.Deps{
		Completer:       client,
		Pipeline:        pipeline,
		Composer:        composer,
		Pending:         pendingStore,
		Executor:        exec,
		Records:         store,
		Summaries:       memories,
		Location:        loc,
		Currency:        cfg.Assistant.Currency,
		AllowedSessions: cfg.Security.AllowedSessions,
	})

	srv := server.New(server.Deps{
		Config:         cfg,
		Assistant:      asst,
		Completer:      client,
		Records:        store,
		CommitMemories: memories,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr, err := srv.Start(ctx)
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Printf("tracker: listening on %s", addr)

	runner := schedule.New(schedule.Config{
		Location:     loc,
		CheckInStart: cfg.Assistant.CheckInStart,
		CheckInEnd:   cfg.Assistant.CheckInEnd,
		SummaryAt:    cfg.Assistant.SummaryAt,
	}, store, srv.Hub(), asst, asst)
	runner.Run(ctx)

	log.Printf("tracker: shutting down")
}

// openStore selects the backend: postgres when a DSN is configured, SQLite
// otherwise.
func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.PostgresDSN != "" {
		log.Printf("tracker: using postgres backend")
		return postgres.New(cfg.Storage.PostgresDSN, cfg.LLM.EmbeddingDimension)
	}
	log.Printf("tracker: using sqlite backend at %s", cfg.Storage.SQLitePath)
	return sqlite.New(cfg.Storage.SQLitePath, cfg.LLM.EmbeddingDimension)
}
