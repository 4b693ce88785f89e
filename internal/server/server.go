// Package server provides the HTTP surface of the tracker: the websocket
// chat gateway, the code-push webhook, and health checking, with lifecycle
// management for graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/kumar-shivang/work-tracker/internal/assistant"
	"github.com/kumar-shivang/work-tracker/internal/config"
	"github.com/kumar-shivang/work-tracker/internal/llm"
	"github.com/kumar-shivang/work-tracker/internal/storage"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// CommitMemorizer derives a memory from an ingested commit.
type CommitMemorizer interface {
	FromCommit(ctx context.Context, c *types.Commit) (*types.Memory, error)
}

// Server is the HTTP layer over the assistant.
type Server struct {
	cfg            *config.Config
	assistant      *assistant.Assistant
	completer      llm.Completer
	records        storage.RecordStore
	commitMemories CommitMemorizer
	diffs          DiffFetcher
	hub            *chatHub
}

// Deps collects the collaborators the server needs. Diffs and CommitMemories
// may be nil; the webhook then summarizes from commit messages alone and
// skips memory derivation.
type Deps struct {
	Config         *config.Config
	Assistant      *assistant.Assistant
	Completer      llm.Completer
	Records        storage.RecordStore
	CommitMemories CommitMemorizer
	Diffs          DiffFetcher
}

// New creates a server from its dependencies.
func New(d Deps) *Server {
	return &Server{
		cfg:            d.Config,
		assistant:      d.Assistant,
		completer:      d.Completer,
		records:        d.Records,
		commitMemories: d.CommitMemories,
		diffs:          d.Diffs,
		hub:            newChatHub(),
	}
}

// Hub exposes the notification fan-out for scheduled jobs.
func (s *Server) Hub() interface {
	Notify(sessionID, text string) bool
	Broadcast(text string)
} {
	return s.hub
}

// Handler builds the full middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// The webhook authenticates with its own shared secret, the websocket
	// with the session allow-list; bearer auth covers everything else.
	mux.HandleFunc("/webhook/push", s.handlePush)
	mux.HandleFunc("/ws", s.handleWS)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/summary/today", s.handleTodaySummary)
	mux.Handle("/api/", requireAuth(apiMux, s.cfg))

	handler := rateLimit(mux, newRateLimiter(10.0, 20))
	return securityHeaders(handler)
}

// handleTodaySummary runs the daily summary on demand for the current day.
func (s *Server) handleTodaySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	text, err := s.assistant.RunDailySummary(r.Context(), time.Now())
	if err != nil {
		log.Printf("server: on-demand summary failed: %v", err)
		http.Error(w, `{"error":"summary failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"summary":%q}`, text)
}

// Start begins serving and returns the actual listen address (useful for
// tests with port 0). The server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
	}()

	return actualAddr, nil
}
