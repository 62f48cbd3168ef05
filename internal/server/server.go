// Package server provides the HTTP surface: chat, settings, memory
// inspection routes and the websocket activity feed.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/keepsake/internal/agent"
	"github.com/scrypster/keepsake/internal/config"
	"github.com/scrypster/keepsake/internal/importer"
	"github.com/scrypster/keepsake/internal/notify"
	"github.com/scrypster/keepsake/internal/services"
	"github.com/scrypster/keepsake/internal/store"
)

// Server holds the wired dependencies behind the HTTP handlers.
type Server struct {
	cfg      config.Config
	agent    *agent.Core
	managers *store.Managers
	settings *services.SettingsService
	importer *importer.Service
	hub      *WebSocketHub
	sink     notify.Sink

	httpServer *http.Server
}

// New wires the server. The hub doubles as the activity sink for handlers.
func New(cfg config.Config, core *agent.Core, managers *store.Managers, settings *services.SettingsService, imp *importer.Service) *Server {
	hub := NewWebSocketHub()
	return &Server{
		cfg:      cfg,
		agent:    core,
		managers: managers,
		settings: settings,
		importer: imp,
		hub:      hub,
		sink:     hub,
	}
}

// Hub returns the websocket hub so other components can publish events.
func (s *Server) Hub() *WebSocketHub {
	return s.hub
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)

	mux.HandleFunc("GET /settings", s.handleGetSettings)
	mux.HandleFunc("POST /settings", s.handleSetSettings)

	mux.HandleFunc("POST /memory", s.handleAddMemory)
	mux.HandleFunc("DELETE /memory/{id}", s.handleDeleteMemory)
	mux.HandleFunc("POST /memory/{id}/reinforce", s.handleReinforceMemory)
	mux.HandleFunc("GET /memory/search", s.handleSearchMemories)
	mux.HandleFunc("GET /memory/answer", s.handleAnswerMemoryQuery)
	mux.HandleFunc("GET /memory/core", s.handleCoreMemories)
	mux.HandleFunc("GET /memory/tree", s.handleTreeView)
	mux.HandleFunc("GET /memory/stats", s.handleStats)
	mux.HandleFunc("GET /memory/surface", s.handleSurface)
	mux.HandleFunc("GET /memory/export", s.handleExport)
	mux.HandleFunc("GET /memory/entity", s.handleEntityProfile)
	mux.HandleFunc("GET /memory/social-circle", s.handleSocialCircle)
	mux.HandleFunc("POST /memory/consolidate", s.handleConsolidate)

	mux.HandleFunc("POST /import/session", s.handleImportSession)
	mux.HandleFunc("POST /import/conversations", s.handleImportConversations)
	mux.HandleFunc("POST /import/conversations/list", s.handleListConversations)

	mux.Handle("GET /ws", s.hub)

	var handler http.Handler = mux
	if s.cfg.Server.RateLimitPerSecond > 0 {
		limiter := NewRateLimiter(float64(s.cfg.Server.RateLimitPerSecond), s.cfg.Server.RateLimitBurst)
		handler = limiter.Middleware(handler)
	}
	return securityHeadersMiddleware(handler)
}

// Start listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully. The actual listen address is returned through
// addrCh (useful with port 0 in tests).
func (s *Server) Start(ctx context.Context, addrCh chan<- string) error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}
	if addrCh != nil {
		addrCh <- listener.Addr().String()
	}

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()
	log.Printf("server: listening on %s", listener.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("server: shutdown error: %v", err)
	}
	s.hub.Stop()
	return nil
}
