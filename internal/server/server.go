// Package server provides the HTTP API for Kiroku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kiroku/internal/config"
	"github.com/hyperjump/kiroku/internal/keyword"
	"github.com/hyperjump/kiroku/internal/notes"
	"github.com/hyperjump/kiroku/internal/rag"
)

// Server is the HTTP server exposing the retrieval pipeline to the UI layer.
type Server struct {
	orchestrator *rag.Orchestrator
	repo         notes.Repository
	keywordIndex keyword.Index
	config       *config.ServerConfig
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	orchestrator *rag.Orchestrator,
	repo notes.Repository,
	keywordIndex keyword.Index,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		orchestrator: orchestrator,
		repo:         repo,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       logger,
	}
}

// Routes builds the chi router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/query", s.handleQuery)
	r.Post("/api/v1/index", s.handleIndexCorpus)
	r.Post("/api/v1/notes", s.handleCreateNote)
	r.Get("/api/v1/notes/{id}", s.handleGetNote)
	r.Put("/api/v1/notes/{id}", s.handleUpdateNote)
	r.Delete("/api/v1/notes/{id}", s.handleDeleteNote)
	r.Get("/api/v1/search/keyword", s.handleKeywordSearch)
	r.Post("/api/v1/prompts/tagging", s.handleTaggingPrompt)
	r.Post("/api/v1/prompts/summary", s.handleSummaryPrompt)
	r.Post("/api/v1/prompts/questions", s.handleQuestionsPrompt)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
