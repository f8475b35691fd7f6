// Package server provides the HTTP API for birdsearch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NotDonCitron/birdsearch/internal/config"
	"github.com/NotDonCitron/birdsearch/internal/index"
	"github.com/NotDonCitron/birdsearch/internal/metrics"
	"github.com/NotDonCitron/birdsearch/internal/search"
	"github.com/NotDonCitron/birdsearch/internal/storage"
	"github.com/NotDonCitron/birdsearch/internal/syncer"
)

// Server is the HTTP server for the birdsearch API.
type Server struct {
	engine *search.Engine
	sync   *syncer.Syncer
	idx    index.Index
	store  storage.RecordStore
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	sync *syncer.Syncer,
	idx index.Index,
	store storage.RecordStore,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine: engine,
		sync:   sync,
		idx:    idx,
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(metrics.Middleware())

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/suggest", s.handleSuggest)
	r.Get("/api/v1/stats", s.handleStats)
	r.Post("/api/v1/maintenance/rebuild", s.handleRebuild)
	r.Post("/api/v1/maintenance/optimize", s.handleOptimize)
	r.Post("/api/v1/records", s.handleCreateRecord)
	r.Get("/api/v1/records/{id}", s.handleGetRecord)
	r.Put("/api/v1/records/{id}", s.handleUpdateRecord)
	r.Delete("/api/v1/records/{id}", s.handleDeleteRecord)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
