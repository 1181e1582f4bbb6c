// Package api serves the read-only query interface that downstream consumers
// use to fetch ingested documents and their sections.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Lllllllleong/documentingest/internal/core"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewRouter builds and wires all routes.
func NewRouter(records core.RecordStore) http.Handler {
	h := NewDocumentHandler(records)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/documents/{documentKey}", func(doc chi.Router) {
		doc.Get("/", h.GetDocument)
		doc.Get("/sections", h.ListSections)
		doc.Get("/history", h.ListHistory)
	})

	return r
}

func NewServer(port string, records core.RecordStore) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(records),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start blocks serving requests until the server is shut down.
func (s *Server) Start() error {
	slog.Info("HTTP server listening.", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server.")
	return s.httpServer.Shutdown(ctx)
}
