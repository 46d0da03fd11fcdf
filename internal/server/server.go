// Package server wires the HTTP surface: the websocket sync endpoint,
// the read-only ops API, and health checking.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	v1 "github.com/boardsync/boardsync/internal/api/v1"
	"github.com/boardsync/boardsync/internal/config"
	"github.com/boardsync/boardsync/internal/hub"
	"github.com/boardsync/boardsync/internal/server/middleware"
	"github.com/boardsync/boardsync/internal/store"
)

// Server is the HTTP server that wires all application routes and
// middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all routes wired. ctx bounds the lifetime
// of the rate limiter's cleanup goroutine.
func New(ctx context.Context, cfg *config.Config, st store.Store, h *hub.Hub) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:        cfg.Server.Addr,
			Handler:     router,
			ReadTimeout: cfg.Server.ReadTimeout,
			// WriteTimeout stays unset: it would sever long-lived
			// websocket connections. The hub enforces its own
			// keepalive deadlines.
		},
	}

	// Read-only ops API.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, 20, 40))

		apiConfig := huma.DefaultConfig("boardsync ops API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		v1.RegisterBoardRoutes(api, st)
	})

	// WebSocket sync endpoint.
	router.Route("/ws", func(r chi.Router) {
		r.Get("/board", h.ServeBoard)
	})

	// Health check.
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
