// Package httpapi serves the bot's admin HTTP endpoints: a health check and
// task queue statistics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/edgard/nkobot/internal/queue"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	pingTimeout       = 2 * time.Second
)

// Pinger checks a dependency the bot cannot run without.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueStats reports the task queue load.
type QueueStats interface {
	Stats() queue.Stats
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the admin HTTP server.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, db Pinger, stats QueueStats, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "http_api")

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(db, stats, log),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: log,
	}
}

// NewRouter builds the routes of the admin API.
func NewRouter(db Pinger, stats QueueStats, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "Health check failed", "error", err)
			respondWithJSON(w, logger, http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable"})
			return
		}
		respondWithJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/queue", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, logger, http.StatusOK, stats.Stats())
	})

	return r
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// Run serves until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown failed", "error", err)
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
