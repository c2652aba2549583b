// Package server wires the HTTP routes and middleware around the handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"transitmatrix/internal/handler"
	"transitmatrix/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP server for the travel-time API.
type Server struct {
	mux    *http.ServeMux
	port   int
	logger *slog.Logger
	ready  chan struct{} // closed once a travel-time table is stored
}

// New creates a Server with all routes registered.
func New(port int, db *storage.DB, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	h := handler.New(db, logger)

	ready := make(chan struct{})
	if db.HasData(context.Background()) {
		close(ready)
	}

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /api/stations", h.Stations)
	mux.HandleFunc("GET /api/stations/nearby", h.NearbyStations)
	mux.HandleFunc("GET /api/stations/{id}", h.Station)
	mux.HandleFunc("GET /api/stations/{id}/travel-times", h.TravelTimes)
	mux.HandleFunc("GET /api/travel-time", h.TravelTime)

	return &Server{mux: mux, port: port, logger: logger, ready: ready}
}

// SetReady signals that a travel-time table is stored and can be served.
func (s *Server) SetReady() {
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.logger, s.ready)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
