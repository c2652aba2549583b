// Package handler serves the stored travel-time table as JSON.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"transitmatrix/internal/logging"
	"transitmatrix/internal/storage"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	db     *storage.DB
	logger *slog.Logger
}

// New creates a Handler.
func New(db *storage.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs err with the request's logger and replies 500 without
// leaking details.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logging.FromContext(r.Context(), h.logger).Error(msg, "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal error")
}

// Health reports liveness and the number of stored stations.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stations, err := h.db.Stations(r.Context())
	if err != nil {
		h.internalError(w, r, "counting stations", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"stations": len(stations),
	})
}
