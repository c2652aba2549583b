package handler

import (
	"net/http"
	"strconv"

	"transitmatrix/internal/storage"
	"transitmatrix/internal/transit"
)

type travelTimesResponse struct {
	From         transit.Station       `json:"from"`
	Destinations []storage.Destination `json:"destinations"`
}

// TravelTimes lists everything reachable from a station, fastest first.
// An optional max query parameter caps the travel time in minutes.
func (h *Handler) TravelTimes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var maxMinutes float64
	if v := r.URL.Query().Get("max"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "max must be a positive number of minutes")
			return
		}
		maxMinutes = parsed
	}

	s, ok, err := h.db.Station(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "fetching station", err)
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown station "+id)
		return
	}

	dests, err := h.db.TravelTimesFrom(r.Context(), id, maxMinutes)
	if err != nil {
		h.internalError(w, r, "querying travel times", err)
		return
	}
	if dests == nil {
		dests = []storage.Destination{}
	}
	h.writeJSON(w, http.StatusOK, travelTimesResponse{From: s, Destinations: dests})
}

type travelTimeResponse struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Minutes float64 `json:"minutes"`
}

// TravelTime returns the fastest time between two stations.
func (h *Handler) TravelTime(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		h.writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	minutes, ok, err := h.db.TravelTime(r.Context(), from, to)
	if err != nil {
		h.internalError(w, r, "querying travel time", err)
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "no route from "+from+" to "+to+" within the horizon")
		return
	}
	h.writeJSON(w, http.StatusOK, travelTimeResponse{From: from, To: to, Minutes: minutes})
}
