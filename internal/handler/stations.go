package handler

import (
	"net/http"
	"sort"
	"strconv"

	"transitmatrix/internal/geo"
	"transitmatrix/internal/transit"
)

const (
	defaultNearbyRadius = 800.0
	maxNearbyRadius     = 5000.0
	nearbyLimit         = 10
	// The R-Tree box is a square around the circle, so over-fetch before
	// filtering by true distance.
	nearbyDBLimit = 50
)

// Stations lists every station ordered by ID.
func (h *Handler) Stations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.db.Stations(r.Context())
	if err != nil {
		h.internalError(w, r, "listing stations", err)
		return
	}
	if stations == nil {
		stations = []transit.Station{}
	}
	h.writeJSON(w, http.StatusOK, stations)
}

// Station returns a single station by ID.
func (h *Handler) Station(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, ok, err := h.db.Station(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "fetching station", err)
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown station "+id)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

type nearbyStation struct {
	transit.Station
	DistanceMeters float64 `json:"distance_meters"`
}

// NearbyStations returns up to ten stations within radius meters of a
// point, closest first.
func (h *Handler) NearbyStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err1 != nil || err2 != nil || !geo.ValidCoordinate(lat, lon) {
		h.writeError(w, http.StatusBadRequest, "lat and lon must be valid coordinates")
		return
	}

	radius := defaultNearbyRadius
	if v := q.Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "radius must be a positive number of meters")
			return
		}
		radius = min(parsed, maxNearbyRadius)
	}

	latDeg, lonDeg := geo.BoundingBoxRadius(lat, radius)
	rows, err := h.db.NearbyStations(r.Context(), lat, lon, latDeg, lonDeg, nearbyDBLimit)
	if err != nil {
		h.internalError(w, r, "querying nearby stations", err)
		return
	}

	result := []nearbyStation{}
	for _, row := range rows {
		d := geo.Haversine(lat, lon, row.Lat, row.Lon)
		if d > radius {
			continue
		}
		result = append(result, nearbyStation{Station: row.Station, DistanceMeters: d})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DistanceMeters < result[j].DistanceMeters
	})
	if len(result) > nearbyLimit {
		result = result[:nearbyLimit]
	}
	h.writeJSON(w, http.StatusOK, result)
}
