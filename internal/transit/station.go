package transit

import "strings"

const (
	// excludedPrefix marks stops on the Staten Island Railway, which is not
	// connected to the rest of the subway network.
	excludedPrefix = "S"
	northSuffix    = 'N'
	southSuffix    = 'S'
)

// Station is a canonical, station-level stop.
type Station struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Canonical maps a raw GTFS stop ID to its station ID. Platform IDs carry a
// trailing direction letter ("101N", "101S") which is dropped. It returns
// false for stops on the excluded sub-network.
func Canonical(raw string) (string, bool) {
	if Excluded(raw) {
		return "", false
	}
	if n := len(raw); n > 0 && (raw[n-1] == northSuffix || raw[n-1] == southSuffix) {
		return raw[:n-1], true
	}
	return raw, true
}

// Excluded reports whether a raw stop ID belongs to the excluded sub-network.
func Excluded(raw string) bool {
	return strings.HasPrefix(raw, excludedPrefix)
}

// IsStationLevel reports whether a stops.txt ID names a station rather than a
// directional platform. IDs like "N06" keep their letter in the middle and
// count as stations.
func IsStationLevel(raw string) bool {
	id, ok := Canonical(raw)
	return ok && id == raw
}
