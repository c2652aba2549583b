package transit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxEdgeMinutes bounds a single hop between consecutive stops. Gaps at or
// above it come from midnight wraparound, layovers or bad data.
const MaxEdgeMinutes = 30

// StopVisit is one stop_times.txt row with its arrival already in minutes.
type StopVisit struct {
	TripID         string
	Sequence       int
	StopID         string // raw, possibly platform-level
	ArrivalMinutes int
}

// Edge is a directed hop observed on a trip.
type Edge struct {
	From    string
	To      string
	Minutes float64
	RouteID string
}

// Pair is an ordered station pair.
type Pair struct {
	From string
	To   string
}

// ParseArrival converts a GTFS "HH:MM:SS" time to minutes since midnight.
// Hours may exceed 23 for service running past midnight. Seconds are
// validated but dropped.
func ParseArrival(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	var hms [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		hms[i] = n
	}
	return hms[0]*60 + hms[1], nil
}

type tripStop struct {
	seq     int
	station string
	arrival int
}

// ExtractEdges turns per-trip stop sequences into direct travel-time edges
// between consecutive stops. Trips without a route are skipped, as are hops
// outside (0, MaxEdgeMinutes).
func ExtractEdges(visits []StopVisit, tripRoutes map[string]string) []Edge {
	byTrip := make(map[string][]tripStop)
	for _, v := range visits {
		station, ok := Canonical(v.StopID)
		if !ok {
			continue
		}
		byTrip[v.TripID] = append(byTrip[v.TripID], tripStop{
			seq:     v.Sequence,
			station: station,
			arrival: v.ArrivalMinutes,
		})
	}

	tripIDs := make([]string, 0, len(byTrip))
	for id := range byTrip {
		tripIDs = append(tripIDs, id)
	}
	sort.Strings(tripIDs)

	var edges []Edge
	for _, tripID := range tripIDs {
		route, ok := tripRoutes[tripID]
		if !ok {
			continue
		}
		stops := byTrip[tripID]
		sort.SliceStable(stops, func(i, j int) bool { return stops[i].seq < stops[j].seq })

		for i := 0; i+1 < len(stops); i++ {
			dt := stops[i+1].arrival - stops[i].arrival
			if dt <= 0 || dt >= MaxEdgeMinutes {
				continue
			}
			edges = append(edges, Edge{
				From:    stops[i].station,
				To:      stops[i+1].station,
				Minutes: float64(dt),
				RouteID: route,
			})
		}
	}
	return edges
}

// AverageEdges collapses repeated observations of the same ordered pair into
// their mean. Opposite directions are averaged independently.
func AverageEdges(edges []Edge) map[Pair]float64 {
	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[Pair]*acc)
	for _, e := range edges {
		k := Pair{From: e.From, To: e.To}
		a, ok := sums[k]
		if !ok {
			a = &acc{}
			sums[k] = a
		}
		a.sum += e.Minutes
		a.count++
	}

	averaged := make(map[Pair]float64, len(sums))
	for k, a := range sums {
		averaged[k] = a.sum / float64(a.count)
	}
	return averaged
}
