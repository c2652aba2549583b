package gtfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"

	"transitmatrix/internal/transit"
)

// ErrMissingFile is returned when a required GTFS file is absent.
var ErrMissingFile = errors.New("required GTFS file not found")

const (
	stopsFile     = "stops.txt"
	tripsFile     = "trips.txt"
	stopTimesFile = "stop_times.txt"
	transfersFile = "transfers.txt"
)

var requiredFiles = []string{stopsFile, tripsFile, stopTimesFile}

// loadFS reads a feed from the root of fsys. Directories and zip archives
// both come through here, so they decode and fail identically.
// stops.txt, trips.txt and stop_times.txt are required; transfers.txt is
// optional.
func loadFS(fsys fs.FS, name string, logger *slog.Logger) (*transit.Input, error) {
	for _, file := range requiredFiles {
		if _, err := fs.Stat(fsys, file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", file, ErrMissingFile)
			}
			return nil, fmt.Errorf("stat %s: %w", file, err)
		}
	}

	in := &transit.Input{}

	stops, err := readCSVFile[Stop](fsys, stopsFile)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", stopsFile, err)
	}
	if in.Stations, err = stationsFromStops(stops); err != nil {
		return nil, err
	}

	trips, err := readCSVFile[Trip](fsys, tripsFile)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", tripsFile, err)
	}
	in.TripRoutes = tripRoutes(trips)

	if in.Visits, err = streamStopTimes(fsys, logger); err != nil {
		return nil, err
	}

	transfers, err := readCSVFile[Transfer](fsys, transfersFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		in.TransfersMissing = true
	case err != nil:
		return nil, fmt.Errorf("parsing %s: %w", transfersFile, err)
	default:
		if in.Transfers, err = transferRecords(transfers); err != nil {
			return nil, err
		}
	}

	logger.Info("GTFS feed read",
		"feed", name,
		"stations", len(in.Stations),
		"trips", len(in.TripRoutes),
		"stop_times", len(in.Visits),
		"transfers", len(in.Transfers),
	)
	return in, nil
}

func readCSVFile[T any](fsys fs.FS, name string) ([]T, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV[T](f)
}

// rowNumber converts a zero-based data index into the 1-based line number of
// the file, counting the header.
func rowNumber(i int) int { return i + 2 }

// stationsFromStops keeps station-level stops outside the excluded
// sub-network. Coordinates are only parsed for rows that are kept.
func stationsFromStops(stops []Stop) ([]transit.Station, error) {
	var stations []transit.Station
	for i, s := range stops {
		if !transit.IsStationLevel(s.StopID) {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(s.StopLat), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: stop %s: invalid stop_lat %q", stopsFile, rowNumber(i), s.StopID, s.StopLat)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(s.StopLon), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: stop %s: invalid stop_lon %q", stopsFile, rowNumber(i), s.StopID, s.StopLon)
		}
		stations = append(stations, transit.Station{ID: s.StopID, Name: s.StopName, Lat: lat, Lon: lon})
	}
	return stations, nil
}

func tripRoutes(trips []Trip) map[string]string {
	routes := make(map[string]string, len(trips))
	for _, t := range trips {
		if t.RouteID == "" {
			continue
		}
		routes[t.TripID] = t.RouteID
	}
	return routes
}

func streamStopTimes(fsys fs.FS, logger *slog.Logger) ([]transit.StopVisit, error) {
	f, err := fsys.Open(stopTimesFile)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", stopTimesFile, err)
	}
	streamer, err := OpenCSVStream[StopTime](f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", stopTimesFile, err)
	}
	defer streamer.Close()

	var visits []transit.StopVisit
	var st StopTime
	for i := 0; ; i++ {
		err := streamer.Next(&st)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", stopTimesFile, rowNumber(i), err)
		}
		visit, err := stopVisit(st)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", stopTimesFile, rowNumber(i), err)
		}
		visits = append(visits, visit)

		if (i+1)%500000 == 0 {
			logger.Info("reading stop_times", "rows", i+1)
		}
	}
	return visits, nil
}

func stopVisit(st StopTime) (transit.StopVisit, error) {
	seq, err := strconv.Atoi(strings.TrimSpace(st.StopSequence))
	if err != nil {
		return transit.StopVisit{}, fmt.Errorf("invalid stop_sequence %q", st.StopSequence)
	}
	arrival, err := transit.ParseArrival(st.ArrivalTime)
	if err != nil {
		return transit.StopVisit{}, fmt.Errorf("arrival_time: %w", err)
	}
	return transit.StopVisit{
		TripID:         st.TripID,
		Sequence:       seq,
		StopID:         st.StopID,
		ArrivalMinutes: arrival,
	}, nil
}

func transferRecords(transfers []Transfer) ([]transit.TransferRecord, error) {
	records := make([]transit.TransferRecord, 0, len(transfers))
	for i, t := range transfers {
		rec := transit.TransferRecord{From: t.FromStopID, To: t.ToStopID}
		if raw := strings.TrimSpace(t.MinTransferTime); raw != "" {
			seconds, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: invalid min_transfer_time %q", transfersFile, rowNumber(i), t.MinTransferTime)
			}
			rec.MinTransferSeconds = &seconds
		}
		records = append(records, rec)
	}
	return records, nil
}
