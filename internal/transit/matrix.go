package transit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultHorizonMinutes bounds the travel-time matrix. It is independent of
// MaxEdgeMinutes because a path chains many edges.
const DefaultHorizonMinutes = 120

// Input is everything the pipeline consumes, already read from the feed.
type Input struct {
	Stations   []Station
	Visits     []StopVisit
	TripRoutes map[string]string // trip_id -> route_id
	Transfers  []TransferRecord
	// TransfersMissing is set when the feed has no transfers.txt. The matrix
	// is then computed from ride edges alone.
	TransfersMissing bool
}

// Options tunes the matrix computation.
type Options struct {
	Horizon float64 // minutes
	Workers int     // 0 means GOMAXPROCS
}

// Table is the final artifact: station metadata plus one row per station.
type Table struct {
	Stations    map[string]Station `json:"stations"`
	TravelTimes map[string]Row     `json:"travel_times"`
}

// Report summarises a computation. Warnings carry non-fatal conditions such
// as a missing transfers file.
type Report struct {
	Stations      int
	Visits        int
	Edges         int
	AveragedEdges int
	Transfers     int
	GraphNodes    int
	Duration      time.Duration
	Warnings      []string
}

// Compute runs the whole pipeline: edge extraction, averaging, graph
// construction, transfer injection and one bounded Dijkstra per station.
func Compute(ctx context.Context, in *Input, opts Options, logger *slog.Logger) (*Table, Report, error) {
	start := time.Now()
	report := Report{Stations: len(in.Stations), Visits: len(in.Visits)}

	edges := ExtractEdges(in.Visits, in.TripRoutes)
	report.Edges = len(edges)
	logger.Info("extracted edges", "visits", len(in.Visits), "edges", len(edges))

	averaged := AverageEdges(edges)
	report.AveragedEdges = len(averaged)

	g := BuildGraph(averaged)
	logger.Info("graph built", "pairs", len(averaged), "nodes", g.NodeCount())

	if in.TransfersMissing {
		msg := "transfers.txt not found, skipping transfer connections"
		logger.Warn(msg)
		report.Warnings = append(report.Warnings, msg)
	} else {
		report.Transfers = g.AddTransfers(in.Transfers)
		logger.Info("transfers added", "records", len(in.Transfers), "added", report.Transfers)
	}
	report.GraphNodes = g.NodeCount()

	table, err := Assemble(ctx, g, in.Stations, opts, logger)
	if err != nil {
		return nil, report, err
	}
	report.Duration = time.Since(start)
	return table, report, nil
}

// Assemble computes one row per station on a bounded worker pool and merges
// them once every task has finished. Rows are only produced for the given
// stations, not for every graph node.
func Assemble(ctx context.Context, g *Graph, stations []Station, opts Options, logger *slog.Logger) (*Table, error) {
	if opts.Horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %v", opts.Horizon)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	byID := make(map[string]Station, len(stations))
	for _, s := range stations {
		byID[s.ID] = s
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]Row, len(ids))
	step := len(ids)/10 + 1
	var done atomic.Int64

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	logger.Info("calculating travel time matrix", "stations", len(ids), "workers", workers, "horizon", opts.Horizon)

	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = ShortestTimes(g, id, opts.Horizon)
			if n := done.Add(1); n%int64(step) == 0 {
				logger.Info("processing stations", "done", n, "total", len(ids))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("compute travel times: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compute travel times: %w", err)
	}

	table := &Table{
		Stations:    byID,
		TravelTimes: make(map[string]Row, len(ids)),
	}
	for i, id := range ids {
		table.TravelTimes[id] = rows[i]
	}
	return table, nil
}
