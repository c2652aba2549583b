// Package pipeline runs the load, compute, export and store cycle and keeps
// a stored table fresh when the feed comes from a URL.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"transitmatrix/internal/export"
	"transitmatrix/internal/gtfs"
	"transitmatrix/internal/logging"
	"transitmatrix/internal/storage"
	"transitmatrix/internal/transit"
)

// Metadata keys written alongside a stored table.
const (
	MetaSource       = "source"
	MetaLastModified = "last_modified"
	MetaETag         = "etag"
	MetaHorizon      = "horizon_minutes"
	MetaCheckedAt    = "checked_at"
	MetaAgency       = "agency"
)

// Options describes where a feed comes from and where results go.
type Options struct {
	Source  string
	WorkDir string  // download directory for remote feeds
	Output  string  // JSON path; empty skips the file
	Horizon float64 // minutes
	Workers int
}

// Scheduler computes travel-time tables and stores them.
type Scheduler struct {
	opts     Options
	db       *storage.DB // nil when no database is configured
	logger   *slog.Logger
	onStored func()

	mu sync.Mutex // serializes updates
}

// NewScheduler creates a Scheduler. db may be nil.
func NewScheduler(opts Options, db *storage.DB, logger *slog.Logger) *Scheduler {
	return &Scheduler{opts: opts, db: db, logger: logger}
}

// OnStored registers fn to run after every successful update.
func (s *Scheduler) OnStored(fn func()) {
	s.onStored = fn
}

// EnsureData produces a table for the configured source. A table already
// stored for the same remote feed and horizon is reused when the server
// answers the conditional fetch with 304, or when the fetch fails.
func (s *Scheduler) EnsureData(ctx context.Context) error {
	prev, ok := s.storedValidators(ctx)
	err := s.update(ctx, prev)
	if err == nil || !ok {
		return err
	}
	logging.LogError(s.logger, "feed refresh failed, serving stored table", err)
	if err := s.exportStored(ctx); err != nil {
		return err
	}
	s.stored()
	return nil
}

// CheckAndUpdate recomputes when a remote feed has changed since the stored
// table was built. Local sources are left alone.
func (s *Scheduler) CheckAndUpdate(ctx context.Context) error {
	if !gtfs.IsRemote(s.opts.Source) || s.db == nil {
		return nil
	}
	prev, _ := s.storedValidators(ctx)
	return s.update(ctx, prev)
}

// StartBackground calls CheckAndUpdate every interval until ctx is done.
func (s *Scheduler) StartBackground(ctx context.Context, interval time.Duration) {
	s.logger.Info("feed refresh scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.CheckAndUpdate(ctx); err != nil {
				logging.LogError(s.logger, "background refresh failed", err)
			}
		case <-ctx.Done():
			s.logger.Info("feed refresh scheduler stopped")
			return
		}
	}
}

// Update performs a full load, compute, export and store cycle regardless
// of what is already stored.
func (s *Scheduler) Update(ctx context.Context) error {
	return s.update(ctx, gtfs.Validators{})
}

func (s *Scheduler) update(ctx context.Context, prev gtfs.Validators) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed, err := gtfs.Load(ctx, s.opts.Source, s.opts.WorkDir, prev, s.logger)
	if err != nil {
		return fmt.Errorf("load feed: %w", err)
	}
	checkedAt := time.Now().UTC().Format(time.RFC3339)

	if feed.NotModified {
		s.logger.Info("feed unchanged, reusing stored table", "source", s.opts.Source)
		if err := s.exportStored(ctx); err != nil {
			return err
		}
		if err := s.db.SetMetadata(ctx, MetaCheckedAt, checkedAt); err != nil {
			return fmt.Errorf("record feed check: %w", err)
		}
		s.stored()
		return nil
	}

	table, report, err := transit.Compute(ctx, feed.Input, transit.Options{
		Horizon: s.opts.Horizon,
		Workers: s.opts.Workers,
	}, s.logger)
	if err != nil {
		return err
	}
	logReport(s.logger, report)

	if s.opts.Output != "" {
		if err := s.writeJSON(table); err != nil {
			return err
		}
	}

	if s.db != nil {
		meta := map[string]string{
			MetaSource:       feed.Source,
			MetaLastModified: feed.LastModified,
			MetaETag:         feed.ETag,
			MetaHorizon:      formatHorizon(s.opts.Horizon),
			MetaCheckedAt:    checkedAt,
		}
		if feed.Info != nil {
			meta[MetaAgency] = strings.Join(feed.Info.Agencies, ", ")
		}
		if err := s.db.SaveTable(ctx, table, meta); err != nil {
			return fmt.Errorf("store travel times: %w", err)
		}
	}

	s.stored()
	return nil
}

func (s *Scheduler) stored() {
	if s.onStored != nil {
		s.onStored()
	}
}

// storedValidators returns the cache validators of a stored table built from
// the configured remote source and horizon. ok is false when there is no
// such table, and the zero Validators force a full download.
func (s *Scheduler) storedValidators(ctx context.Context) (v gtfs.Validators, ok bool) {
	if s.db == nil || !gtfs.IsRemote(s.opts.Source) || !s.db.HasData(ctx) {
		return v, false
	}
	source, _ := s.db.GetMetadata(ctx, MetaSource)
	horizon, _ := s.db.GetMetadata(ctx, MetaHorizon)
	if source != s.opts.Source || horizon != formatHorizon(s.opts.Horizon) {
		return v, false
	}
	v.LastModified, _ = s.db.GetMetadata(ctx, MetaLastModified)
	v.ETag, _ = s.db.GetMetadata(ctx, MetaETag)
	return v, true
}

// exportStored rewrites the JSON output from the stored table.
func (s *Scheduler) exportStored(ctx context.Context) error {
	if s.opts.Output == "" {
		return nil
	}
	table, err := s.db.LoadTable(ctx)
	if err != nil {
		return fmt.Errorf("load stored table: %w", err)
	}
	return s.writeJSON(table)
}

func (s *Scheduler) writeJSON(table *transit.Table) error {
	err := logging.Timed(s.logger, "travel times written", func() error {
		return export.WriteJSON(s.opts.Output, table)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", s.opts.Output, err)
	}
	return nil
}

func logReport(logger *slog.Logger, r transit.Report) {
	logging.LogOperation(logger, "travel times computed",
		slog.Int("stations", r.Stations),
		slog.Int("visits", r.Visits),
		slog.Int("edges", r.Edges),
		slog.Int("averaged_edges", r.AveragedEdges),
		slog.Int("transfers", r.Transfers),
		slog.Int("graph_nodes", r.GraphNodes),
		slog.Int("warnings", len(r.Warnings)),
		slog.Duration("duration", r.Duration.Round(time.Millisecond)),
	)
}

func formatHorizon(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
