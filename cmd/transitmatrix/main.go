package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"transitmatrix/internal/config"
	"transitmatrix/internal/logging"
	"transitmatrix/internal/pipeline"
	"transitmatrix/internal/server"
	"transitmatrix/internal/storage"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(os.Stderr, level, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logging.LogError(logger, "transitmatrix failed", err)
		os.Exit(1)
	}
}

// parseConfig loads env and file settings, then applies only the flags that
// were set explicitly.
func parseConfig(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("transitmatrix", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	source := fs.String("gtfs", "", "GTFS directory, .zip file or http(s) URL")
	output := fs.String("output", "", "JSON output file")
	dbPath := fs.String("db", "", "SQLite database path")
	workDir := fs.String("work-dir", "", "download directory for remote feeds")
	horizon := fs.Float64("horizon", 0, "maximum travel time in minutes")
	workers := fs.Int("workers", 0, "concurrent shortest-path workers (0 = GOMAXPROCS)")
	serve := fs.Bool("serve", false, "serve the table over HTTP after computing it")
	port := fs.Int("port", 0, "HTTP server port")
	refresh := fs.Duration("refresh", 0, "re-check a remote feed at this interval while serving")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	logFormat := fs.String("log-format", "", "text or json")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "gtfs":
			cfg.Source = *source
		case "output":
			cfg.Output = *output
		case "db":
			cfg.DBPath = *dbPath
		case "work-dir":
			cfg.WorkDir = *workDir
		case "horizon":
			cfg.HorizonMinutes = *horizon
		case "workers":
			cfg.Workers = *workers
		case "serve":
			cfg.Serve = *serve
		case "port":
			cfg.Port = *port
		case "refresh":
			cfg.RefreshInterval = *refresh
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var db *storage.DB
	if cfg.DBPath != "" {
		var err error
		if db, err = storage.Open(cfg.DBPath, logger); err != nil {
			return err
		}
		defer logging.SafeCloseWithLogging(db, logger, "close database")
	}

	scheduler := pipeline.NewScheduler(pipeline.Options{
		Source:  cfg.Source,
		WorkDir: cfg.WorkDir,
		Output:  cfg.Output,
		Horizon: cfg.HorizonMinutes,
		Workers: cfg.Workers,
	}, db, logger)

	if !cfg.Serve {
		return scheduler.EnsureData(ctx)
	}

	// Serve right away; data endpoints answer 503 until a table is stored.
	srv := server.New(cfg.Port, db, logger)
	scheduler.OnStored(srv.SetReady)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	if err := scheduler.EnsureData(ctx); err != nil {
		return err
	}
	if cfg.RefreshInterval > 0 {
		go scheduler.StartBackground(ctx, cfg.RefreshInterval)
	}
	return <-errCh
}
