package gtfs

import (
	"archive/zip"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// IsRemote reports whether source is an HTTP(S) URL.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load reads a feed from a directory, a .zip file or an HTTP(S) URL.
// Remote feeds are fetched conditionally against prev; when the server
// reports no change the returned Feed has NotModified set and no Input.
func Load(ctx context.Context, source, workDir string, prev Validators, logger *slog.Logger) (*Feed, error) {
	feed := &Feed{Source: source}

	path := source
	if IsRemote(source) {
		res, err := NewDownloader(source, workDir, logger).Fetch(ctx, prev)
		if err != nil {
			return nil, fmt.Errorf("download feed: %w", err)
		}
		feed.Validators = res.Validators
		if res.NotModified {
			feed.NotModified = true
			return feed, nil
		}
		defer os.Remove(res.Path)
		path = res.Path
	}

	fsys, closeFeed, err := openFeed(path)
	if err != nil {
		return nil, err
	}
	defer closeFeed()

	if feed.Input, err = loadFS(fsys, source, logger); err != nil {
		return nil, err
	}
	if feed.Info, err = Describe(fsys); err != nil {
		logger.Warn("feed description unavailable", "error", err)
	}
	return feed, nil
}

// openFeed exposes a .zip archive or a directory as a file system.
func openFeed(path string) (fs.FS, func() error, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("GTFS source: %w", err)
	}
	if info.IsDir() {
		return os.DirFS(path), func() error { return nil }, nil
	}
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("GTFS source %s is neither a directory nor a zip archive: %w", path, err)
	}
	return r, r.Close, nil
}
