package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Validators are the HTTP cache validators a server sent with a feed.
type Validators struct {
	LastModified string
	ETag         string
}

// FetchResult is the outcome of a conditional download.
type FetchResult struct {
	Validators
	NotModified bool   // the server answered 304 and nothing was written
	Path        string // downloaded archive; the caller removes it
	Bytes       int64
}

// Downloader fetches a zipped feed over HTTP.
type Downloader struct {
	client *http.Client
	url    string
	dir    string
	logger *slog.Logger
}

// NewDownloader creates a Downloader that saves archives under dir.
func NewDownloader(url, dir string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: 5 * time.Minute},
		url:    url,
		dir:    dir,
		logger: logger,
	}
}

// Fetch sends one GET carrying prev as If-None-Match and If-Modified-Since.
// On 304 the result echoes prev with NotModified set.
func (d *Downloader) Fetch(ctx context.Context, prev Validators) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if prev.ETag != "" {
		req.Header.Set("If-None-Match", prev.ETag)
	}
	if prev.LastModified != "" {
		req.Header.Set("If-Modified-Since", prev.LastModified)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", d.url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		if prev == (Validators{}) {
			return nil, fmt.Errorf("fetch %s: status 304 for an unconditional request", d.url)
		}
		d.logger.Info("feed not modified", "url", d.url)
		return &FetchResult{Validators: prev, NotModified: true}, nil
	default:
		return nil, fmt.Errorf("fetch %s: status %d", d.url, resp.StatusCode)
	}

	path, n, err := d.save(resp.Body)
	if err != nil {
		return nil, err
	}
	d.logger.Info("feed downloaded", "url", d.url, "bytes", n)
	return &FetchResult{
		Validators: Validators{
			LastModified: resp.Header.Get("Last-Modified"),
			ETag:         resp.Header.Get("ETag"),
		},
		Path:  path,
		Bytes: n,
	}, nil
}

func (d *Downloader) save(body io.Reader) (string, int64, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create download dir: %w", err)
	}
	f, err := os.CreateTemp(d.dir, "feed-*.zip")
	if err != nil {
		return "", 0, fmt.Errorf("create archive: %w", err)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("save archive: %w", err)
	}
	return f.Name(), n, nil
}
