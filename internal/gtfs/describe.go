package gtfs

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jamespfennell/gtfs"
)

const (
	agencyFile = "agency.txt"
	routesFile = "routes.txt"
)

// Header-only stand-ins for the files the static parser insists on. Only
// agency and route rows are read from its result.
var describeStubs = map[string]string{
	stopsFile:     "stop_id,stop_name,stop_lat,stop_lon\n",
	tripsFile:     "route_id,service_id,trip_id\n",
	stopTimesFile: "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n",
}

// FeedInfo names who publishes a feed. It is informational and never feeds
// the travel-time computation.
type FeedInfo struct {
	Agencies []string
	Routes   int
}

// Describe parses agency.txt and routes.txt with the jamespfennell/gtfs
// static parser. A feed lacking either file yields (nil, nil).
func Describe(fsys fs.FS) (*FeedInfo, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{agencyFile, routesFile} {
		b, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if err := writeZipEntry(w, name, b); err != nil {
			return nil, err
		}
	}
	for name, header := range describeStubs {
		if err := writeZipEntry(w, name, []byte(header)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build describe archive: %w", err)
	}

	static, err := gtfs.ParseStatic(buf.Bytes(), gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse agencies: %w", err)
	}
	info := &FeedInfo{Routes: len(static.Routes)}
	for _, a := range static.Agencies {
		info.Agencies = append(info.Agencies, a.Name)
	}
	return info, nil
}

func writeZipEntry(w *zip.Writer, name string, content []byte) error {
	f, err := w.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}
