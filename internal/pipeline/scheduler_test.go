package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitmatrix/internal/gtfs"
	"transitmatrix/internal/storage"
	"transitmatrix/internal/transit"
)

const testETag = `"subway-v1"`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func feedFiles() map[string]string {
	return map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"MTA NYCT,MTA New York City Transit,http://www.mta.info,America/New_York\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_type\n" +
			"1,MTA NYCT,1,1\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"Weekday,1,1,1,1,1,0,0,20250101,20251231\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon,location_type,parent_station\n" +
			"101,Van Cortlandt Park-242 St,40.889248,-73.898583,1,\n" +
			"101S,Van Cortlandt Park-242 St,40.889248,-73.898583,0,101\n" +
			"103,238 St,40.884667,-73.90087,1,\n" +
			"103S,238 St,40.884667,-73.90087,0,103\n",
		"trips.txt": "route_id,trip_id,service_id\n" +
			"1,T1,Weekday\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"T1,08:00:00,08:00:00,101S,1\n" +
			"T1,08:02:30,08:02:30,103S,2\n",
		"transfers.txt": "from_stop_id,to_stop_id,transfer_type,min_transfer_time\n" +
			"101,103,2,180\n",
	}
}

func wantTable() *transit.Table {
	return &transit.Table{
		Stations: map[string]transit.Station{
			"101": {ID: "101", Name: "Van Cortlandt Park-242 St", Lat: 40.889248, Lon: -73.898583},
			"103": {ID: "103", Name: "238 St", Lat: 40.884667, Lon: -73.90087},
		},
		TravelTimes: map[string]transit.Row{
			"101": {"101": 0, "103": 2},
			"103": {"103": 0, "101": 2},
		},
	}
}

func writeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range feedFiles() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func zipBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range feedFiles() {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readTable(t *testing.T, path string) *transit.Table {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var table transit.Table
	require.NoError(t, json.Unmarshal(data, &table))
	return &table
}

func openDB(t *testing.T, path string) *storage.DB {
	t.Helper()
	db, err := storage.Open(path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpdate_DirToJSONAndDB(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	out := filepath.Join(tmp, "travel_times.json")
	db := openDB(t, filepath.Join(tmp, "matrix.db"))

	s := NewScheduler(Options{Source: writeDir(t), Output: out, Horizon: 120}, db, testLogger())
	var stored int
	s.OnStored(func() { stored++ })

	require.NoError(t, s.EnsureData(ctx))
	assert.Equal(t, 1, stored)

	assert.Equal(t, wantTable(), readTable(t, out))

	fromDB, err := db.LoadTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantTable(), fromDB)

	horizon, err := db.GetMetadata(ctx, MetaHorizon)
	require.NoError(t, err)
	assert.Equal(t, "120", horizon)
}

func TestUpdate_JSONOnly(t *testing.T) {
	out := filepath.Join(t.TempDir(), "travel_times.json")
	s := NewScheduler(Options{Source: writeDir(t), Output: out, Horizon: 120, Workers: 1}, nil, testLogger())

	require.NoError(t, s.Update(context.Background()))
	assert.Equal(t, wantTable(), readTable(t, out))
}

func TestUpdate_MissingStops(t *testing.T) {
	dir := writeDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "stops.txt")))
	out := filepath.Join(t.TempDir(), "travel_times.json")

	s := NewScheduler(Options{Source: dir, Output: out, Horizon: 120}, nil, testLogger())
	err := s.Update(context.Background())
	assert.ErrorIs(t, err, gtfs.ErrMissingFile)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no output on failure")
}

// subwayServer serves the zipped feed and answers 304 to a matching
// If-None-Match. It counts requests and full downloads.
func subwayServer(t *testing.T) (srv *httptest.Server, requests, downloads *atomic.Int32) {
	t.Helper()
	body := zipBytes(t)
	requests, downloads = new(atomic.Int32), new(atomic.Int32)
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == testETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		downloads.Add(1)
		w.Header().Set("ETag", testETag)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, requests, downloads
}

func TestEnsureData_ReusesUnchangedRemoteFeed(t *testing.T) {
	srv, requests, downloads := subwayServer(t)

	ctx := context.Background()
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "matrix.db")
	opts := Options{Source: srv.URL, WorkDir: tmp, Output: filepath.Join(tmp, "out.json"), Horizon: 120}

	first := NewScheduler(opts, openDB(t, dbPath), testLogger())
	require.NoError(t, first.EnsureData(ctx))
	assert.Equal(t, int32(1), downloads.Load())

	db := openDB(t, dbPath)
	agency, err := db.GetMetadata(ctx, MetaAgency)
	require.NoError(t, err)
	assert.Equal(t, "MTA New York City Transit", agency)

	require.NoError(t, os.Remove(opts.Output))
	second := NewScheduler(opts, db, testLogger())
	var stored bool
	second.OnStored(func() { stored = true })
	require.NoError(t, second.EnsureData(ctx))
	assert.Equal(t, int32(2), requests.Load(), "one conditional GET per refresh")
	assert.Equal(t, int32(1), downloads.Load(), "unchanged feed is not downloaded again")
	assert.True(t, stored)
	assert.Equal(t, wantTable(), readTable(t, opts.Output), "output rewritten from the stored table")

	checkedAt, err := db.GetMetadata(ctx, MetaCheckedAt)
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, checkedAt)
	assert.NoError(t, err)

	// A different horizon invalidates the stored table.
	opts.Horizon = 60
	third := NewScheduler(opts, openDB(t, dbPath), testLogger())
	require.NoError(t, third.EnsureData(ctx))
	assert.Equal(t, int32(2), downloads.Load())
}

func TestEnsureData_ServesStoredTableWhenFetchFails(t *testing.T) {
	srv, _, _ := subwayServer(t)

	ctx := context.Background()
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "matrix.db")
	opts := Options{Source: srv.URL, WorkDir: tmp, Horizon: 120}

	require.NoError(t, NewScheduler(opts, openDB(t, dbPath), testLogger()).EnsureData(ctx))
	srv.Close()

	s := NewScheduler(opts, openDB(t, dbPath), testLogger())
	var stored bool
	s.OnStored(func() { stored = true })
	require.NoError(t, s.EnsureData(ctx))
	assert.True(t, stored)
}

func TestEnsureData_FetchFailsWithoutStoredTable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tmp := t.TempDir()
	s := NewScheduler(Options{Source: srv.URL, WorkDir: tmp, Horizon: 120}, openDB(t, filepath.Join(tmp, "matrix.db")), testLogger())
	assert.Error(t, s.EnsureData(context.Background()))
}

func TestCheckAndUpdate_RemoteFeed(t *testing.T) {
	srv, requests, downloads := subwayServer(t)

	ctx := context.Background()
	tmp := t.TempDir()
	db := openDB(t, filepath.Join(tmp, "matrix.db"))
	s := NewScheduler(Options{Source: srv.URL, WorkDir: tmp, Horizon: 120}, db, testLogger())

	require.NoError(t, s.CheckAndUpdate(ctx))
	assert.True(t, db.HasData(ctx))
	require.NoError(t, s.CheckAndUpdate(ctx))
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, int32(1), downloads.Load())
}

func TestCheckAndUpdate_LocalSourceIsNoop(t *testing.T) {
	tmp := t.TempDir()
	db := openDB(t, filepath.Join(tmp, "matrix.db"))
	s := NewScheduler(Options{Source: writeDir(t), Horizon: 120}, db, testLogger())

	require.NoError(t, s.CheckAndUpdate(context.Background()))
	assert.False(t, db.HasData(context.Background()))
}

func TestStartBackground_StopsOnCancel(t *testing.T) {
	s := NewScheduler(Options{Source: writeDir(t), Horizon: 120}, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.StartBackground(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done
}
