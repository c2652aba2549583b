package storage

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"time"

	"transitmatrix/internal/transit"
)

// GetMetadata retrieves a value from the feed_metadata table.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM feed_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMetadata stores a key-value pair in the feed_metadata table.
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO feed_metadata (key, value) VALUES (?, ?)`,
		key, value)
	return err
}

// HasData returns true if a travel-time table has been stored.
func (db *DB) HasData(ctx context.Context) bool {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations`).Scan(&count)
	return err == nil && count > 0
}

// SaveTable replaces the stored table and metadata in a single transaction,
// so readers never see a half-written matrix.
func (db *DB) SaveTable(ctx context.Context, table *transit.Table, meta map[string]string) error {
	start := time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range []string{"travel_times", "stations", "stations_rtree", "feed_metadata"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", t)); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}

	if err := insertStations(ctx, tx, table.Stations); err != nil {
		return err
	}
	rows, err := insertTravelTimes(ctx, tx, table.TravelTimes)
	if err != nil {
		return err
	}
	if err := db.RebuildRTree(ctx, tx); err != nil {
		return fmt.Errorf("rebuild rtree: %w", err)
	}

	stored := maps.Clone(meta)
	if stored == nil {
		stored = map[string]string{}
	}
	if _, ok := stored["computed_at"]; !ok {
		stored["computed_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	for k, v := range stored {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO feed_metadata (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.logger.Info("travel time table stored",
		"duration", time.Since(start).Round(time.Millisecond),
		"stations", len(table.Stations),
		"pairs", rows,
	)
	return nil
}

func insertStations(ctx context.Context, tx *sql.Tx, stations map[string]transit.Station) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stations (station_id, name, lat, lon) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stations: %w", err)
	}
	defer stmt.Close()

	for _, s := range stations {
		if _, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Lat, s.Lon); err != nil {
			return fmt.Errorf("insert station %s: %w", s.ID, err)
		}
	}
	return nil
}

func insertTravelTimes(ctx context.Context, tx *sql.Tx, rows map[string]transit.Row) (int, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO travel_times (from_id, to_id, minutes) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare travel_times: %w", err)
	}
	defer stmt.Close()

	count := 0
	for from, row := range rows {
		for to, minutes := range row {
			if _, err := stmt.ExecContext(ctx, from, to, minutes); err != nil {
				return count, fmt.Errorf("insert travel time %s->%s: %w", from, to, err)
			}
			count++
		}
	}
	return count, nil
}

// RebuildRTree repopulates the R-Tree index from the stations table.
func (db *DB) RebuildRTree(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM stations_rtree`); err != nil {
		return fmt.Errorf("clear rtree: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stations_rtree(id, min_lat, max_lat, min_lon, max_lon)
		 SELECT rowid, lat, lat, lon, lon FROM stations`); err != nil {
		return fmt.Errorf("populate rtree: %w", err)
	}
	return nil
}

// Stations returns every stored station ordered by ID.
func (db *DB) Stations(ctx context.Context) ([]transit.Station, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT station_id, name, lat, lon FROM stations ORDER BY station_id`)
	if err != nil {
		return nil, fmt.Errorf("stations query: %w", err)
	}
	defer rows.Close()

	var stations []transit.Station
	for rows.Next() {
		var s transit.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

// Station looks up a single station. The bool is false if it does not exist.
func (db *DB) Station(ctx context.Context, id string) (transit.Station, bool, error) {
	var s transit.Station
	err := db.QueryRowContext(ctx,
		`SELECT station_id, name, lat, lon FROM stations WHERE station_id = ?`, id).
		Scan(&s.ID, &s.Name, &s.Lat, &s.Lon)
	if err == sql.ErrNoRows {
		return transit.Station{}, false, nil
	}
	if err != nil {
		return transit.Station{}, false, fmt.Errorf("station query: %w", err)
	}
	return s, true, nil
}

// Destination is a station reachable from a source, with its travel time.
// Name is empty for graph nodes that are not stations.
type Destination struct {
	StationID string  `json:"station_id"`
	Name      string  `json:"name,omitempty"`
	Minutes   float64 `json:"minutes"`
}

// TravelTimesFrom lists destinations reachable from id, fastest first.
// A maxMinutes of zero or less returns the whole row.
func (db *DB) TravelTimesFrom(ctx context.Context, id string, maxMinutes float64) ([]Destination, error) {
	query := `
		SELECT t.to_id, COALESCE(s.name, ''), t.minutes
		FROM travel_times AS t
		LEFT JOIN stations AS s ON s.station_id = t.to_id
		WHERE t.from_id = ?`
	args := []any{id}
	if maxMinutes > 0 {
		query += ` AND t.minutes <= ?`
		args = append(args, maxMinutes)
	}
	query += ` ORDER BY t.minutes, t.to_id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("travel times query: %w", err)
	}
	defer rows.Close()

	var dests []Destination
	for rows.Next() {
		var d Destination
		if err := rows.Scan(&d.StationID, &d.Name, &d.Minutes); err != nil {
			return nil, fmt.Errorf("scan travel time: %w", err)
		}
		dests = append(dests, d)
	}
	return dests, rows.Err()
}

// TravelTime returns the stored time between two stations. The bool is
// false when to is not reachable from within the horizon.
func (db *DB) TravelTime(ctx context.Context, from, to string) (float64, bool, error) {
	var minutes float64
	err := db.QueryRowContext(ctx,
		`SELECT minutes FROM travel_times WHERE from_id = ? AND to_id = ?`, from, to).Scan(&minutes)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("travel time query: %w", err)
	}
	return minutes, true, nil
}

// LoadTable reads the whole stored table back into memory.
func (db *DB) LoadTable(ctx context.Context) (*transit.Table, error) {
	stations, err := db.Stations(ctx)
	if err != nil {
		return nil, err
	}
	table := &transit.Table{
		Stations:    make(map[string]transit.Station, len(stations)),
		TravelTimes: make(map[string]transit.Row, len(stations)),
	}
	for _, s := range stations {
		table.Stations[s.ID] = s
		table.TravelTimes[s.ID] = transit.Row{}
	}

	rows, err := db.QueryContext(ctx, `SELECT from_id, to_id, minutes FROM travel_times`)
	if err != nil {
		return nil, fmt.Errorf("travel times query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var from, to string
		var minutes float64
		if err := rows.Scan(&from, &to, &minutes); err != nil {
			return nil, fmt.Errorf("scan travel time: %w", err)
		}
		table.TravelTimes[from][to] = minutes
	}
	return table, rows.Err()
}

// NearbyStationRow is a station with its distance from a query point.
type NearbyStationRow struct {
	transit.Station
	DistanceMeters float64 // Computed after query via Haversine
}

// NearbyStations finds stations within a bounding box using the R-Tree index.
// The caller should refine distances with Haversine and re-sort.
func (db *DB) NearbyStations(ctx context.Context, lat, lon, latDeg, lonDeg float64, limit int) ([]NearbyStationRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.station_id, s.name, s.lat, s.lon
		FROM stations_rtree AS r
		JOIN stations AS s ON s.rowid = r.id
		WHERE r.min_lat >= ? AND r.max_lat <= ?
		  AND r.min_lon >= ? AND r.max_lon <= ?
		ORDER BY (s.lat - ?)*(s.lat - ?) + (s.lon - ?)*(s.lon - ?)
		LIMIT ?`,
		lat-latDeg, lat+latDeg,
		lon-lonDeg, lon+lonDeg,
		lat, lat, lon, lon,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("nearby stations query: %w", err)
	}
	defer rows.Close()

	var stations []NearbyStationRow
	for rows.Next() {
		var s NearbyStationRow
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}
