package storage

import "fmt"

// migrate creates the schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Debug("database migrations applied", "count", len(migrations))
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS stations (
		station_id TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		lat        REAL NOT NULL,
		lon        REAL NOT NULL
	)`,

	// One row per reachable (source, destination) pair within the horizon.
	// to_id is not a foreign key: rows may reach nodes that are not stations.
	`CREATE TABLE IF NOT EXISTS travel_times (
		from_id TEXT NOT NULL REFERENCES stations(station_id) ON DELETE CASCADE,
		to_id   TEXT NOT NULL,
		minutes REAL NOT NULL,
		PRIMARY KEY (from_id, to_id)
	) WITHOUT ROWID`,

	// R-Tree spatial index on stations for nearest-station queries
	`CREATE VIRTUAL TABLE IF NOT EXISTS stations_rtree USING rtree(
		id,
		min_lat, max_lat,
		min_lon, max_lon
	)`,

	// Feed metadata (source, last_modified, etag, computed_at, horizon)
	`CREATE TABLE IF NOT EXISTS feed_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_travel_times_from_minutes ON travel_times(from_id, minutes)`,
}
