// Package sqlite implements a SQLite session on database/sql using the pure
// Go modernc.org/sqlite driver. SQLite has no schemas; the workspace schema is
// accepted and ignored, and the catalog is read from sqlite_master.
package sqlite

import "time"

// Config holds SQLite session configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:work.db?cache=shared"
	//   ":memory:"
	// When empty, Database is used as the path.
	DSN string

	Database string

	// Timeout bounds each statement and is also installed as busy_timeout.
	Timeout time.Duration
}

func (c Config) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return c.Database
}
