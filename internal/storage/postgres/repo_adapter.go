// Package postgres provides the Redshift/Postgres storage.Conn implementation.
// This adapter wires the backend into the storage-agnostic factory by
// registering an opener at init time for both "redshift" and "postgres".
// The CLI and the transformation job obtain a session via storage.Open(...)
// without importing this package directly.
package postgres

import (
	"context"

	"sqltransform/internal/storage"
)

// newSession is a test hook that points to NewSession by default.
// Tests may replace this variable to avoid real DB connections.
var newSession = NewSession

func init() {
	for _, kind := range []string{"redshift", "postgres"} {
		kind := kind
		storage.Register(kind, func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
			// Adapt storage.Config → postgres.Config.
			return newSession(ctx, Config{
				Kind:     kind,
				DSN:      cfg.DSN,
				Host:     cfg.Host,
				Port:     cfg.Port,
				Database: cfg.Database,
				Schema:   cfg.Schema,
				User:     cfg.User,
				Password: cfg.Password,
				Timeout:  cfg.QueryTimeout,
			})
		})
	}
}
