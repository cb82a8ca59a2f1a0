package sqlite

import (
	"context"

	"sqltransform/internal/storage"
)

// newSession is a test hook that points to NewSession by default.
var newSession = func(ctx context.Context, cfg Config) (storage.Conn, error) {
	return NewSession(ctx, cfg)
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
		return newSession(ctx, Config{
			DSN:      cfg.DSN,
			Database: cfg.Database,
			Timeout:  cfg.QueryTimeout,
		})
	})
}
