package mysql

import (
	"context"

	"sqltransform/internal/storage"
)

// newSession is a test hook that points to NewSession by default.
var newSession = func(ctx context.Context, cfg Config) (storage.Conn, error) {
	return NewSession(ctx, cfg)
}

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
		return newSession(ctx, Config{
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
