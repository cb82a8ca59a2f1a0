package postgres

import (
	"context"
	"testing"
	"time"

	"sqltransform/internal/storage"
)

// Test that init() registration works for both kinds and that storage.Open
// constructs the session via our adapter. We stub newSession to avoid a real
// DB connection.
func TestAdapterRegistration(t *testing.T) {
	orig := newSession
	defer func() { newSession = orig }()

	var gotCfg Config
	newSession = func(ctx context.Context, cfg Config) (*Session, error) {
		gotCfg = cfg
		return &Session{conn: &fakePgConn{}, dialect: Dialect{kind: cfg.Kind}}, nil
	}

	for _, kind := range []string{"redshift", "postgres"} {
		want := storage.Config{
			Kind:         kind,
			Host:         "wh",
			Port:         5439,
			Database:     "db",
			Schema:       "ws",
			User:         "u",
			Password:     "p",
			QueryTimeout: 30 * time.Second,
		}

		conn, err := storage.Open(context.Background(), want)
		if err != nil {
			t.Fatalf("storage.Open(%s) error: %v", kind, err)
		}
		if conn.Dialect().Name() != kind {
			t.Errorf("dialect = %q, want %q", conn.Dialect().Name(), kind)
		}
		if gotCfg.Kind != kind || gotCfg.Schema != "ws" || gotCfg.Timeout != 30*time.Second {
			t.Errorf("adapter mapped config = %+v", gotCfg)
		}
		if gotCfg.Host != "wh" || gotCfg.Port != 5439 || gotCfg.Database != "db" || gotCfg.User != "u" || gotCfg.Password != "p" {
			t.Errorf("adapter mapped connection fields = %+v", gotCfg)
		}
		_ = conn.Close()
	}
}
