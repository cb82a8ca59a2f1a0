package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBSession adapts a database/sql handle to Conn. It pins a single *sql.Conn
// so that session settings (schema, timeouts) applied during setup stay in
// effect for every later statement; the pool is never consulted again.
type DBSession struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect Dialect

	// stmtTimeout, when positive, bounds every Exec/Query with a context
	// deadline. Backends without a session-level statement timeout use it;
	// the driver then cancels the statement on the server.
	stmtTimeout time.Duration
}

// NewDBSession pings db, pins one connection and returns the session. On
// failure db is closed.
func NewDBSession(ctx context.Context, db *sql.DB, d Dialect, stmtTimeout time.Duration) (*DBSession, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Kind: d.Name(), Op: "connect", Err: err}
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Kind: d.Name(), Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(1)
	return &DBSession{db: db, conn: conn, dialect: d, stmtTimeout: stmtTimeout}, nil
}

func (s *DBSession) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.stmtTimeout > 0 {
		return context.WithTimeout(ctx, s.stmtTimeout)
	}
	return ctx, func() {}
}

// Exec implements Conn.Exec.
func (s *DBSession) Exec(ctx context.Context, query string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	_, err := s.conn.ExecContext(ctx, query)
	return err
}

// Query implements Conn.Query.
func (s *DBSession) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	ctx, cancel := s.bound(ctx)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &dbRows{Rows: rows, cancel: cancel}, nil
}

// Dialect implements Conn.Dialect.
func (s *DBSession) Dialect() Dialect { return s.dialect }

// Close releases the pinned connection and the handle.
func (s *DBSession) Close() error {
	cerr := s.conn.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%s: close: %w", s.dialect.Name(), err)
	}
	return cerr
}

// dbRows releases the statement deadline together with the cursor.
type dbRows struct {
	*sql.Rows
	cancel context.CancelFunc
}

func (r *dbRows) Close() error {
	defer r.cancel()
	return r.Rows.Close()
}
