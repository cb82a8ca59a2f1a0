// Package postgres implements a Redshift/Postgres session using pgx v5.
// Redshift speaks the Postgres wire protocol, so both kinds share this
// backend; they differ only in their default port.
//
// The session runs in pgx's simple query protocol: transformation scripts
// may hold several statements in one string, and Redshift does not support
// every extended-protocol feature pgx would otherwise use.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sqltransform/internal/storage"
)

// Config holds Postgres session configuration.
type Config struct {
	Kind     string // "redshift" or "postgres"; used in errors and the dialect
	DSN      string // optional; overrides the discrete fields
	Host     string
	Port     int
	Database string
	Schema   string
	User     string
	Password string
	Timeout  time.Duration // statement_timeout
}

// pgConnLike defines the subset of *pgx.Conn the session uses. It allows
// injecting a test double without a live server.
type pgConnLike interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close(ctx context.Context) error
}

// connect is a test hook; it points to pgx.ConnectConfig by default.
var connect = func(ctx context.Context, cc *pgx.ConnConfig) (pgConnLike, error) {
	return pgx.ConnectConfig(ctx, cc)
}

// Session is one Postgres/Redshift connection with search_path and
// statement_timeout applied.
type Session struct {
	conn    pgConnLike
	dialect Dialect
}

var _ storage.Conn = (*Session)(nil)

// NewSession connects and runs the two setup statements. Any failure is
// returned as a *storage.ConnectionError and leaves no open connection.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	cc, err := pgx.ParseConfig(connString(cfg))
	if err != nil {
		return nil, &storage.ConnectionError{Kind: cfg.Kind, Op: "parse dsn", Err: err}
	}
	cc.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	c, err := connect(ctx, cc)
	if err != nil {
		return nil, &storage.ConnectionError{Kind: cfg.Kind, Op: "connect", Err: err}
	}
	s := &Session{conn: c, dialect: Dialect{kind: cfg.Kind}}

	if err := storage.Setup(ctx, cfg.Kind, s.Exec, setupSteps(cfg)); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return s, nil
}

// setupSteps restricts unqualified names to the workspace schema and
// installs the server-side statement timeout (milliseconds).
func setupSteps(cfg Config) []storage.SetupStep {
	return []storage.SetupStep{
		{Op: "set search_path", SQL: fmt.Sprintf("SET search_path TO %s;", pgIdent(cfg.Schema))},
		{Op: "set statement_timeout", SQL: fmt.Sprintf("SET statement_timeout TO %d", cfg.Timeout.Milliseconds())},
	}
}

// connString builds a postgres:// URL from the discrete fields unless a DSN
// was given.
func connString(cfg Config) string {
	if strings.TrimSpace(cfg.DSN) != "" {
		return cfg.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	return u.String()
}

// Exec runs sql with no arguments. pgx sends it as a simple query, so a
// script with several statements is executed as a whole.
func (s *Session) Exec(ctx context.Context, sql string) error {
	_, err := s.conn.Exec(ctx, sql)
	return err
}

// Query implements storage.Conn.Query.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (storage.Rows, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgRows{rows}, nil
}

// Dialect implements storage.Conn.Dialect.
func (s *Session) Dialect() storage.Dialect { return s.dialect }

// Close implements storage.Conn.Close.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.conn.Close(ctx)
}

// pgRows adapts pgx.Rows (whose Close returns nothing) to storage.Rows.
type pgRows struct{ pgx.Rows }

func (r pgRows) Close() error {
	r.Rows.Close()
	return r.Rows.Err()
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
