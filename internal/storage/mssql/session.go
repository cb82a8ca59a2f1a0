// Package mssql implements a Microsoft SQL Server session on database/sql
// using go-mssqldb.
//
// SQL Server has no session-level statement timeout, so the query timeout
// becomes a per-statement context deadline (the driver sends an attention
// packet on cancel). The same value is installed as LOCK_TIMEOUT so that a
// statement blocked on a lock fails with a server error rather than a
// client-side cancellation.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"sqltransform/internal/storage"
)

// Config holds MSSQL session configuration.
type Config struct {
	DSN      string // optional; sqlserver:// URL or ADO string
	Host     string
	Port     int
	Database string
	Schema   string
	User     string
	Password string
	Timeout  time.Duration
}

// openDB is a test hook.
var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("sqlserver", dsn) }

// NewSession validates the DSN, pins one connection and applies the lock
// timeout.
func NewSession(ctx context.Context, cfg Config) (*storage.DBSession, error) {
	dsn := buildDSN(cfg)
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, &storage.ConnectionError{Kind: "mssql", Op: "parse dsn", Err: err}
	}
	db, err := openDB(dsn)
	if err != nil {
		return nil, &storage.ConnectionError{Kind: "mssql", Op: "open", Err: err}
	}
	s, err := storage.NewDBSession(ctx, db, Dialect{}, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if err := storage.Setup(ctx, "mssql", s.Exec, setupSteps(cfg)); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func buildDSN(cfg Config) string {
	if strings.TrimSpace(cfg.DSN) != "" {
		return cfg.DSN
	}
	q := url.Values{}
	q.Set("database", cfg.Database)
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func setupSteps(cfg Config) []storage.SetupStep {
	return []storage.SetupStep{
		{Op: "set lock_timeout", SQL: fmt.Sprintf("SET LOCK_TIMEOUT %d", cfg.Timeout.Milliseconds())},
	}
}

// Dialect is the SQL Server catalog dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

// Name implements storage.Dialect.
func (Dialect) Name() string { return "mssql" }

// ColumnsQuery implements storage.Dialect. (MAX) columns report a length
// of -1, which is returned as NULL.
func (Dialect) ColumnsQuery(schema string, tables []string) (string, []any) {
	q := fmt.Sprintf(`SELECT COLUMN_NAME, TABLE_NAME, IS_NULLABLE, DATA_TYPE,
       NULLIF(CAST(CHARACTER_MAXIMUM_LENGTH AS INT), -1), CAST(NUMERIC_PRECISION AS INT), CAST(NUMERIC_SCALE AS INT)
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME IN (%s)
ORDER BY ORDINAL_POSITION`,
		storage.Placeholders(2, len(tables), func(i int) string { return "@p" + strconv.Itoa(i) }),
	)
	return q, append([]any{schema}, storage.StringArgs(tables)...)
}
