// Package mysql implements a MySQL session on database/sql using
// go-sql-driver/mysql. The workspace schema is selected with USE and the
// statement timeout maps to max_execution_time.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"sqltransform/internal/storage"
)

// Config holds MySQL session configuration.
type Config struct {
	DSN      string // optional; go-sql-driver DSN, overrides the discrete fields
	Host     string
	Port     int
	Database string
	Schema   string
	User     string
	Password string
	Timeout  time.Duration
}

// openDB is a test hook.
var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("mysql", dsn) }

// NewSession opens the database, pins one connection and applies the setup
// statements.
func NewSession(ctx context.Context, cfg Config) (*storage.DBSession, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, &storage.ConnectionError{Kind: "mysql", Op: "parse dsn", Err: err}
	}
	db, err := openDB(dsn)
	if err != nil {
		return nil, &storage.ConnectionError{Kind: "mysql", Op: "open", Err: err}
	}
	s, err := storage.NewDBSession(ctx, db, Dialect{}, 0)
	if err != nil {
		return nil, err
	}
	if err := storage.Setup(ctx, "mysql", s.Exec, setupSteps(cfg)); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// buildDSN returns a driver DSN with multiStatements enabled so that a
// script holding several statements runs as one Exec.
func buildDSN(cfg Config) (string, error) {
	var mc *mysql.Config
	if strings.TrimSpace(cfg.DSN) != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", err
		}
		mc = parsed
	} else {
		mc = mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Database
	}
	mc.MultiStatements = true
	return mc.FormatDSN(), nil
}

func setupSteps(cfg Config) []storage.SetupStep {
	var steps []storage.SetupStep
	if cfg.Schema != "" {
		steps = append(steps, storage.SetupStep{Op: "use schema", SQL: "USE " + myIdent(cfg.Schema)})
	}
	return append(steps, storage.SetupStep{
		Op:  "set max_execution_time",
		SQL: fmt.Sprintf("SET SESSION max_execution_time = %d", cfg.Timeout.Milliseconds()),
	})
}

func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// Dialect is the MySQL catalog dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

// Name implements storage.Dialect.
func (Dialect) Name() string { return "mysql" }

// ColumnsQuery implements storage.Dialect. MySQL reports lengths as
// unsigned BIGINT; they are cast so every backend scans the same types.
func (Dialect) ColumnsQuery(schema string, tables []string) (string, []any) {
	q := fmt.Sprintf(`SELECT COLUMN_NAME, TABLE_NAME, IS_NULLABLE, DATA_TYPE,
       CAST(CHARACTER_MAXIMUM_LENGTH AS SIGNED), CAST(NUMERIC_PRECISION AS SIGNED), CAST(NUMERIC_SCALE AS SIGNED)
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME IN (%s)
ORDER BY ORDINAL_POSITION`,
		storage.Placeholders(1, len(tables), func(int) string { return "?" }),
	)
	return q, append([]any{schema}, storage.StringArgs(tables)...)
}
