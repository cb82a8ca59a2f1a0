package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"sqltransform/internal/storage"
)

// openDB is a test hook.
var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// NewSession opens the database file (or memory database), pins one
// connection and sets busy_timeout. Because the connection is pinned, a
// ":memory:" database lives exactly as long as the session.
func NewSession(ctx context.Context, cfg Config) (*storage.DBSession, error) {
	dsn := strings.TrimSpace(cfg.dsn())
	if dsn == "" {
		return nil, &storage.ConnectionError{Kind: "sqlite", Op: "open", Err: errors.New("database path must not be empty")}
	}
	db, err := openDB(dsn)
	if err != nil {
		return nil, &storage.ConnectionError{Kind: "sqlite", Op: "open", Err: err}
	}
	s, err := storage.NewDBSession(ctx, db, Dialect{}, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if err := storage.Setup(ctx, "sqlite", s.Exec, setupSteps(cfg)); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func setupSteps(cfg Config) []storage.SetupStep {
	return []storage.SetupStep{
		{Op: "set busy_timeout", SQL: fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.Timeout.Milliseconds())},
	}
}

// Dialect is the SQLite catalog dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

// Name implements storage.Dialect.
func (Dialect) Name() string { return "sqlite" }

// ColumnsQuery implements storage.Dialect on top of pragma_table_info.
// Declared types such as "VARCHAR(12)" or "DECIMAL(10,2)" are split into a
// lowercased base type plus length, precision and scale, mirroring what
// information_schema reports on the server backends. The schema is ignored.
func (Dialect) ColumnsQuery(_ string, tables []string) (string, []any) {
	q := fmt.Sprintf(`SELECT p.name, m.name,
       CASE WHEN p."notnull" THEN 'NO' ELSE 'YES' END,
       lower(trim(CASE WHEN instr(p.type, '(') > 0 THEN substr(p.type, 1, instr(p.type, '(') - 1) ELSE p.type END)),
       CASE WHEN upper(p.type) LIKE '%%CHAR%%(%%' THEN CAST(substr(p.type, instr(p.type, '(') + 1) AS INTEGER) END,
       CASE WHEN (upper(p.type) LIKE 'DEC%%(%%' OR upper(p.type) LIKE 'NUMERIC%%(%%')
            THEN CAST(substr(p.type, instr(p.type, '(') + 1) AS INTEGER) END,
       CASE WHEN (upper(p.type) LIKE 'DEC%%(%%' OR upper(p.type) LIKE 'NUMERIC%%(%%')
            THEN CASE WHEN instr(p.type, ',') > 0 THEN CAST(trim(substr(p.type, instr(p.type, ',') + 1)) AS INTEGER) ELSE 0 END END
FROM sqlite_master AS m
JOIN pragma_table_info(m.name) AS p
WHERE m.type IN ('table', 'view') AND m.name IN (%s)
ORDER BY m.name, p.cid`,
		storage.Placeholders(1, len(tables), func(int) string { return "?" }),
	)
	return q, storage.StringArgs(tables)
}
