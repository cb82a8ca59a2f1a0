// Package storage contains the backend-agnostic session contract used by the
// transformation runner, plus a small factory registry. Concrete backends
// (Redshift/Postgres, MySQL, MSSQL, SQLite) live in subpackages and register
// themselves at init time; see internal/storage/all.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Config holds everything a backend needs to open one session.
type Config struct {
	// Kind selects the backend ("redshift", "postgres", "mysql", "mssql",
	// "sqlite").
	Kind string

	Host     string
	Port     int
	Database string
	Schema   string
	User     string
	Password string

	// DSN overrides the discrete fields when non-empty.
	DSN string

	// QueryTimeout is installed as the server-side statement timeout.
	QueryTimeout time.Duration
}

// Rows is the minimal cursor shared by pgx and database/sql result sets.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Dialect describes backend-specific SQL the core must issue.
type Dialect interface {
	// Name is the backend kind, e.g. "redshift".
	Name() string

	// ColumnsQuery returns one catalog query (and its arguments) selecting,
	// in this order: column_name, table_name, is_nullable, data_type,
	// character_maximum_length, numeric_precision, numeric_scale, for the
	// given tables in schema, ordered by ordinal position.
	ColumnsQuery(schema string, tables []string) (string, []any)
}

// Conn is a single, exclusively owned database session. Implementations
// apply the schema and statement timeout from Config before returning it.
type Conn interface {
	// Exec runs one SQL script and discards any result.
	Exec(ctx context.Context, sql string) error

	// Query runs a query and returns its rows. Callers must Close them.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Dialect returns the backend's SQL dialect helpers.
	Dialect() Dialect

	// Close ends the session.
	Close() error
}

// Opener constructs a Conn for a backend.
type Opener func(ctx context.Context, cfg Config) (Conn, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

// Register registers (or replaces) the Opener for kind. It is typically
// called from backend packages' init() functions.
func Register(kind string, fn Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[strings.ToLower(kind)] = fn
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open looks up the backend for cfg.Kind and opens a session. Every failure,
// including an unknown kind, is returned as a *ConnectionError.
func Open(ctx context.Context, cfg Config) (Conn, error) {
	mu.RLock()
	fn, ok := openers[strings.ToLower(cfg.Kind)]
	mu.RUnlock()
	if !ok {
		return nil, &ConnectionError{
			Kind: cfg.Kind,
			Op:   "open",
			Err:  fmt.Errorf("no storage backend registered for kind %q", cfg.Kind),
		}
	}
	conn, err := fn(ctx, cfg)
	if err != nil {
		var cerr *ConnectionError
		if errors.As(err, &cerr) {
			return nil, err
		}
		return nil, &ConnectionError{Kind: cfg.Kind, Op: "open", Err: err}
	}
	return conn, nil
}

// ConnectionError reports a failed handshake or session setup statement.
type ConnectionError struct {
	Kind string // backend kind
	Op   string // "connect", "set search_path", "set statement_timeout", ...
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Setup runs session setup statements in order on exec. The first failure
// is returned as a *ConnectionError naming the step.
func Setup(ctx context.Context, kind string, exec func(ctx context.Context, sql string) error, steps []SetupStep) error {
	for _, s := range steps {
		if err := exec(ctx, s.SQL); err != nil {
			return &ConnectionError{Kind: kind, Op: s.Op, Err: err}
		}
	}
	return nil
}

// SetupStep is one session setup statement and a short name for errors.
type SetupStep struct {
	Op  string
	SQL string
}

// Placeholders returns n placeholders produced by ph(i) for i starting at
// start, joined with ", ".
func Placeholders(start, n int, ph func(i int) string) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = ph(start + i)
	}
	return strings.Join(parts, ", ")
}

// StringArgs converts table names to query arguments.
func StringArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
