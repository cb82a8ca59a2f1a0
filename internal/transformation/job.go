// Package transformation runs one transformation job end to end: open the
// workspace session, execute the blocks, describe the expected output tables
// and write their manifests.
package transformation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sqltransform/internal/catalog"
	"sqltransform/internal/config"
	"sqltransform/internal/datatype"
	"sqltransform/internal/logging"
	"sqltransform/internal/manifest"
	"sqltransform/internal/metrics"
	"sqltransform/internal/runner"
	"sqltransform/internal/storage"
)

// openConn is a test hook; it points to storage.Open by default.
var openConn = storage.Open

// ManifestWriter persists one table manifest. *manifest.Writer satisfies it.
type ManifestWriter interface {
	WriteTableManifest(name string, m manifest.TableManifest) error
}

// Options configure a Job.
type Options struct {
	// DataDir is the component data directory; manifests go to
	// <DataDir>/out/tables unless Writer is set.
	DataDir string

	Logger *slog.Logger

	// Job labels metrics and logs.
	Job string

	Writer ManifestWriter
}

// Summary describes a finished (or failed) run.
type Summary struct {
	Blocks   int
	Codes    int
	Executed int
	Skipped  int
	Tables   int
	Columns  int
	Duration time.Duration
}

// Job is a single transformation run over one configuration.
type Job struct {
	cfg     *config.Config
	opts    Options
	log     *slog.Logger
	writer  ManifestWriter
	summary Summary
}

// New prepares a Job; nothing is opened until Run.
func New(cfg *config.Config, opts Options) *Job {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	w := opts.Writer
	if w == nil {
		w = manifest.NewWriter(opts.DataDir)
	}
	return &Job{cfg: cfg, opts: opts, log: log, writer: w}
}

// Summary returns the counters of the last Run.
func (j *Job) Summary() Summary { return j.summary }

// Run validates the configuration, then connects, executes all blocks,
// describes the expected output tables and writes one manifest per table in
// configuration order. Either everything succeeds or the first error is
// returned; user errors are returned unwrapped so their message can be shown
// as is.
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	j.summary = Summary{}
	defer func() { j.summary.Duration = time.Since(start) }()

	if err := config.Check(j.cfg); err != nil {
		return err
	}
	ws, err := j.cfg.DatabaseConfig()
	if err != nil {
		return err
	}

	var conn storage.Conn
	err = j.step("connect", func() error {
		var err error
		conn, err = openConn(ctx, storageConfig(ws, j.cfg.QueryTimeout()))
		return err
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			j.log.Warn("close session", "error", cerr)
		}
	}()

	r := runner.New(conn, runner.Options{
		AllowQueryCleaning: j.cfg.Parameters.CleaningEnabled(),
		Logger:             j.log,
		Job:                j.opts.Job,
	})
	err = j.step("run", func() error { return r.Run(ctx, j.cfg.Blocks()) })
	rs := r.Stats()
	j.summary.Blocks, j.summary.Codes, j.summary.Executed, j.summary.Skipped = rs.Blocks, rs.Codes, rs.Executed, rs.Skipped
	if err != nil {
		return err
	}

	names := catalog.SourceNames(j.cfg.ExpectedOutputTables())
	var tables map[string]catalog.TableStructure
	err = j.step("describe", func() error {
		var err error
		tables, err = catalog.DescribeTables(ctx, conn, ws.Schema, names)
		return err
	})
	if err != nil {
		return err
	}
	metrics.RecordTables(j.opts.Job, "described", int64(len(tables)))

	backend := conn.Dialect().Name()
	return j.step("manifest", func() error { return j.writeManifests(backend, names, tables) })
}

// writeManifests writes one manifest per distinct name. backend selects the
// datatype length rules (see datatype.ForColumn).
func (j *Job) writeManifests(backend string, names []string, tables map[string]catalog.TableStructure) error {
	written := map[string]bool{}
	for _, name := range names {
		if written[name] {
			continue
		}
		ts := tables[name]
		columns, columnMeta, err := datatype.ColumnMetadata(ts, backend)
		if err != nil {
			return fmt.Errorf("map datatypes: %w", err)
		}
		m := manifest.TableManifest{
			Columns:        columns,
			Metadata:       datatype.TableMetadata(ts),
			ColumnMetadata: columnMeta,
		}
		if err := j.writer.WriteTableManifest(ts.Name, m); err != nil {
			return err
		}
		written[name] = true
		j.summary.Tables++
		j.summary.Columns += len(columns)
		metrics.RecordTables(j.opts.Job, "manifested", 1)
		j.log.Debug("Wrote manifest", "table", ts.Name, "columns", len(columns))
	}
	return nil
}

// step times fn as a metrics step.
func (j *Job) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(j.opts.Job, name, err, time.Since(start))
	if err != nil {
		j.log.Debug("step failed", "step", name, "error", err)
	}
	return err
}

func storageConfig(ws *config.Workspace, timeout time.Duration) storage.Config {
	return storage.Config{
		Kind:         ws.Backend,
		Host:         ws.Host,
		Port:         int(ws.Port),
		Database:     ws.Database,
		Schema:       ws.Schema,
		User:         ws.User,
		Password:     ws.Password,
		DSN:          ws.DSN,
		QueryTimeout: timeout,
	}
}

// IsUserError reports whether err is caused by the job's configuration or
// SQL rather than by the environment: invalid configuration, a failing
// statement or an expected output table that was not created.
func IsUserError(err error) bool {
	var (
		cfgErr     *config.ConfigurationError
		queryErr   *runner.QueryExecutionError
		missingErr *catalog.MissingTablesError
	)
	return errors.As(err, &cfgErr) || errors.As(err, &queryErr) || errors.As(err, &missingErr)
}
