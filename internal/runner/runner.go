// Package runner executes the blocks of a transformation in order on a single
// warehouse session. Execution is strictly sequential and stops at the first
// failing statement.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeebo/xxh3"

	"sqltransform/internal/config"
	"sqltransform/internal/logging"
	"sqltransform/internal/metrics"
	"sqltransform/internal/sqlclean"
)

// Executor runs one SQL script. storage.Conn satisfies it.
type Executor interface {
	Exec(ctx context.Context, sql string) error
}

// Options tune a Runner.
type Options struct {
	// AllowQueryCleaning strips comments and skips SELECT statements.
	AllowQueryCleaning bool

	// Logger receives one entry per block, code and executed statement.
	// Nil discards.
	Logger *slog.Logger

	// Job labels metrics.
	Job string
}

// Stats counts what a run did.
type Stats struct {
	Blocks   int
	Codes    int
	Executed int
	Skipped  int
}

// Runner walks blocks, codes and queries in declaration order.
type Runner struct {
	exec  Executor
	opts  Options
	log   *slog.Logger
	stats Stats
}

// New returns a Runner that submits statements to exec.
func New(exec Executor, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Runner{exec: exec, opts: opts, log: log}
}

// Stats returns the counters of the last Run.
func (r *Runner) Stats() Stats { return r.stats }

// Run executes every non-skipped query of every code of every block. The
// first failure aborts the run and is returned as *QueryExecutionError; no
// later statement is submitted.
func (r *Runner) Run(ctx context.Context, blocks []config.Block) error {
	r.stats = Stats{}
	defer func() {
		metrics.RecordQueries(r.opts.Job, "executed", int64(r.stats.Executed))
		metrics.RecordQueries(r.opts.Job, "skipped", int64(r.stats.Skipped))
	}()

	for _, block := range blocks {
		r.stats.Blocks++
		r.log.Info(fmt.Sprintf(`Processing block "%s"`, block.Name), "block", block.Name)

		for _, code := range block.Codes {
			r.stats.Codes++
			r.log.Info(fmt.Sprintf(`Processing code "%s"`, code.Name), "block", block.Name, "code", code.Name)

			for _, query := range code.Script {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := r.runQuery(ctx, block.Name, code.Name, query); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Runner) runQuery(ctx context.Context, blockName, codeName, query string) error {
	runQuery, skip := sqlclean.ShouldSkip(query, r.opts.AllowQueryCleaning)
	if skip {
		r.stats.Skipped++
		r.log.Debug("Skipping query", "block", blockName, "code", codeName)
		return nil
	}

	r.log.Info(fmt.Sprintf(`Running query "%s".`, Excerpt(query)),
		"block", blockName,
		"code", codeName,
		"query_hash", fmt.Sprintf("%016x", xxh3.HashString(runQuery)),
	)

	start := time.Now()
	err := r.exec.Exec(ctx, runQuery)
	metrics.RecordStep(r.opts.Job, "query", err, time.Since(start))
	if err != nil {
		return &QueryExecutionError{Query: query, Code: codeName, Block: blockName, Err: err}
	}
	r.stats.Executed++
	return nil
}
