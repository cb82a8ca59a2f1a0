// Command transform runs a SQL transformation against the workspace
// described by <data-dir>/config.json and writes one manifest per expected
// output table to <data-dir>/out/tables.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"sqltransform/internal/config"
	"sqltransform/internal/logging"
	"sqltransform/internal/metrics"
	"sqltransform/internal/metrics/datadog"
	"sqltransform/internal/metrics/prompush"
	"sqltransform/internal/transformation"

	// register all backends with the storage factory; the workspace
	// config picks one at runtime.
	_ "sqltransform/internal/storage/all"
)

// Exit codes.
const (
	exitOK        = 0
	exitUserError = 1
	exitAppError  = 2
)

// CLI defines the command-line interface for transform.
type CLI struct {
	DataDir string `name:"data-dir" env:"KBC_DATADIR" default:"/data" type:"path" help:"Component data directory"`
	Config  string `name:"config" type:"path" help:"Config JSON path (default <data-dir>/config.json)"`

	Validate bool `name:"validate" help:"Validate the configuration and exit"`
	Verbose  bool `name:"verbose" short:"v" help:"Enable debug logs"`

	LogFormat string `name:"log-format" enum:"text,json" default:"text" help:"Console log format (text, json)"`
	SeqURL    string `name:"seq-url" env:"SEQ_URL" help:"Seq server URL; empty disables Seq"`

	MetricsBackend string `name:"metrics-backend" env:"METRICS_BACKEND" enum:"none,pushgateway,datadog" default:"none" help:"Metrics backend (none, pushgateway, datadog)"`
	PushgatewayURL string `name:"pushgateway-url" env:"PUSHGATEWAY_URL" default:"http://localhost:9091" help:"Pushgateway base URL"`
	DatadogAddr    string `name:"datadog-addr" env:"DD_DOGSTATSD_ADDR" default:"127.0.0.1:8125" help:"DogStatsD address"`

	Job string `name:"job" default:"transformation" help:"Job name used for metrics"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("transform"),
		kong.Description("Run a SQL transformation and write output table manifests"),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, cli, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs one invocation and returns the process exit code.
func execute(ctx context.Context, cli CLI, stderr io.Writer) int {
	log, closeLog := logging.Setup(logging.Options{
		Format:  cli.LogFormat,
		Verbose: cli.Verbose,
		SeqURL:  cli.SeqURL,
		Output:  stderr,
	})
	defer closeLog()

	runID := uuid.New().String()
	log = log.With("run_id", runID)

	cfgPath := cli.Config
	if cfgPath == "" {
		cfgPath = filepath.Join(cli.DataDir, "config.json")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Error(err.Error())
		return exitUserError
	}

	for _, iss := range config.Validate(cfg) {
		if iss.Severity == config.SeverityWarning {
			log.Warn(iss.Message, "path", iss.Path)
		}
	}
	if cli.Validate {
		if err := config.Check(cfg); err != nil {
			log.Error(err.Error(), "config", cfgPath)
			return exitUserError
		}
		log.Info("Configuration is valid", "config", cfgPath)
		return exitOK
	}

	flush := setupMetrics(cli, runID, log)
	defer flush()

	job := transformation.New(cfg, transformation.Options{
		DataDir: cli.DataDir,
		Logger:  log,
		Job:     cli.Job,
	})
	err = job.Run(ctx)
	logSummary(log, job.Summary(), err)

	switch {
	case err == nil:
		return exitOK
	case transformation.IsUserError(err):
		log.Error(err.Error())
		return exitUserError
	default:
		log.Error("Application error", "error", err)
		return exitAppError
	}
}

// setupMetrics installs the selected metrics backend and returns a func
// that flushes it. Backend failures only disable metrics.
func setupMetrics(cli CLI, runID string, log *slog.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cli.MetricsBackend {
	case "pushgateway":
		b, err = prompush.NewBackend(cli.Job, cli.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cli.DatadogAddr,
			Namespace:  "kbc.",
			GlobalTags: []string{"job:" + cli.Job, "run_id:" + runID},
		})
	default:
		log.Debug("metrics: disabled", "backend", cli.MetricsBackend)
		return func() {}
	}
	if err != nil {
		log.Warn("metrics: backend init failed; using nop", "backend", cli.MetricsBackend, "error", err)
		return func() {}
	}

	log.Debug("metrics: enabled", "backend", cli.MetricsBackend, "job", cli.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush error", "error", err)
		}
	}
}

func logSummary(log *slog.Logger, s transformation.Summary, err error) {
	msg := "Transformation finished"
	if err != nil {
		msg = "Transformation failed"
	}
	log.Info(msg,
		"blocks", humanize.Comma(int64(s.Blocks)),
		"codes", humanize.Comma(int64(s.Codes)),
		"queries", humanize.Comma(int64(s.Executed)),
		"skipped", humanize.Comma(int64(s.Skipped)),
		"tables", humanize.Comma(int64(s.Tables)),
		"columns", humanize.Comma(int64(s.Columns)),
		"duration", s.Duration.Truncate(time.Millisecond).String(),
	)
	if s.Executed > 0 && s.Duration > 0 {
		log.Debug(fmt.Sprintf("%s queries/s", humanize.FormatFloat("#,###.##", float64(s.Executed)/s.Duration.Seconds())))
	}
}
