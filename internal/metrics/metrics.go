// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from a transformation run.
//
// The package is intentionally minimal:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - It mirrors the storage registry pattern, so the runner and the job
//     depend only on this interface while concrete metric systems stay in
//     subpackages (prompush, datadog).
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by all backends.
const (
	StepTotal           = "transform_step_total"
	StepDurationSeconds = "transform_step_duration_seconds"
	QueriesTotal        = "transform_queries_total"
	TablesTotal         = "transform_tables_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep is a convenience for the common pattern:
// measure latency + success/failure per step. Steps are the job phases
// ("connect", "run", "describe", "manifest") and individual "query"
// executions.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordQueries increments the statement counter for the given job and kind
// ("executed" or "skipped").
func RecordQueries(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(QueriesTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordTables increments the output table counter for the given job and
// kind ("described" or "manifested").
func RecordTables(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(TablesTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}
