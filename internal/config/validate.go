// Package config provides configuration models and helpers for transformation
// jobs.
//
// This file adds a lightweight validator for Config values. It performs
// static checks over a decoded Config and returns a list of issues (errors
// and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Config.
//
// Path is a dotted path into the config (e.g. "parameters.blocks[0].codes",
// "authorization.workspace.host"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var missingWorkspace = Issue{
	Severity: SeverityError,
	Path:     "authorization.workspace",
	Message:  "Missing authorization for workspace",
}

// ConfigurationError enumerates every error-severity Issue found in a
// Config. It is returned once, at startup, instead of failing on the first
// absent key.
type ConfigurationError struct {
	Issues []Issue
}

func (e *ConfigurationError) Error() string {
	if len(e.Issues) == 1 {
		return e.Issues[0].Message
	}
	msgs := make([]string, 0, len(e.Issues))
	for _, iss := range e.Issues {
		msgs = append(msgs, fmt.Sprintf("%s: %s", iss.Path, iss.Message))
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// knownBackends lists the storage kinds registered by internal/storage/all.
var knownBackends = map[string]struct{}{
	"redshift": {},
	"postgres": {},
	"mysql":    {},
	"mssql":    {},
	"sqlite":   {},
}

// Validate performs static validation of a Config. It does not mutate cfg.
// Callers decide whether warnings are fatal; Check treats only errors as
// fatal.
func Validate(cfg *Config) []Issue {
	if cfg == nil {
		return []Issue{{Severity: SeverityError, Path: "", Message: "configuration is empty"}}
	}

	var issues []Issue
	issues = append(issues, validateParameters(cfg.Parameters)...)
	issues = append(issues, validateWorkspace(cfg.Authorization.Workspace)...)
	issues = append(issues, validateOutput(cfg.Storage.Output)...)
	return issues
}

// Check runs Validate and folds every error-severity issue into a single
// *ConfigurationError. It returns nil when only warnings (or nothing) were
// found.
func Check(cfg *Config) error {
	var errs []Issue
	for _, iss := range Validate(cfg) {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{Issues: errs}
}

// validateParameters checks the block/code/script tree and the timeout.
func validateParameters(p Parameters) []Issue {
	var issues []Issue

	switch {
	case p.QueryTimeout < 0:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parameters.query_timeout",
			Message:  fmt.Sprintf("query_timeout=%d must not be negative", p.QueryTimeout),
		})
	case p.QueryTimeout > MaxQueryTimeout:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parameters.query_timeout",
			Message:  fmt.Sprintf("query_timeout=%d exceeds the maximum of %d seconds", p.QueryTimeout, MaxQueryTimeout),
		})
	}

	if len(p.Blocks) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parameters.blocks",
			Message:  "at least one block is required",
		})
		return issues
	}

	for i, b := range p.Blocks {
		bpath := fmt.Sprintf("parameters.blocks[%d]", i)
		if strings.TrimSpace(b.Name) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     bpath + ".name",
				Message:  "block has no name; errors and logs will be harder to attribute",
			})
		}
		if b.Codes == nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     bpath + ".codes",
				Message:  "block must define codes",
			})
			continue
		}
		for j, c := range b.Codes {
			cpath := fmt.Sprintf("%s.codes[%d]", bpath, j)
			if strings.TrimSpace(c.Name) == "" {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     cpath + ".name",
					Message:  "code has no name; errors and logs will be harder to attribute",
				})
			}
			if c.Script == nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     cpath + ".script",
					Message:  "code must define a script",
				})
			}
		}
	}

	return issues
}

// validateWorkspace checks the connection parameters for the selected backend.
func validateWorkspace(ws *Workspace) []Issue {
	if ws == nil {
		return []Issue{missingWorkspace}
	}

	var issues []Issue
	if _, ok := knownBackends[ws.Backend]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "authorization.workspace.backend",
			Message:  fmt.Sprintf("unknown backend %q; ensure a matching storage backend is registered", ws.Backend),
		})
	}

	required := map[string]string{
		"host":     ws.Host,
		"database": ws.Database,
		"schema":   ws.Schema,
		"user":     ws.User,
	}
	order := []string{"host", "database", "schema", "user"}
	switch {
	case ws.Backend == "sqlite":
		// A file path (or :memory:) is all SQLite needs.
		order = []string{"database"}
	case strings.TrimSpace(ws.DSN) != "":
		// The DSN carries host/database/user; the schema is still applied
		// after connecting.
		order = []string{"schema"}
	}
	for _, key := range order {
		if strings.TrimSpace(required[key]) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "authorization.workspace." + key,
				Message:  fmt.Sprintf("workspace %s must not be empty", key),
			})
		}
	}
	if ws.Port < 0 || ws.Port > 65535 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "authorization.workspace.port",
			Message:  fmt.Sprintf("port %d is out of range", ws.Port),
		})
	}

	return issues
}

// validateOutput checks the expected output tables.
func validateOutput(o Output) []Issue {
	var issues []Issue
	seen := make(map[string]int, len(o.Tables))
	for i, t := range o.Tables {
		path := fmt.Sprintf("storage.output.tables[%d].source", i)
		if strings.TrimSpace(t.Source) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  "output table source must not be empty",
			})
			continue
		}
		if prev, ok := seen[t.Source]; ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path,
				Message:  fmt.Sprintf("source %q is also mapped by tables[%d]", t.Source, prev),
			})
			continue
		}
		seen[t.Source] = i
	}
	return issues
}
