// Package config defines the JSON configuration model for a transformation
// job. Field names mirror the component config file (config.json) handed to
// the job by the platform:
//
//	{
//	  "parameters": {
//	    "blocks": [ { "name": "B1", "codes": [ { "name": "C1", "script": ["..."] } ] } ],
//	    "query_timeout": 7200,
//	    "allow_query_cleaning": true
//	  },
//	  "authorization": { "workspace": { "host": "...", "schema": "...", ... } },
//	  "storage": { "output": { "tables": [ { "source": "t", "destination": "out.c-main.t" } ] } }
//	}
//
// Decoding uses the standard library; defaults are applied before decoding so
// that absent keys keep them.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultQueryTimeout is the statement timeout in seconds used when
	// parameters.query_timeout is absent.
	DefaultQueryTimeout = 7200

	// MaxQueryTimeout is the largest accepted query_timeout in seconds. The
	// server settings it feeds (statement_timeout, LOCK_TIMEOUT) are 32-bit
	// millisecond values.
	MaxQueryTimeout = 2147483

	// DefaultBackend is the warehouse flavor used when the workspace does not
	// name one.
	DefaultBackend = "redshift"
)

// defaultPorts maps a backend kind to the port used when the workspace
// omits one.
var defaultPorts = map[string]int{
	"redshift": 5439,
	"postgres": 5432,
	"mysql":    3306,
	"mssql":    1433,
}

// Config is the top-level object decoded from config.json.
type Config struct {
	Parameters    Parameters    `json:"parameters"`
	Authorization Authorization `json:"authorization"`
	Storage       Storage       `json:"storage"`
}

// Parameters carries the transformation itself.
type Parameters struct {
	// Blocks are executed in order; see Block.
	Blocks []Block `json:"blocks"`

	// QueryTimeout is the per-statement timeout in seconds.
	QueryTimeout int `json:"query_timeout"`

	// AllowQueryCleaning enables comment stripping and SELECT skipping.
	// Some deployments name the same switch allow_modify_query.
	AllowQueryCleaning *bool `json:"allow_query_cleaning,omitempty"`
	AllowModifyQuery   *bool `json:"allow_modify_query,omitempty"`
}

// Block is a named group of codes. The name is only used for diagnostics.
type Block struct {
	Name  string `json:"name"`
	Codes []Code `json:"codes"`
}

// Code is a named, ordered list of SQL statements.
type Code struct {
	Name   string   `json:"name"`
	Script []string `json:"script"`
}

// Authorization holds the credentials the platform provisions for the job.
type Authorization struct {
	Workspace *Workspace `json:"workspace,omitempty"`
}

// Workspace describes the database session the job is allowed to use.
type Workspace struct {
	// Backend selects the storage backend ("redshift", "postgres", "mysql",
	// "mssql", "sqlite"). Empty means DefaultBackend.
	Backend  string `json:"backend,omitempty"`
	Host     string `json:"host"`
	Port     Port   `json:"port"`
	Database string `json:"database"`
	Schema   string `json:"schema"`
	User     string `json:"user"`
	Password string `json:"password"`

	// EncryptedPassword is the platform's "#password" key; it is used when
	// Password is empty.
	EncryptedPassword string `json:"#password,omitempty"`

	// DSN, when set, is handed to the driver as-is instead of building one
	// from the discrete fields.
	DSN string `json:"dsn,omitempty"`
}

// Storage carries the input/output mapping. Only output tables are used.
type Storage struct {
	Output Output `json:"output"`
}

// Output lists the tables the transformation is expected to create.
type Output struct {
	Tables []OutputTable `json:"tables"`
}

// OutputTable maps a workspace table (Source) to a storage destination.
type OutputTable struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Port accepts both JSON numbers and numeric strings ("5439"); the platform
// and local tooling disagree on which one they write.
type Port int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" || s == `""` {
		*p = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("port %q is not a number", s)
	}
	*p = Port(n)
	return nil
}

// Load opens path and decodes it with Decode.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a Config from r and applies defaults. It does not validate;
// call Check (or Validate) afterwards.
func Decode(r io.Reader) (*Config, error) {
	cfg := &Config{
		Parameters: Parameters{QueryTimeout: DefaultQueryTimeout},
	}
	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	if ws := cfg.Authorization.Workspace; ws != nil {
		if strings.TrimSpace(ws.Backend) == "" {
			ws.Backend = DefaultBackend
		}
		ws.Backend = strings.ToLower(strings.TrimSpace(ws.Backend))
		if ws.Port == 0 {
			ws.Port = Port(defaultPorts[ws.Backend])
		}
		if ws.Password == "" {
			ws.Password = ws.EncryptedPassword
		}
	}
	return cfg, nil
}

// CleaningEnabled reports whether queries should be cleaned before running.
// allow_query_cleaning wins over allow_modify_query; both default to true.
func (p Parameters) CleaningEnabled() bool {
	if p.AllowQueryCleaning != nil {
		return *p.AllowQueryCleaning
	}
	if p.AllowModifyQuery != nil {
		return *p.AllowModifyQuery
	}
	return true
}

// QueryTimeout returns parameters.query_timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Parameters.QueryTimeout) * time.Second
}

// Blocks returns the configured blocks.
func (c *Config) Blocks() []Block { return c.Parameters.Blocks }

// ExpectedOutputTables returns the output mapping tables.
func (c *Config) ExpectedOutputTables() []OutputTable { return c.Storage.Output.Tables }

// DatabaseConfig returns the workspace credentials, or a ConfigurationError
// when the platform did not provide any.
func (c *Config) DatabaseConfig() (*Workspace, error) {
	if c.Authorization.Workspace == nil {
		return nil, &ConfigurationError{Issues: []Issue{missingWorkspace}}
	}
	return c.Authorization.Workspace, nil
}
