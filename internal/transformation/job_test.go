package transformation

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sqltransform/internal/catalog"
	"sqltransform/internal/config"
	"sqltransform/internal/datatype"
	"sqltransform/internal/manifest"
	"sqltransform/internal/runner"
	"sqltransform/internal/storage"
	_ "sqltransform/internal/storage/sqlite"
)

func sqliteConfig(scripts []string, outputs ...string) *config.Config {
	cfg := &config.Config{
		Parameters: config.Parameters{
			QueryTimeout: 60,
			Blocks: []config.Block{{
				Name:  "Main",
				Codes: []config.Code{{Name: "Build", Script: scripts}},
			}},
		},
		Authorization: config.Authorization{Workspace: &config.Workspace{
			Backend:  "sqlite",
			Database: ":memory:",
			Schema:   "main",
		}},
	}
	for _, o := range outputs {
		cfg.Storage.Output.Tables = append(cfg.Storage.Output.Tables, config.OutputTable{Source: o, Destination: "out.c-main." + o})
	}
	return cfg
}

func readManifest(t *testing.T, dataDir, name string) manifest.TableManifest {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dataDir, "out", "tables", name+".manifest"))
	if err != nil {
		t.Fatalf("read manifest %s: %v", name, err)
	}
	var m manifest.TableManifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode manifest %s: %v", name, err)
	}
	return m
}

func metaValue(md []datatype.Metadata, key string) (any, bool) {
	for _, m := range md {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// TestJob_EndToEnd_SQLite runs blocks against an in-memory SQLite session
// and checks the written manifest.
func TestJob_EndToEnd_SQLite(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	cfg := sqliteConfig([]string{
		"-- build the output\nCREATE TABLE out1 (id INTEGER NOT NULL, name VARCHAR(20), amount DECIMAL(10,2), doc JSON)",
		"INSERT INTO out1 (id, name) VALUES (1, 'a')",
		"SELECT * FROM out1",
		"CREATE TABLE out2 (x INT)",
	}, "out1", "out2")

	job := New(cfg, Options{DataDir: dataDir, Job: "test"})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	s := job.Summary()
	if s.Blocks != 1 || s.Codes != 1 || s.Executed != 3 || s.Skipped != 1 || s.Tables != 2 || s.Columns != 5 {
		t.Fatalf("Summary = %+v", s)
	}

	m := readManifest(t, dataDir, "out1")
	if strings.Join(m.Columns, ",") != "id,name,amount,doc" {
		t.Fatalf("columns = %v", m.Columns)
	}
	if v, _ := metaValue(m.Metadata, "KBC.name"); v != "out1" {
		t.Fatalf("table metadata = %+v", m.Metadata)
	}

	id := m.ColumnMetadata["id"]
	if v, _ := metaValue(id, datatype.KeyNullable); v != false {
		t.Errorf("id nullable = %v, want false", v)
	}
	if v, _ := metaValue(id, datatype.KeyBasetype); v != datatype.BaseInteger {
		t.Errorf("id basetype = %v", v)
	}

	if v, _ := metaValue(m.ColumnMetadata["name"], datatype.KeyLength); v != "20" {
		t.Errorf("name length = %v, want 20", v)
	}
	if v, _ := metaValue(m.ColumnMetadata["name"], datatype.KeyNullable); v != true {
		t.Errorf("name nullable = %v, want true", v)
	}
	if v, _ := metaValue(m.ColumnMetadata["amount"], datatype.KeyLength); v != "10,2" {
		t.Errorf("amount length = %v, want 10,2", v)
	}

	doc := m.ColumnMetadata["doc"]
	if v, _ := metaValue(doc, datatype.KeyType); v != "json" {
		t.Errorf("doc type = %v", v)
	}
	if _, ok := metaValue(doc, datatype.KeyLength); ok {
		t.Errorf("generic column carries a length: %+v", doc)
	}

	m2 := readManifest(t, dataDir, "out2")
	if len(m2.Columns) != 1 || m2.Columns[0] != "x" {
		t.Fatalf("out2 columns = %v", m2.Columns)
	}
	if v, _ := metaValue(m2.ColumnMetadata["x"], datatype.KeyNullable); v != true {
		t.Errorf("out2.x nullable = %v, want true", v)
	}
}

// TestJob_WideColumnsOutsideRedshift checks that columns wider than the
// Redshift limits still produce a manifest on other backends.
func TestJob_WideColumnsOutsideRedshift(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	cfg := sqliteConfig([]string{
		"CREATE TABLE wide (v VARCHAR(70000), d DECIMAL(50,2), c CHAR(8000), ok VARCHAR(10))",
	}, "wide")
	if err := New(cfg, Options{DataDir: dataDir}).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	m := readManifest(t, dataDir, "wide")
	for _, col := range []string{"v", "d", "c"} {
		md := m.ColumnMetadata[col]
		if _, ok := metaValue(md, datatype.KeyLength); ok {
			t.Errorf("%s carries a length: %+v", col, md)
		}
		if _, ok := metaValue(md, datatype.KeyType); !ok {
			t.Errorf("%s has no type: %+v", col, md)
		}
	}
	if v, _ := metaValue(m.ColumnMetadata["ok"], datatype.KeyLength); v != "10" {
		t.Errorf("ok length = %v, want 10", v)
	}
}

func TestJob_MissingOutputTable(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	cfg := sqliteConfig([]string{"CREATE TABLE a (x INT)"}, "a", "b")
	err := New(cfg, Options{DataDir: dataDir}).Run(context.Background())

	var merr *catalog.MissingTablesError
	if !errors.As(err, &merr) || strings.Join(merr.Tables, ",") != "b" {
		t.Fatalf("Run error = %v, want missing [b]", err)
	}
	if !IsUserError(err) {
		t.Fatal("IsUserError(missing tables) = false")
	}
	if _, statErr := os.Stat(filepath.Join(dataDir, "out", "tables", "a.manifest")); !os.IsNotExist(statErr) {
		t.Fatal("manifest written despite missing table")
	}
}

func TestJob_QueryFailureStopsRun(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	cfg := sqliteConfig([]string{
		"CREATE TABLE a (x INT)",
		"INSERT INTO nope VALUES (1)",
		"CREATE TABLE b (y INT)",
	}, "a")
	job := New(cfg, Options{DataDir: dataDir})
	err := job.Run(context.Background())

	var qerr *runner.QueryExecutionError
	if !errors.As(err, &qerr) || qerr.Code != "Build" {
		t.Fatalf("Run error = %v, want QueryExecutionError in Build", err)
	}
	if !IsUserError(err) {
		t.Fatal("IsUserError(query failure) = false")
	}
	if s := job.Summary(); s.Executed != 1 || s.Tables != 0 {
		t.Fatalf("Summary = %+v", s)
	}
}

func TestJob_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := sqliteConfig([]string{"CREATE TABLE a (x INT)"})
	cfg.Authorization.Workspace = nil

	err := New(cfg, Options{DataDir: t.TempDir()}).Run(context.Background())
	var cerr *config.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("Run error = %v, want *config.ConfigurationError", err)
	}
	if !strings.Contains(err.Error(), "Missing authorization for workspace") {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !IsUserError(err) {
		t.Fatal("IsUserError(config) = false")
	}
}

func TestJob_ConnectionFailureIsApplicationError(t *testing.T) {
	orig := openConn
	t.Cleanup(func() { openConn = orig })

	var got storage.Config
	openConn = func(_ context.Context, c storage.Config) (storage.Conn, error) {
		got = c
		return nil, &storage.ConnectionError{Kind: c.Kind, Op: "connect", Err: errors.New("refused")}
	}

	cfg := sqliteConfig([]string{"CREATE TABLE a (x INT)"})
	cfg.Authorization.Workspace = &config.Workspace{
		Backend: "redshift", Host: "wh", Port: 5439, Database: "db", Schema: "ws", User: "u", Password: "p",
	}
	cfg.Parameters.QueryTimeout = 30

	err := New(cfg, Options{DataDir: t.TempDir()}).Run(context.Background())
	var cerr *storage.ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Run error = %v, want *storage.ConnectionError", err)
	}
	if IsUserError(err) {
		t.Fatal("IsUserError(connection) = true, want false")
	}
	if got.Kind != "redshift" || got.Schema != "ws" || got.Port != 5439 || got.QueryTimeout.Seconds() != 30 {
		t.Fatalf("storage config = %+v", got)
	}
}

// recordingWriter captures manifests instead of writing files.
type recordingWriter struct {
	names []string
	err   error
}

func (w *recordingWriter) WriteTableManifest(name string, _ manifest.TableManifest) error {
	w.names = append(w.names, name)
	return w.err
}

func TestJob_ManifestOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	cfg := sqliteConfig([]string{"CREATE TABLE b (x INT); CREATE TABLE a (y INT)"}, "b", "a", "b")
	if err := New(cfg, Options{Writer: w}).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if strings.Join(w.names, ",") != "b,a" {
		t.Fatalf("manifests = %v, want [b a]", w.names)
	}
}

func TestJob_ManifestWriteError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	cfg := sqliteConfig([]string{"CREATE TABLE a (x INT)"}, "a")
	err := New(cfg, Options{Writer: &recordingWriter{err: boom}}).Run(context.Background())
	if !errors.Is(err, boom) || IsUserError(err) {
		t.Fatalf("Run error = %v, want application error wrapping %v", err, boom)
	}
}

func TestJob_NoOutputs(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	cfg := sqliteConfig([]string{"CREATE TABLE a (x INT)"})
	if err := New(cfg, Options{Writer: w}).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(w.names) != 0 {
		t.Fatalf("manifests written with no outputs: %v", w.names)
	}
}
