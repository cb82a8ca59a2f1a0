// Package manifest writes output table manifests: one JSON file per table
// under <data-dir>/out/tables describing its columns and metadata.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sqltransform/internal/datatype"
)

// TableManifest is the manifest body of one output table.
type TableManifest struct {
	Columns        []string                       `json:"columns"`
	Metadata       []datatype.Metadata            `json:"metadata"`
	ColumnMetadata map[string][]datatype.Metadata `json:"column_metadata"`
}

// Writer writes manifests below a data directory.
type Writer struct {
	dir string
}

// NewWriter returns a Writer for <dataDir>/out/tables.
func NewWriter(dataDir string) *Writer {
	return &Writer{dir: filepath.Join(dataDir, "out", "tables")}
}

// Path returns the manifest path for table name.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name+".manifest")
}

// WriteTableManifest writes <name>.manifest, creating the directory if
// needed. An existing manifest is replaced.
func (w *Writer) WriteTableManifest(name string, m TableManifest) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("manifest: invalid table name %q", name)
	}
	if m.Columns == nil {
		m.Columns = []string{}
	}
	if m.Metadata == nil {
		m.Metadata = []datatype.Metadata{}
	}
	if m.ColumnMetadata == nil {
		m.ColumnMetadata = map[string][]datatype.Metadata{}
	}

	b, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("manifest: encode %s: %w", name, err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("manifest: create %s: %w", w.dir, err)
	}
	if err := os.WriteFile(w.Path(name), append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", name, err)
	}
	return nil
}
