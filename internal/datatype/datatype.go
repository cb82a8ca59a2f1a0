// Package datatype converts catalog column definitions into normalized
// datatype descriptors and their KBC.* metadata pairs.
//
// Two models exist: Redshift, which knows the warehouse's type names, lengths
// and base types, and Generic, which accepts any type name and never carries
// a length. ForColumn tries Redshift first and falls back to Generic when
// the type name is unknown. Redshift length limits are only enforced for
// columns read from a Redshift workspace; other backends allow wider types.
package datatype

import (
	"errors"
	"fmt"

	"sqltransform/internal/catalog"
)

// Base types shared by both models.
const (
	BaseInteger   = "INTEGER"
	BaseNumeric   = "NUMERIC"
	BaseFloat     = "FLOAT"
	BaseBoolean   = "BOOLEAN"
	BaseDate      = "DATE"
	BaseTimestamp = "TIMESTAMP"
	BaseString    = "STRING"
)

// Metadata keys.
const (
	KeyType     = "KBC.datatype.type"
	KeyNullable = "KBC.datatype.nullable"
	KeyLength   = "KBC.datatype.length"
	KeyBasetype = "KBC.datatype.basetype"
)

// Metadata is one key/value descriptor pair.
type Metadata struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Definition is a normalized datatype.
type Definition interface {
	Type() string
	Nullable() bool
	// Length is "" when the type carries no length.
	Length() string
	Basetype() string
	ToMetadata() []Metadata
}

// Options carry the column attributes a Definition is built from.
type Options struct {
	Nullable bool
	Length   catalog.Length
}

// ErrUnknownType matches any *UnknownTypeError via errors.Is.
var ErrUnknownType = errors.New("datatype: unknown type")

// UnknownTypeError reports a type name outside the Redshift model.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("datatype: %q is not a valid Redshift type", e.Type)
}

func (e *UnknownTypeError) Is(target error) bool { return target == ErrUnknownType }

// InvalidLengthError reports a length the Redshift model rejects.
type InvalidLengthError struct {
	Type   string
	Length string
	Reason string
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("datatype: length %q is not valid for type %q: %s", e.Length, e.Type, e.Reason)
}

func toMetadata(d Definition) []Metadata {
	md := []Metadata{
		{Key: KeyType, Value: d.Type()},
		{Key: KeyNullable, Value: d.Nullable()},
	}
	if l := d.Length(); l != "" {
		md = append(md, Metadata{Key: KeyLength, Value: l})
	}
	return append(md, Metadata{Key: KeyBasetype, Value: d.Basetype()})
}

// RedshiftBackend is the storage kind whose columns must satisfy the
// Redshift length limits.
const RedshiftBackend = "redshift"

// ForColumn builds the Redshift definition for col. When the type name is
// unknown it falls back to a Generic definition without length. A length
// outside the Redshift limits is an error for the redshift backend; for
// any other backend (e.g. a Postgres VARCHAR(70000) or a MySQL
// DECIMAL(65,30)) the column falls back to Generic as well.
func ForColumn(col catalog.ColumnDef, backend string) (Definition, error) {
	opts := Options{Nullable: col.Nullable, Length: col.Length}
	rs, err := NewRedshift(col.Type, opts)
	if err == nil {
		return rs, nil
	}
	var lerr *InvalidLengthError
	switch {
	case errors.Is(err, ErrUnknownType):
	case errors.As(err, &lerr) && backend != RedshiftBackend:
	default:
		return nil, fmt.Errorf("column %q: %w", col.Name, err)
	}
	return NewGeneric(col.Type, Options{Nullable: col.Nullable}), nil
}

// ColumnMetadata returns the column names of ts in ordinal order and each
// column's datatype metadata. backend is the storage kind ts was read from.
func ColumnMetadata(ts catalog.TableStructure, backend string) ([]string, map[string][]Metadata, error) {
	names := make([]string, 0, len(ts.Columns))
	meta := make(map[string][]Metadata, len(ts.Columns))
	for _, col := range ts.Columns {
		def, err := ForColumn(col, backend)
		if err != nil {
			return nil, nil, fmt.Errorf("table %q: %w", ts.Name, err)
		}
		names = append(names, col.Name)
		meta[col.Name] = def.ToMetadata()
	}
	return names, meta, nil
}

// TableMetadata returns one KBC.<attribute> pair per scalar table attribute.
func TableMetadata(ts catalog.TableStructure) []Metadata {
	attrs := ts.Attributes()
	out := make([]Metadata, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, Metadata{Key: "KBC." + a.Key, Value: a.Value})
	}
	return out
}
